// Package config holds the model registry: where the feature models and
// wake-word models live, class mappings for multi-class models, and the
// files the inspect command looks at.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "wakelab.yaml"

// officialModelsDir is where pip installs openWakeWord's bundled models.
const officialModelsDir = "/home/vscode/.local/lib/python3.10/site-packages/openwakeword/resources/models"

// Config is the model registry.
type Config struct {
	// ModelsDir is the base for relative feature and wake-word model paths.
	ModelsDir string `yaml:"models_dir"`
	// ONNXRuntimeLib overrides the ONNX Runtime shared library path.
	ONNXRuntimeLib string          `yaml:"onnxruntime_lib,omitempty"`
	FeatureModels  FeatureModels   `yaml:"feature_models"`
	WakeWords      []WakeWord      `yaml:"wakewords"`
	Inspect        []InspectTarget `yaml:"inspect"`
	Compare        ComparePair     `yaml:"compare"`
}

// FeatureModels are the shared preprocessing models.
type FeatureModels struct {
	Melspectrogram string `yaml:"melspectrogram"`
	Embedding      string `yaml:"embedding"`
}

// WakeWord is a pretrained classifier. Classes maps output indices to labels
// for multi-class models.
type WakeWord struct {
	Name    string            `yaml:"name"`
	Path    string            `yaml:"path"`
	Classes map[string]string `yaml:"classes,omitempty"`
}

// InspectTarget is a model file reported by the inspect command. Paths are
// used as given.
type InspectTarget struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ComparePair names the custom-trained and official builds of the same model.
type ComparePair struct {
	Ours     string `yaml:"ours"`
	Official string `yaml:"official"`
}

// Default returns the openWakeWord v0.1 model set.
func Default() *Config {
	officialMycroft := filepath.Join(officialModelsDir, "hey_mycroft_v0.1.tflite")
	return &Config{
		ModelsDir: "models",
		FeatureModels: FeatureModels{
			Melspectrogram: "melspectrogram.onnx",
			Embedding:      "embedding_model.onnx",
		},
		WakeWords: []WakeWord{
			{Name: "alexa", Path: "alexa_v0.1.onnx"},
			{Name: "hey_mycroft", Path: "hey_mycroft_v0.1.onnx"},
			{Name: "hey_jarvis", Path: "hey_jarvis_v0.1.onnx"},
			{Name: "hey_rhasspy", Path: "hey_rhasspy_v0.1.onnx"},
			{Name: "timer", Path: "timer_v0.1.onnx", Classes: map[string]string{
				"1": "1_minute_timer",
				"2": "5_minute_timer",
				"3": "10_minute_timer",
				"4": "20_minute_timer",
				"5": "30_minute_timer",
				"6": "1_hour_timer",
			}},
			{Name: "weather", Path: "weather_v0.1.onnx"},
		},
		Inspect: []InspectTarget{
			{Name: "Melspectrogram Model", Path: "models/melspectrogram.tflite"},
			{Name: "Embedding Model", Path: "models/embedding_model.tflite"},
			{Name: "Hey Mycroft Model (Ours)", Path: "models/hey_mycroft_v0.1.tflite"},
			{Name: "Hey Mycroft Model (Official OpenWakeWord)", Path: officialMycroft},
		},
		Compare: ComparePair{
			Ours:     "models/hey_mycroft_v0.1.tflite",
			Official: officialMycroft,
		},
	}
}

// Load reads a YAML config on top of Default. Keys missing from the file
// keep their defaults; lists in the file replace the default lists.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks that every wake word has a unique name and a path.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, w := range c.WakeWords {
		if w.Name == "" || w.Path == "" {
			return fmt.Errorf("wakewords[%d]: name and path are required", i)
		}
		key := NormalizeName(w.Name)
		if seen[key] {
			return fmt.Errorf("wakewords[%d]: duplicate name %q", i, w.Name)
		}
		seen[key] = true
	}
	return nil
}

// Resolve joins a relative model path onto ModelsDir.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.ModelsDir == "" {
		return path
	}
	return filepath.Join(c.ModelsDir, path)
}

// MelPath returns the resolved melspectrogram model path.
func (c *Config) MelPath() string {
	return c.Resolve(c.FeatureModels.Melspectrogram)
}

// EmbeddingPath returns the resolved embedding model path.
func (c *Config) EmbeddingPath() string {
	return c.Resolve(c.FeatureModels.Embedding)
}

// Lookup finds a wake word by name. "hey mycroft", "Hey_Mycroft" and
// "hey_mycroft" are the same model.
func (c *Config) Lookup(name string) (WakeWord, bool) {
	key := NormalizeName(name)
	for _, w := range c.WakeWords {
		if NormalizeName(w.Name) == key {
			w.Path = c.Resolve(w.Path)
			return w, true
		}
	}
	return WakeWord{}, false
}

// ModelPaths returns the resolved paths of all registered wake-word models.
func (c *Config) ModelPaths() []string {
	paths := make([]string, len(c.WakeWords))
	for i, w := range c.WakeWords {
		paths[i] = c.Resolve(w.Path)
	}
	return paths
}

// NormalizeName lowercases a model name and replaces spaces with underscores.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
