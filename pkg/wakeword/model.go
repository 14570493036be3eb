// Package wakeword scores streaming audio against one or more wake-word
// classifiers that share a features.Preprocessor, following openWakeWord's
// Model.predict.
package wakeword

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nzoschke/wakelab/pkg/config"
	"github.com/nzoschke/wakelab/pkg/features"
)

const (
	// BackendONNX is the only inference backend that can execute models.
	BackendONNX = "onnx"

	MelONNX   = "onnx"
	MelNative = "native"

	// predictionBufferLen scores are kept per label.
	predictionBufferLen = 30
	// warmupPredictions scores per label are forced to zero.
	warmupPredictions = 5
)

// Config selects the models to load.
type Config struct {
	// WakeWords are registry names or .onnx file paths. Empty loads every
	// registered model.
	WakeWords []string
	// Backend is the inference framework. Empty means onnx.
	Backend string
	// Mel selects the mel frontend: onnx (default) or native.
	Mel      string
	Registry *config.Config
	Seed     int64

	// Thresholds and Debounce suppress repeat activations: a score at or
	// above its label's threshold is zeroed when one of the scores in the
	// last Debounce seconds also reached it.
	Thresholds map[string]float32
	Debounce   float64
}

// Entry is a loaded classifier with its label mapping. Classes maps output
// indices ("1", "2", ...) to labels for multi-class models.
type Entry struct {
	Name       string
	Classifier Classifier
	Classes    map[string]string
}

// Model runs classifiers over a shared preprocessor. It is not safe for
// concurrent use.
type Model struct {
	pre     *features.Preprocessor
	entries []Entry

	thresholds map[string]float32
	debounce   float64

	buffers map[string][]float32
}

// New loads the feature models and the configured wake-word models.
func New(cfg Config) (*Model, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendONNX
	}
	if cfg.Backend != BackendONNX {
		return nil, fmt.Errorf("unsupported inference backend %q (supported: %s)", cfg.Backend, BackendONNX)
	}
	reg := cfg.Registry
	if reg == nil {
		reg = config.Default()
	}

	var mel features.MelSpectrogrammer
	switch cfg.Mel {
	case "", MelONNX:
	case MelNative:
		mel = features.NewNativeMel()
	default:
		return nil, fmt.Errorf("unknown mel frontend %q (supported: %s, %s)", cfg.Mel, MelONNX, MelNative)
	}

	names := cfg.WakeWords
	if len(names) == 0 {
		for _, w := range reg.WakeWords {
			names = append(names, w.Name)
		}
	}

	var entries []Entry
	closeAll := func() {
		for _, e := range entries {
			if c, ok := e.Classifier.(io.Closer); ok {
				c.Close()
			}
		}
	}

	for _, name := range names {
		w, err := Resolve(reg, name)
		if err != nil {
			closeAll()
			return nil, err
		}
		c, err := NewONNXClassifier(w.Path)
		if err != nil {
			closeAll()
			return nil, err
		}
		entries = append(entries, Entry{Name: w.Name, Classifier: c, Classes: w.Classes})
	}

	pre, err := features.NewONNX(mel, reg.MelPath(), reg.EmbeddingPath(), cfg.Seed)
	if err != nil {
		closeAll()
		return nil, err
	}

	m, err := NewModel(pre, entries, cfg.Thresholds, cfg.Debounce)
	if err != nil {
		closeAll()
		pre.Close()
		return nil, err
	}
	return m, nil
}

// NewModel assembles a model from an existing preprocessor and classifiers.
func NewModel(pre *features.Preprocessor, entries []Entry, thresholds map[string]float32, debounce float64) (*Model, error) {
	if pre == nil {
		return nil, errors.New("preprocessor is required")
	}
	if len(entries) == 0 {
		return nil, errors.New("no wake-word models")
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Classifier == nil {
			return nil, fmt.Errorf("model %s: classifier is nil", e.Name)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("model %s loaded twice", e.Name)
		}
		seen[e.Name] = true
	}

	m := &Model{
		pre:        pre,
		entries:    entries,
		thresholds: thresholds,
		debounce:   debounce,
	}
	m.resetBuffers()
	return m, nil
}

// Resolve finds a wake word by registry name or accepts a path to an
// existing .onnx file. .tflite files can be inspected but not executed.
func Resolve(reg *config.Config, name string) (config.WakeWord, error) {
	if _, err := os.Stat(name); err == nil {
		ext := filepath.Ext(name)
		if ext != ".onnx" {
			return config.WakeWord{}, fmt.Errorf("model %s: only .onnx models can be executed", name)
		}
		base := strings.TrimSuffix(filepath.Base(name), ext)
		w := config.WakeWord{Name: base, Path: name}
		if known, ok := reg.Lookup(strings.TrimSuffix(base, "_v0.1")); ok {
			w.Classes = known.Classes
		}
		return w, nil
	}

	w, ok := reg.Lookup(name)
	if !ok {
		return config.WakeWord{}, fmt.Errorf("unknown wake word %q (available: %s)", name, strings.Join(Available(reg), ", "))
	}
	return w, nil
}

// Available returns the registered wake-word names, sorted.
func Available(reg *config.Config) []string {
	names := make([]string, len(reg.WakeWords))
	for i, w := range reg.WakeWords {
		names[i] = w.Name
	}
	sort.Strings(names)
	return names
}

// Names returns the loaded model names in load order.
func (m *Model) Names() []string {
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.Name
	}
	return names
}

// Labels returns the prediction labels of all models, in load order.
func (m *Model) Labels() []string {
	var labels []string
	for _, e := range m.entries {
		labels = append(labels, labelsOf(e)...)
	}
	return labels
}

// ModelInputs returns the number of feature frames each model expects.
func (m *Model) ModelInputs() map[string]int {
	out := make(map[string]int, len(m.entries))
	for _, e := range m.entries {
		out[e.Name] = e.Classifier.Frames()
	}
	return out
}

// ModelOutputs returns the number of scores each model produces.
func (m *Model) ModelOutputs() map[string]int {
	out := make(map[string]int, len(m.entries))
	for _, e := range m.entries {
		out[e.Name] = e.Classifier.Outputs()
	}
	return out
}

// Preprocessor exposes the shared feature buffers.
func (m *Model) Preprocessor() *features.Preprocessor {
	return m.pre
}

// PredictionFunc returns a model's classifier for manual inspection.
func (m *Model) PredictionFunc(name string) (func([][]float32) ([]float32, error), bool) {
	key := config.NormalizeName(name)
	for _, e := range m.entries {
		if config.NormalizeName(e.Name) == key {
			return e.Classifier.Classify, true
		}
	}
	return nil, false
}

// buffer returns a copy of the recent scores of a label.
func (m *Model) buffer(label string) []float32 {
	return append([]float32(nil), m.buffers[label]...)
}

// Predict pushes a chunk through the preprocessor and scores every model.
// Multi-class models report one score per class label.
func (m *Model) Predict(chunk []int16) (map[string]float32, error) {
	prepared, err := m.pre.Push(chunk)
	if err != nil {
		return nil, err
	}

	predictions := make(map[string]float32)
	for _, e := range m.entries {
		frames := e.Classifier.Frames()

		var scores []float32
		switch {
		case prepared > features.ChunkSize:
			for i := 0; i < prepared/features.ChunkSize; i++ {
				s, err := e.Classifier.Classify(m.pre.Features(frames, -frames-i))
				if err != nil {
					return nil, fmt.Errorf("model %s: %w", e.Name, err)
				}
				scores = maxScores(scores, s)
			}
		case prepared == features.ChunkSize:
			s, err := e.Classifier.Classify(m.pre.Features(frames, -1))
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", e.Name, err)
			}
			scores = s
		default:
			scores = m.lastScores(e)
		}

		if e.Classifier.Outputs() == 1 {
			predictions[e.Name] = at(scores, 0)
			continue
		}
		for idx, label := range classIndices(e) {
			predictions[label] = at(scores, idx)
		}
	}

	for label := range predictions {
		if len(m.buffers[label]) < warmupPredictions {
			predictions[label] = 0
		}
	}

	if m.debounce > 0 && len(m.thresholds) > 0 && prepared > 0 {
		n := int(math.Ceil(m.debounce / (float64(prepared) / features.SampleRate)))
		for label, score := range predictions {
			threshold, ok := m.thresholds[label]
			if !ok || score == 0 || score < threshold {
				continue
			}
			buf := m.buffers[label]
			if len(buf) > n {
				buf = buf[len(buf)-n:]
			}
			for _, prev := range buf {
				if prev >= threshold {
					predictions[label] = 0
					break
				}
			}
		}
	}

	for label, score := range predictions {
		buf := append(m.buffers[label], score)
		if len(buf) > predictionBufferLen {
			buf = buf[len(buf)-predictionBufferLen:]
		}
		m.buffers[label] = buf
	}

	return predictions, nil
}

// Reset clears prediction history and restores the preprocessor's initial
// buffers.
func (m *Model) Reset() error {
	m.resetBuffers()
	return m.pre.Reset()
}

// Close releases the classifiers and feature models.
func (m *Model) Close() error {
	var errs []error
	for _, e := range m.entries {
		if c, ok := e.Classifier.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	errs = append(errs, m.pre.Close())
	return errors.Join(errs...)
}

func (m *Model) resetBuffers() {
	m.buffers = make(map[string][]float32)
	for _, label := range m.Labels() {
		m.buffers[label] = nil
	}
}

// lastScores rebuilds a score vector from the most recent buffered values.
func (m *Model) lastScores(e Entry) []float32 {
	scores := make([]float32, e.Classifier.Outputs())
	if e.Classifier.Outputs() == 1 {
		if buf := m.buffers[e.Name]; len(buf) > 0 {
			scores[0] = buf[len(buf)-1]
		}
		return scores
	}
	for idx, label := range classIndices(e) {
		if buf := m.buffers[label]; len(buf) > 0 && idx < len(scores) {
			scores[idx] = buf[len(buf)-1]
		}
	}
	return scores
}

// classIndices maps output index to label. Indices without a class mapping
// are labelled by their number.
func classIndices(e Entry) map[int]string {
	out := make(map[int]string)
	for i := 0; i < e.Classifier.Outputs(); i++ {
		out[i] = strconv.Itoa(i)
	}
	if len(e.Classes) == 0 {
		return out
	}
	out = make(map[int]string, len(e.Classes))
	for k, label := range e.Classes {
		if i, err := strconv.Atoi(k); err == nil && i < e.Classifier.Outputs() {
			out[i] = label
		}
	}
	return out
}

func labelsOf(e Entry) []string {
	if e.Classifier.Outputs() == 1 {
		return []string{e.Name}
	}
	idx := classIndices(e)
	keys := make([]int, 0, len(idx))
	for i := range idx {
		keys = append(keys, i)
	}
	sort.Ints(keys)
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = idx[k]
	}
	return labels
}

func maxScores(acc, s []float32) []float32 {
	if acc == nil {
		return append([]float32(nil), s...)
	}
	for i := range acc {
		if i < len(s) && s[i] > acc[i] {
			acc[i] = s[i]
		}
	}
	return acc
}

func at(s []float32, i int) float32 {
	if i < len(s) {
		return s[i]
	}
	return 0
}
