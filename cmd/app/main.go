// CLI for inspecting wake-word models and probing the streaming feature
// pipeline.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nzoschke/wakelab/pkg/config"
	"github.com/nzoschke/wakelab/pkg/features"
	"github.com/nzoschke/wakelab/pkg/inspect"
	"github.com/nzoschke/wakelab/pkg/onnx"
	"github.com/nzoschke/wakelab/pkg/probe"
	"github.com/nzoschke/wakelab/pkg/server"
	"github.com/nzoschke/wakelab/pkg/wakeword"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "app",
	Short: "Wake-word model inspection and pipeline diagnostics",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		path, _ := cmd.Flags().GetString("config")
		var err error
		if cmd.Flags().Changed("config") {
			cfg, err = config.Load(path)
		} else {
			cfg, err = config.LoadOrDefault(path)
		}
		if err != nil {
			return err
		}
		if cfg.ONNXRuntimeLib != "" {
			onnx.SetLibraryPath(cfg.ONNXRuntimeLib)
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [model...]",
	Short: "Print declared inputs and outputs of model files",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		pipeline, _ := cmd.Flags().GetBool("pipeline")
		return runInspect(cmd.OutOrStdout(), args, asJSON, pipeline)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Feed one chunk and call the wake-word model directly",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := modelFlags(cmd)
		if err != nil {
			return err
		}
		return runProbe(cmd.OutOrStdout(), opts)
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Stream chunks and print buffer growth and scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := modelFlags(cmd)
		if err != nil {
			return err
		}
		chunks, _ := cmd.Flags().GetInt("chunks")
		asJSON, _ := cmd.Flags().GetBool("json")
		return runCompare(cmd.OutOrStdout(), opts, chunks, asJSON)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inspection viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		opts, err := modelFlags(cmd)
		if err != nil {
			return err
		}
		return runServe(addr, opts)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Model registry (YAML)")

	inspectCmd.Flags().Bool("json", false, "Print results as JSON")
	inspectCmd.Flags().Bool("pipeline", false, "Print the mel -> embedding -> wake-word pipeline summary")

	for _, c := range []*cobra.Command{probeCmd, compareCmd, serveCmd} {
		c.Flags().StringP("wakeword", "w", "hey mycroft", "Wake-word model name or .onnx path")
		c.Flags().String("backend", wakeword.BackendONNX, "Inference backend")
		c.Flags().String("mel", wakeword.MelONNX, "Mel frontend: onnx or native")
		c.Flags().Int64("seed", 0, "Noise seed")
	}
	for _, c := range []*cobra.Command{probeCmd, compareCmd} {
		c.Flags().String("audio", "", "Audio file (mp3 or wav) to feed instead of noise")
	}
	compareCmd.Flags().IntP("chunks", "n", 10, "Number of 1280-sample chunks")
	compareCmd.Flags().Bool("json", false, "Print steps as JSON")
	serveCmd.Flags().String("addr", ":8080", "Listen address")

	rootCmd.AddCommand(inspectCmd, probeCmd, compareCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type modelOptions struct {
	wakeWord string
	backend  string
	mel      string
	seed     int64
	audio    string
}

func modelFlags(cmd *cobra.Command) (modelOptions, error) {
	var o modelOptions
	var err error
	if o.wakeWord, err = cmd.Flags().GetString("wakeword"); err != nil {
		return o, err
	}
	if o.backend, err = cmd.Flags().GetString("backend"); err != nil {
		return o, err
	}
	if o.mel, err = cmd.Flags().GetString("mel"); err != nil {
		return o, err
	}
	if o.seed, err = cmd.Flags().GetInt64("seed"); err != nil {
		return o, err
	}
	if cmd.Flags().Lookup("audio") != nil {
		o.audio, _ = cmd.Flags().GetString("audio")
	}
	return o, nil
}

func newModel(o modelOptions, seed int64) (*wakeword.Model, error) {
	return wakeword.New(wakeword.Config{
		WakeWords: []string{o.wakeWord},
		Backend:   o.backend,
		Mel:       o.mel,
		Registry:  cfg,
		Seed:      seed,
	})
}

func source(o modelOptions) (probe.Source, error) {
	if o.audio != "" {
		return probe.FileSource(o.audio, features.ChunkSize)
	}
	return probe.NewNoiseSource(probe.ChunkSeed(o.seed), features.ChunkSize), nil
}

func runInspect(w io.Writer, paths []string, asJSON, pipeline bool) error {
	var targets []inspect.Target
	if len(paths) > 0 {
		for _, p := range paths {
			targets = append(targets, inspect.Target{Name: p, Path: p})
		}
	} else {
		for _, t := range cfg.Inspect {
			targets = append(targets, inspect.Target{Name: t.Name, Path: t.Path})
		}
	}

	out := w
	if asJSON {
		out = io.Discard
	}
	infos := inspect.Inspect(out, targets...)

	ours := inspect.Load(inspect.Target{Name: "Our model", Path: cfg.Compare.Ours})
	official := inspect.Load(inspect.Target{Name: "OpenWakeWord model", Path: cfg.Compare.Official})
	compat := inspect.Compare(ours, official)

	var p *inspect.Pipeline
	if pipeline {
		mel := inspect.Load(inspect.Target{Name: "Melspectrogram Model", Path: cfg.MelPath()})
		emb := inspect.Load(inspect.Target{Name: "Embedding Model", Path: cfg.EmbeddingPath()})
		pp := inspect.NewPipeline(mel, emb, ours)
		p = &pp
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Models        []inspect.ModelInfo   `json:"models"`
			Compatibility inspect.Compatibility `json:"compatibility"`
			Pipeline      *inspect.Pipeline     `json:"pipeline,omitempty"`
		}{infos, compat, p})
	}

	inspect.PrintAnalysis(w, compat)
	if p != nil {
		inspect.PrintPipeline(w, *p)
	}
	return nil
}

func runProbe(w io.Writer, o modelOptions) error {
	fmt.Fprintf(w, "Initializing OpenWakeWord...\n")
	m, err := newModel(o, o.seed)
	if err != nil {
		return err
	}
	defer m.Close()

	src, err := source(o)
	if err != nil {
		return err
	}

	ours := inspect.Load(inspect.Target{Path: cfg.Compare.Ours})
	return probe.FeatureProbe(w, m, src, probe.Options{
		WakeWord:  o.wakeWord,
		OursInput: ours.TotalInputSize(),
		Available: cfg.ModelPaths(),
	})
}

func runCompare(w io.Writer, o modelOptions, chunks int, asJSON bool) error {
	out := w
	if asJSON {
		out = io.Discard
	}

	fmt.Fprintf(out, "Initializing OpenWakeWord...\n")
	m, err := newModel(o, o.seed)
	if err != nil {
		return err
	}
	defer m.Close()

	src, err := source(o)
	if err != nil {
		return err
	}

	steps, err := probe.StreamCompare(out, m, src, chunks)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(steps)
	}
	return nil
}

func runServe(addr string, o modelOptions) error {
	s := server.New(cfg, func(seed int64) (*wakeword.Model, error) {
		return newModel(o, seed)
	})
	return s.Run(addr)
}
