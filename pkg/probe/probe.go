// Package probe drives a wakeword.Model with audio chunks and prints the
// preprocessor's internal state, to compare a custom model against the
// official openWakeWord pipeline.
package probe

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/nzoschke/wakelab/pkg/config"
	"github.com/nzoschke/wakelab/pkg/features"
	"github.com/nzoschke/wakelab/pkg/wakeword"
)

var rule = strings.Repeat("=", 50)

// Options configures FeatureProbe.
type Options struct {
	// WakeWord is the model to call directly.
	WakeWord string
	// OursInput is the input size of the custom model. Zero skips the
	// comparison.
	OursInput int64
	// Available lists the registered models.
	Available []string
}

// FeatureProbe feeds one chunk, prints the buffers the model sees, then
// calls the model's classifier directly. A failing direct call is printed,
// not returned.
func FeatureProbe(w io.Writer, m *wakeword.Model, src Source, opts Options) error {
	fn, ok := m.PredictionFunc(opts.WakeWord)
	if !ok {
		return fmt.Errorf("wake word %q is not loaded (loaded: %s)", opts.WakeWord, strings.Join(m.Names(), ", "))
	}
	name := loadedName(m, opts.WakeWord)
	frames := m.ModelInputs()[name]

	fmt.Fprintf(w, "Model details:\n")
	fmt.Fprintf(w, "  Input size: %d\n", frames)
	fmt.Fprintf(w, "  Output size: %d\n", m.ModelOutputs()[name])

	chunk, err := src.Next()
	if err != nil {
		return fmt.Errorf("read chunk: %w", err)
	}
	fmt.Fprintf(w, "\nTesting with single audio chunk (%d samples)...\n", len(chunk))
	predictions, err := m.Predict(chunk)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	pre := m.Preprocessor()
	feats := pre.Features(frames, -1)
	fmt.Fprintf(w, "\nFeature extraction details:\n")
	fmt.Fprintf(w, "  Feature buffer shape: %s\n", shape(pre.FeatureBufferShape()))
	fmt.Fprintf(w, "  Features shape for model: %s\n", shape(framesShape(feats)))
	if len(feats) > 0 {
		fmt.Fprintf(w, "  Features[0] first 5 values: %v\n", feats[0][:min(5, len(feats[0]))])
	}
	mean, std := Stats(feats)
	fmt.Fprintf(w, "  Features mean/std: %.6f / %.6f\n", mean, std)

	fmt.Fprintf(w, "\nMelspectrogram details:\n")
	fmt.Fprintf(w, "  Mel buffer shape: %s\n", shape(pre.MelBufferShape()))

	fmt.Fprintf(w, "\nPrediction: %s\n", FormatScores(m.Labels(), predictions))

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "DETAILED ANALYSIS:\n")
	fmt.Fprintf(w, "%s\n", rule)
	fmt.Fprintf(w, "Model prediction function for '%s':\n", name)
	fmt.Fprintf(w, "  Prediction function: %d frames -> %d outputs\n", frames, m.ModelOutputs()[name])

	current := pre.Features(frames, -1)
	fmt.Fprintf(w, "  Current features shape: %s\n", shape(framesShape(current)))
	fmt.Fprintf(w, "  Current features dtype: float32\n")
	if out, err := fn(current); err != nil {
		fmt.Fprintf(w, "  Error calling model directly: %v\n", err)
	} else {
		fmt.Fprintf(w, "  Direct model output: %v\n", out)
		fmt.Fprintf(w, "  Direct model output shape: (1, %d)\n", len(out))
	}

	if opts.OursInput > 0 {
		oursFrames := opts.OursInput / features.EmbeddingSize
		fmt.Fprintf(w, "\n%s\n", rule)
		fmt.Fprintf(w, "COMPARISON WITH THE CUSTOM MODEL:\n")
		fmt.Fprintf(w, "%s\n", rule)
		fmt.Fprintf(w, "OpenWakeWord expects: %d feature frames\n", frames)
		fmt.Fprintf(w, "Our model is fed: %d raw values (%d embeddings x %d features)\n", opts.OursInput, oursFrames, features.EmbeddingSize)
		if oursFrames != int64(frames) {
			fmt.Fprintf(w, "This suggests we're using DIFFERENT models!\n")
		} else {
			fmt.Fprintf(w, "Frame counts agree.\n")
		}
	}

	if len(opts.Available) > 0 {
		fmt.Fprintf(w, "\nAll available models:\n")
		for _, a := range opts.Available {
			fmt.Fprintf(w, "  %s\n", a)
		}
	}
	return nil
}

// Step records the state after one chunk of StreamCompare.
type Step struct {
	Chunk         int                `json:"chunk"`
	Samples       int                `json:"samples"`
	Accumulated   int                `json:"accumulated"`
	MelBuffer     [2]int             `json:"mel_buffer"`
	FeatureBuffer [2]int             `json:"feature_buffer"`
	Scores        map[string]float32 `json:"scores"`
	Added         int                `json:"added"`
	EmbeddingMean float64            `json:"embedding_mean"`
	EmbeddingStd  float64            `json:"embedding_std"`
}

// StreamCompare feeds up to n chunks and prints buffer growth and scores
// after each one. It stops early when src is exhausted.
func StreamCompare(w io.Writer, m *wakeword.Model, src Source, n int) ([]Step, error) {
	if n <= 0 {
		return nil, fmt.Errorf("chunk count must be positive, got %d", n)
	}

	fmt.Fprintf(w, "OpenWakeWord models loaded:\n")
	for _, name := range m.Names() {
		fmt.Fprintf(w, "  - %s\n", name)
		fmt.Fprintf(w, "    Input size: %d\n", m.ModelInputs()[name])
		fmt.Fprintf(w, "    Output size: %d\n", m.ModelOutputs()[name])
	}
	fmt.Fprintf(w, "\nTesting OpenWakeWord streaming behavior:\n")

	pre := m.Preprocessor()
	prev := pre.FeatureBufferShape()[0]
	steps := make([]Step, 0, n)
	for i := 0; i < n; i++ {
		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return steps, fmt.Errorf("chunk %d: %w", i+1, err)
		}

		fmt.Fprintf(w, "\n--- Chunk %d ---\n", i+1)
		fmt.Fprintf(w, "Audio chunk shape: (%d,)\n", len(chunk))

		scores, err := m.Predict(chunk)
		if err != nil {
			return steps, fmt.Errorf("chunk %d: %w", i+1, err)
		}

		step := Step{
			Chunk:         i + 1,
			Samples:       len(chunk),
			Accumulated:   pre.Accumulated(),
			MelBuffer:     pre.MelBufferShape(),
			FeatureBuffer: pre.FeatureBufferShape(),
			Scores:        scores,
		}
		step.EmbeddingMean, step.EmbeddingStd = Stats(pre.Features(1, -1))

		fmt.Fprintf(w, "Preprocessor accumulated_samples: %d\n", step.Accumulated)
		fmt.Fprintf(w, "Mel buffer shape: %s\n", shape(step.MelBuffer))
		fmt.Fprintf(w, "Feature buffer shape: %s\n", shape(step.FeatureBuffer))
		for _, label := range m.Labels() {
			fmt.Fprintf(w, "%s: %.6f\n", label, scores[label])
		}

		size := step.FeatureBuffer[0]
		if size > prev {
			step.Added = size - prev
		}
		if i > 0 {
			fmt.Fprintf(w, "Feature buffer size changed: %d -> %d\n", prev, size)
			if step.Added > 0 {
				fmt.Fprintf(w, "Added %d new embeddings\n", step.Added)
			}
		}
		prev = size
		steps = append(steps, step)
	}

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "ANALYSIS COMPLETE\n")
	fmt.Fprintf(w, "%s\n", rule)
	return steps, nil
}

// Stats returns the mean and standard deviation over all values of frames.
func Stats(frames [][]float32) (mean, std float64) {
	flat := features.Flatten(frames)
	if len(flat) == 0 {
		return 0, 0
	}
	x := make([]float64, len(flat))
	for i, v := range flat {
		x[i] = float64(v)
	}
	return stat.PopMeanStdDev(x, nil)
}

// FormatScores prints scores in label order.
func FormatScores(labels []string, scores map[string]float32) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s: %.6f", l, scores[l]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func loadedName(m *wakeword.Model, name string) string {
	want := config.NormalizeName(name)
	for _, n := range m.Names() {
		if config.NormalizeName(n) == want {
			return n
		}
	}
	return name
}

func framesShape(frames [][]float32) [2]int {
	if len(frames) == 0 {
		return [2]int{0, features.EmbeddingSize}
	}
	return [2]int{len(frames), len(frames[0])}
}

func shape(s [2]int) string {
	return fmt.Sprintf("(%d, %d)", s[0], s[1])
}
