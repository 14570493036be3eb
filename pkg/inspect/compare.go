package inspect

import (
	"fmt"
	"io"

	"github.com/nzoschke/wakelab/pkg/features"
)

// Compatibility compares the input size of a custom-trained wake-word model
// with the official one.
type Compatibility struct {
	Ours           string `json:"ours"`
	Official       string `json:"official"`
	OursInput      int64  `json:"ours_input"`
	OfficialInput  int64  `json:"official_input"`
	OursFrames     int64  `json:"ours_frames"`
	OfficialFrames int64  `json:"official_frames"`
	Compatible     bool   `json:"compatible"`
}

// Compare derives embedding frame counts from the first input of each model.
// Models that failed to load are never compatible.
func Compare(ours, official ModelInfo) Compatibility {
	c := Compatibility{
		Ours:           ours.Name,
		Official:       official.Name,
		OursInput:      ours.TotalInputSize(),
		OfficialInput:  official.TotalInputSize(),
		OursFrames:     ours.EmbeddingFrames(),
		OfficialFrames: official.EmbeddingFrames(),
	}
	c.Compatible = ours.Error == "" && official.Error == "" &&
		len(ours.Inputs) > 0 && c.OursInput == c.OfficialInput
	return c
}

// PrintAnalysis writes the compatibility analysis.
func PrintAnalysis(w io.Writer, c Compatibility) {
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "ANALYSIS:\n")
	fmt.Fprintf(w, "%s\n", rule)
	fmt.Fprintf(w, "%s expects %d inputs (%d embedding frames)\n", c.Ours, c.OursInput, c.OursFrames)
	fmt.Fprintf(w, "%s expects %d inputs (%d embedding frames)\n", c.Official, c.OfficialInput, c.OfficialFrames)

	if c.Compatible {
		fmt.Fprintf(w, "The models are compatible.\n")
		return
	}

	fmt.Fprintf(w, "If our model expects %d inputs but OpenWakeWord expects %d,\n", c.OursInput, c.OfficialInput)
	fmt.Fprintf(w, "then we're using incompatible models!\n")
	fmt.Fprintf(w, "We need to:\n")
	fmt.Fprintf(w, "1. Use the same model as OpenWakeWord\n")
	fmt.Fprintf(w, "2. Feed it %d embedding frames (%dx%d=%d) instead of %d (%dx%d=%d)\n",
		c.OfficialFrames, c.OfficialFrames, features.EmbeddingSize, c.OfficialInput,
		c.OursFrames, c.OursFrames, features.EmbeddingSize, c.OursInput)
}

// Pipeline summarizes how the mel, embedding and wake-word stages chain.
type Pipeline struct {
	MelOutput       []int64 `json:"mel_output"`
	EmbeddingInput  []int64 `json:"embedding_input"`
	EmbeddingOutput []int64 `json:"embedding_output"`
	WakeWordInput   []int64 `json:"wakeword_input"`
	WakeWordOutput  []int64 `json:"wakeword_output"`
	ChunksNeeded    int64   `json:"chunks_needed"`
}

// NewPipeline computes the summary from the three stage models. Mel output
// per chunk is taken as EmbeddingStep frames of MelBins.
func NewPipeline(mel, embedding, wake ModelInfo) Pipeline {
	p := Pipeline{
		MelOutput:       firstShape(mel.Outputs),
		EmbeddingInput:  firstShape(embedding.Inputs),
		EmbeddingOutput: firstShape(embedding.Outputs),
		WakeWordInput:   firstShape(wake.Inputs),
		WakeWordOutput:  firstShape(wake.Outputs),
	}
	perChunk := int64(features.EmbeddingStep * features.MelBins)
	p.ChunksNeeded = (embedding.TotalInputSize() + perChunk - 1) / perChunk
	return p
}

// PrintPipeline writes the stage summary.
func PrintPipeline(w io.Writer, p Pipeline) {
	perChunk := features.EmbeddingStep * features.MelBins
	fmt.Fprintf(w, "\n=== OpenWakeWord Pipeline Summary ===\n")
	fmt.Fprintf(w, "Stage 1 - Melspectrogram: [1 %d] -> %v (%d features per chunk)\n", features.ChunkSize, p.MelOutput, perChunk)
	fmt.Fprintf(w, "Stage 2 - Embedding: %v -> %v (%d -> %d features)\n",
		p.EmbeddingInput, p.EmbeddingOutput, ElementCount(p.EmbeddingInput), ElementCount(p.EmbeddingOutput))
	fmt.Fprintf(w, "Stage 3 - Wakeword: %v -> %v (%d -> %d)\n",
		p.WakeWordInput, p.WakeWordOutput, ElementCount(p.WakeWordInput), ElementCount(p.WakeWordOutput))

	fmt.Fprintf(w, "\nPipeline calculations:\n")
	fmt.Fprintf(w, "- Mel features per chunk: %d\n", perChunk)
	fmt.Fprintf(w, "- Embedding input needed: %d\n", ElementCount(p.EmbeddingInput))
	fmt.Fprintf(w, "- Chunks needed for embedding: %d\n", p.ChunksNeeded)
	fmt.Fprintf(w, "- Time to accumulate: %.1fs (at 80ms per chunk)\n", float64(p.ChunksNeeded)*0.08)
}

func firstShape(ts []TensorInfo) []int64 {
	if len(ts) == 0 {
		return nil
	}
	return ts[0].Shape
}
