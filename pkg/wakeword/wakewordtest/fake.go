// Package wakewordtest provides model-free backends for building a
// wakeword.Model in tests.
package wakewordtest

import (
	"fmt"

	"github.com/nzoschke/wakelab/pkg/features"
	"github.com/nzoschke/wakelab/pkg/wakeword"
)

// Mel emits EmbeddingStep zero frames per full chunk of input.
type Mel struct{}

func (Mel) MelSpectrogram(samples []int16) ([][]float32, error) {
	frames := make([][]float32, len(samples)/features.ChunkSize*features.EmbeddingStep)
	for i := range frames {
		frames[i] = make([]float32, features.MelBins)
	}
	return frames, nil
}

// Embedder returns zero embeddings.
type Embedder struct{}

func (Embedder) Embed(window [][]float32) ([]float32, error) {
	return make([]float32, features.EmbeddingSize), nil
}

// Classifier returns Score for every window of exactly FrameCount frames.
type Classifier struct {
	FrameCount int
	Score      float32
}

func (c Classifier) Frames() int  { return c.FrameCount }
func (c Classifier) Outputs() int { return 1 }

func (c Classifier) Classify(frames [][]float32) ([]float32, error) {
	if len(frames) != c.FrameCount {
		return nil, fmt.Errorf("expected %d feature frames, got %d", c.FrameCount, len(frames))
	}
	return []float32{c.Score}, nil
}

// NewModel builds a single-model wakeword.Model named name.
func NewModel(name string, frames int, score float32, seed int64) (*wakeword.Model, error) {
	pre, err := features.New(Mel{}, Embedder{}, seed)
	if err != nil {
		return nil, err
	}
	return wakeword.NewModel(pre, []wakeword.Entry{{Name: name, Classifier: Classifier{FrameCount: frames, Score: score}}}, nil, 0)
}
