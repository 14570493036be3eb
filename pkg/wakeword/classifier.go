package wakeword

import (
	"fmt"

	"github.com/nzoschke/wakelab/pkg/features"
	"github.com/nzoschke/wakelab/pkg/onnx"
)

// Classifier scores a window of embedding frames.
type Classifier interface {
	// Frames is the number of feature frames per input.
	Frames() int
	// Outputs is the number of scores per prediction.
	Outputs() int
	Classify(frames [][]float32) ([]float32, error)
}

// ONNXClassifier runs a wake-word model with input shape (1, frames, 96).
type ONNXClassifier struct {
	session *onnx.Session
	frames  int
	outputs int
}

// NewONNXClassifier loads a wake-word model and reads its frame count from
// input dimension 1.
func NewONNXClassifier(path string) (*ONNXClassifier, error) {
	s, err := onnx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load wake-word model: %w", err)
	}

	in := s.Inputs[0].Shape
	if len(in) < 3 || in[1] <= 0 || in[2] != features.EmbeddingSize {
		s.Close()
		return nil, fmt.Errorf("model %s: unsupported input shape %v, want (1, frames, %d)", path, in, features.EmbeddingSize)
	}

	outputs := 1
	if out := s.Outputs[0].Shape; len(out) > 0 && out[len(out)-1] > 0 {
		outputs = int(out[len(out)-1])
	}

	return &ONNXClassifier{session: s, frames: int(in[1]), outputs: outputs}, nil
}

func (c *ONNXClassifier) Frames() int  { return c.frames }
func (c *ONNXClassifier) Outputs() int { return c.outputs }

// Classify runs the model on exactly Frames() feature frames.
func (c *ONNXClassifier) Classify(frames [][]float32) ([]float32, error) {
	if len(frames) != c.frames {
		return nil, fmt.Errorf("expected %d feature frames, got %d", c.frames, len(frames))
	}
	out, err := c.session.Run(features.Flatten(frames), 1, int64(c.frames), features.EmbeddingSize)
	if err != nil {
		return nil, err
	}
	if len(out.Data) < c.outputs {
		return nil, fmt.Errorf("expected %d outputs, got shape %v", c.outputs, out.Shape)
	}
	return out.Data[:c.outputs], nil
}

// Close releases the session.
func (c *ONNXClassifier) Close() error {
	return c.session.Close()
}
