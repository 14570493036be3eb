package features

import (
	"errors"
	"fmt"

	"github.com/nzoschke/wakelab/pkg/onnx"
)

// ONNXMel runs the openWakeWord melspectrogram model.
type ONNXMel struct {
	session *onnx.Session
}

// NewONNXMel loads melspectrogram.onnx.
func NewONNXMel(path string) (*ONNXMel, error) {
	s, err := onnx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load mel model: %w", err)
	}
	return &ONNXMel{session: s}, nil
}

// MelSpectrogram feeds raw int16 values (not normalized) as float32 with
// shape (1, samples) and applies the x/10 + 2 transform to the output.
func (m *ONNXMel) MelSpectrogram(samples []int16) ([][]float32, error) {
	if len(samples) == 0 {
		return nil, errors.New("no samples")
	}
	in := make([]float32, len(samples))
	for i, s := range samples {
		in[i] = float32(s)
	}

	out, err := m.session.Run(in, 1, int64(len(in)))
	if err != nil {
		return nil, err
	}
	// Output is (1, 1, frames, 32)
	if len(out.Data)%MelBins != 0 {
		return nil, fmt.Errorf("unexpected mel output shape: %v", out.Shape)
	}

	frames := make([][]float32, len(out.Data)/MelBins)
	for t := range frames {
		row := make([]float32, MelBins)
		for b := range row {
			row[b] = out.Data[t*MelBins+b]/10 + 2
		}
		frames[t] = row
	}
	return frames, nil
}

// Close releases the session.
func (m *ONNXMel) Close() error {
	return m.session.Close()
}

// ONNXEmbedder runs the openWakeWord embedding model.
type ONNXEmbedder struct {
	session *onnx.Session
}

// NewONNXEmbedder loads embedding_model.onnx.
func NewONNXEmbedder(path string) (*ONNXEmbedder, error) {
	s, err := onnx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load embedding model: %w", err)
	}
	return &ONNXEmbedder{session: s}, nil
}

// Embed runs one window with input shape (1, 76, 32, 1).
func (e *ONNXEmbedder) Embed(window [][]float32) ([]float32, error) {
	if len(window) != EmbeddingWindow {
		return nil, fmt.Errorf("expected %d mel frames, got %d", EmbeddingWindow, len(window))
	}
	out, err := e.session.Run(Flatten(window), 1, EmbeddingWindow, MelBins, 1)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Close releases the session.
func (e *ONNXEmbedder) Close() error {
	return e.session.Close()
}

// NewONNX creates a preprocessor backed by the mel and embedding models. A
// nil mel selects melPath; pass a NativeMel to skip the mel model.
func NewONNX(mel MelSpectrogrammer, melPath, embeddingPath string, seed int64) (*Preprocessor, error) {
	if mel == nil {
		m, err := NewONNXMel(melPath)
		if err != nil {
			return nil, err
		}
		mel = m
	}

	emb, err := NewONNXEmbedder(embeddingPath)
	if err != nil {
		if c, ok := mel.(*ONNXMel); ok {
			c.Close()
		}
		return nil, err
	}

	p, err := New(mel, emb, seed)
	if err != nil {
		emb.Close()
		if c, ok := mel.(*ONNXMel); ok {
			c.Close()
		}
		return nil, err
	}
	return p, nil
}
