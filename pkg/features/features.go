// Package features implements the openWakeWord streaming audio preprocessor:
// raw 16 kHz PCM is turned into a rolling mel-spectrogram buffer, and every
// 80 ms of audio adds one embedding frame to a rolling feature buffer that
// wake-word classifiers read from.
package features

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
)

// openWakeWord preprocessing parameters. One ChunkSize step (80 ms) yields
// EmbeddingStep mel frames of MelHop samples; each embedding looks at the
// last EmbeddingWindow mel frames. The mel model is fed MelContext extra
// samples of history so its frames line up across chunks.
const (
	SampleRate          = 16000
	ChunkSize           = 1280
	MelBins             = 32
	MelHop              = 160
	MelContext          = 3 * MelHop
	EmbeddingWindow     = 76
	EmbeddingStep       = 8
	EmbeddingSize       = 96
	MelBufferMaxLen     = 10 * 97
	FeatureBufferMaxLen = 120
	RawBufferMaxLen     = SampleRate * 10
	initNoiseSamples    = SampleRate * 4
	initNoiseAmplitude  = 1000
)

// MelSpectrogrammer computes transformed mel frames (MelBins values each)
// for a block of PCM samples.
type MelSpectrogrammer interface {
	MelSpectrogram(samples []int16) ([][]float32, error)
}

// Embedder maps a window of EmbeddingWindow mel frames to one embedding.
type Embedder interface {
	Embed(window [][]float32) ([]float32, error)
}

// Preprocessor owns the streaming buffers. It is not safe for concurrent use.
type Preprocessor struct {
	mel  MelSpectrogrammer
	emb  Embedder
	seed int64

	raw         []int16
	remainder   []int16
	accumulated int
	melBuffer   [][]float32
	features    [][]float32
}

// New creates a preprocessor. The feature buffer is primed with the
// embeddings of four seconds of seeded noise, and the mel buffer with
// EmbeddingWindow frames of ones.
func New(mel MelSpectrogrammer, emb Embedder, seed int64) (*Preprocessor, error) {
	if mel == nil || emb == nil {
		return nil, errors.New("mel and embedding backends are required")
	}
	p := &Preprocessor{mel: mel, emb: emb, seed: seed}
	if err := p.Reset(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reset restores the initial buffer state.
func (p *Preprocessor) Reset() error {
	p.raw = p.raw[:0]
	p.remainder = nil
	p.accumulated = 0

	p.melBuffer = make([][]float32, EmbeddingWindow)
	for i := range p.melBuffer {
		p.melBuffer[i] = ones(MelBins)
	}

	rng := rand.New(rand.NewSource(p.seed))
	noise := make([]int16, initNoiseSamples)
	for i := range noise {
		noise[i] = int16(rng.Intn(2*initNoiseAmplitude) - initNoiseAmplitude)
	}
	feats, err := p.Embeddings(noise)
	if err != nil {
		return fmt.Errorf("prime feature buffer: %w", err)
	}
	p.features = feats
	return nil
}

// Embeddings computes embeddings for a complete audio clip, one per
// EmbeddingStep mel frames.
func (p *Preprocessor) Embeddings(samples []int16) ([][]float32, error) {
	spec, err := p.mel.MelSpectrogram(samples)
	if err != nil {
		return nil, fmt.Errorf("mel spectrogram: %w", err)
	}

	var out [][]float32
	for i := 0; i+EmbeddingWindow <= len(spec); i += EmbeddingStep {
		e, err := p.emb.Embed(spec[i : i+EmbeddingWindow])
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Push appends a chunk of audio. Samples are accumulated until a multiple of
// ChunkSize is available; any excess is held back for the next call. It
// returns the number of samples processed into new features, or the number
// of samples accumulated so far when nothing was processed.
func (p *Preprocessor) Push(x []int16) (int, error) {
	if len(x) == 0 {
		return 0, errors.New("empty audio chunk")
	}

	if len(p.remainder) > 0 {
		x = append(append([]int16{}, p.remainder...), x...)
		p.remainder = nil
	}

	if p.accumulated+len(x) >= ChunkSize {
		rem := (p.accumulated + len(x)) % ChunkSize
		even := x[:len(x)-rem]
		p.bufferRaw(even)
		p.accumulated += len(even)
		if rem != 0 {
			p.remainder = append([]int16{}, x[len(x)-rem:]...)
		}
	} else {
		p.accumulated += len(x)
		p.bufferRaw(x)
	}

	processed := 0
	if p.accumulated >= ChunkSize && p.accumulated%ChunkSize == 0 {
		if err := p.streamMel(p.accumulated); err != nil {
			return 0, err
		}

		for i := p.accumulated/ChunkSize - 1; i >= 0; i-- {
			end := len(p.melBuffer) - EmbeddingStep*i
			start := end - EmbeddingWindow
			if start < 0 {
				continue
			}
			e, err := p.emb.Embed(p.melBuffer[start:end])
			if err != nil {
				return 0, fmt.Errorf("embedding: %w", err)
			}
			p.features = append(p.features, e)
		}

		processed = p.accumulated
		p.accumulated = 0
	}

	if len(p.features) > FeatureBufferMaxLen {
		p.features = p.features[len(p.features)-FeatureBufferMaxLen:]
	}

	if processed != 0 {
		return processed, nil
	}
	return p.accumulated, nil
}

func (p *Preprocessor) bufferRaw(x []int16) {
	p.raw = append(p.raw, x...)
	if len(p.raw) > RawBufferMaxLen {
		p.raw = append(p.raw[:0], p.raw[len(p.raw)-RawBufferMaxLen:]...)
	}
}

// streamMel computes mel frames for the newest n samples plus MelContext
// samples of history and appends them to the mel buffer.
func (p *Preprocessor) streamMel(n int) error {
	start := len(p.raw) - n - MelContext
	if start < 0 {
		start = 0
	}
	frames, err := p.mel.MelSpectrogram(p.raw[start:])
	if err != nil {
		return fmt.Errorf("mel spectrogram: %w", err)
	}

	p.melBuffer = append(p.melBuffer, frames...)
	if len(p.melBuffer) > MelBufferMaxLen {
		p.melBuffer = p.melBuffer[len(p.melBuffer)-MelBufferMaxLen:]
	}
	return nil
}

// Features returns n feature frames. start == -1 selects the most recent n
// frames; other values index the buffer with Python slice semantics, so
// negative starts count from the end.
func (p *Preprocessor) Features(n, start int) [][]float32 {
	size := len(p.features)

	var lo, hi int
	if start != -1 {
		lo = start
		hi = start + n
		if hi == 0 {
			hi = size
		}
	} else {
		lo = -n
		hi = size
	}

	lo, hi = sliceIndex(lo, size), sliceIndex(hi, size)
	if hi <= lo {
		return nil
	}

	out := make([][]float32, 0, hi-lo)
	for _, f := range p.features[lo:hi] {
		out = append(out, append([]float32(nil), f...))
	}
	return out
}

// sliceIndex clamps i the way Python clamps slice bounds.
func sliceIndex(i, size int) int {
	if i < 0 {
		i += size
		if i < 0 {
			i = 0
		}
	}
	if i > size {
		i = size
	}
	return i
}

// Accumulated returns the number of samples buffered since the last
// processed chunk.
func (p *Preprocessor) Accumulated() int {
	return p.accumulated
}

// Remainder returns the number of samples held back for the next Push.
func (p *Preprocessor) Remainder() int {
	return len(p.remainder)
}

// MelBufferShape returns the mel buffer shape as (frames, bins).
func (p *Preprocessor) MelBufferShape() [2]int {
	return [2]int{len(p.melBuffer), width(p.melBuffer, MelBins)}
}

// FeatureBufferShape returns the feature buffer shape as (frames, size).
func (p *Preprocessor) FeatureBufferShape() [2]int {
	return [2]int{len(p.features), width(p.features, EmbeddingSize)}
}

// Close releases backends that hold resources.
func (p *Preprocessor) Close() error {
	var errs []error
	if c, ok := p.mel.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := p.emb.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Flatten concatenates frames row by row.
func Flatten(frames [][]float32) []float32 {
	n := 0
	for _, f := range frames {
		n += len(f)
	}
	out := make([]float32, 0, n)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func width(rows [][]float32, fallback int) int {
	if len(rows) == 0 {
		return fallback
	}
	return len(rows[0])
}

func ones(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
