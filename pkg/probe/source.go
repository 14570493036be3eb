package probe

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/nzoschke/wakelab/pkg/audio"
)

// Source produces audio chunks. Next returns io.EOF when exhausted.
type Source interface {
	Next() ([]int16, error)
}

// ChunkSeed derives the seed of the chunk noise stream from the seed used to
// prime the preprocessor's feature buffer, so the two streams differ.
func ChunkSeed(seed int64) int64 {
	return seed + 1
}

// NoiseSource produces seeded uniform noise in [-1000, 1000).
type NoiseSource struct {
	rng  *rand.Rand
	size int
}

func NewNoiseSource(seed int64, size int) *NoiseSource {
	return &NoiseSource{rng: rand.New(rand.NewSource(seed)), size: size}
}

func (s *NoiseSource) Next() ([]int16, error) {
	return audio.Noise(s.rng, s.size), nil
}

// PCMSource replays 16 kHz samples in chunks of size. The final chunk may be
// short.
type PCMSource struct {
	chunks [][]int16
}

func NewPCMSource(pcm []int16, size int) *PCMSource {
	return &PCMSource{chunks: audio.Chunks(pcm, size)}
}

// FileSource loads an mp3 or wav file and resamples it to 16 kHz.
func FileSource(path string, size int) (*PCMSource, error) {
	samples, rate, err := audio.LoadMono(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio: %w", err)
	}
	pcm, err := audio.ToPCM16(samples, rate)
	if err != nil {
		return nil, err
	}
	return NewPCMSource(pcm, size), nil
}

func (s *PCMSource) Next() ([]int16, error) {
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}
