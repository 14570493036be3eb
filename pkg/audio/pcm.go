package audio

import (
	"fmt"
	"math"
	"math/rand"

	resampling "github.com/tphakala/go-audio-resampling"
)

// SampleRate is the rate the feature models expect.
const SampleRate = 16000

// NoiseAmplitude bounds synthetic noise to [-NoiseAmplitude, NoiseAmplitude).
const NoiseAmplitude = 1000

// Noise returns n samples of uniform noise in [-1000, 1000).
func Noise(rng *rand.Rand, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(rng.Intn(2*NoiseAmplitude) - NoiseAmplitude)
	}
	return out
}

// ToPCM16 resamples mono float samples to 16 kHz and quantizes them to
// int16, clipping to the int16 range.
func ToPCM16(samples []float32, sampleRate int) ([]int16, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}

	out := in
	if sampleRate != SampleRate && len(in) > 0 {
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(sampleRate),
			OutputRate: SampleRate,
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler: %w", err)
		}
		out, err = r.Process(in)
		if err != nil {
			return nil, fmt.Errorf("resample: %w", err)
		}
	}

	pcm := make([]int16, len(out))
	for i, v := range out {
		pcm[i] = int16(math.Max(-32768, math.Min(32767, math.Round(v*32768))))
	}
	return pcm, nil
}

// Chunks splits pcm into chunks of size samples. The last chunk may be
// shorter.
func Chunks(pcm []int16, size int) [][]int16 {
	if size <= 0 {
		return nil
	}
	var out [][]int16
	for start := 0; start < len(pcm); start += size {
		end := min(start+size, len(pcm))
		out = append(out, pcm[start:end])
	}
	return out
}
