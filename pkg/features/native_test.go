package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeMelFrameCount(t *testing.T) {
	m := NewNativeMel()

	// one chunk plus context yields one embedding step of frames
	frames, err := m.MelSpectrogram(make([]int16, ChunkSize+MelContext))
	require.NoError(t, err)
	require.Len(t, frames, EmbeddingStep)
	assert.Len(t, frames[0], MelBins)

	frames, err = m.MelSpectrogram(make([]int16, 100))
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestNativeMelSilenceFloor(t *testing.T) {
	frames, err := NewNativeMel().MelSpectrogram(make([]int16, 1024))
	require.NoError(t, err)
	for _, v := range frames[0] {
		assert.InDelta(t, -8.0, v, 1e-6)
	}
}

func TestNativeMelTone(t *testing.T) {
	samples := make([]int16, 2048)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*1000*float64(i)/SampleRate))
	}

	frames, err := NewNativeMel().MelSpectrogram(samples)
	require.NoError(t, err)

	peak := 0
	for b, v := range frames[0] {
		if v > frames[0][peak] {
			peak = b
		}
	}

	// the loudest band should contain 1 kHz
	edgesLo, edgesHi := hzToMel(60), hzToMel(3800)
	step := (edgesHi - edgesLo) / float64(MelBins+1)
	left := melToHz(edgesLo + step*float64(peak))
	right := melToHz(edgesLo + step*float64(peak+2))
	assert.Less(t, left, 1000.0)
	assert.Greater(t, right, 1000.0)
}

func TestMelFilterbank(t *testing.T) {
	filters := melFilterbank(MelBins, 512, SampleRate, 60, 3800)
	require.Len(t, filters, MelBins)
	for b, f := range filters {
		require.Len(t, f, 257)
		sum := 0.0
		for _, w := range f {
			sum += w
		}
		assert.Greater(t, sum, 0.0, "band %d is empty", b)
	}
}

func TestPreprocessorWithNativeMel(t *testing.T) {
	p, err := New(NewNativeMel(), &fakeEmbedder{}, 7)
	require.NoError(t, err)
	assert.Equal(t, 41, p.FeatureBufferShape()[0])

	n, err := p.Push(make([]int16, ChunkSize))
	require.NoError(t, err)
	assert.Equal(t, ChunkSize, n)
	assert.Equal(t, EmbeddingWindow+firstChunkMelFrames, p.MelBufferShape()[0])
}
