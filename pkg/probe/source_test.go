package probe

import (
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzoschke/wakelab/pkg/audio"
	"github.com/nzoschke/wakelab/pkg/features"
)

func TestPCMSource(t *testing.T) {
	pcm := make([]int16, 5)
	for i := range pcm {
		pcm[i] = int16(i)
	}
	src := NewPCMSource(pcm, 2)

	var got [][]int16
	for {
		c, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, c)
	}
	assert.Equal(t, [][]int16{{0, 1}, {2, 3}, {4}}, got)

	_, err := src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNoiseSource(t *testing.T) {
	a, err := NewNoiseSource(3, 1280).Next()
	require.NoError(t, err)
	b, err := NewNoiseSource(3, 1280).Next()
	require.NoError(t, err)
	c, err := NewNoiseSource(4, 1280).Next()
	require.NoError(t, err)

	assert.Len(t, a, 1280)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestChunkNoiseDiffersFromFeaturePriming(t *testing.T) {
	const seed = 7
	priming := audio.Noise(rand.New(rand.NewSource(seed)), features.ChunkSize)

	c, err := NewNoiseSource(ChunkSeed(seed), features.ChunkSize).Next()
	require.NoError(t, err)
	assert.NotEqual(t, priming, c)
}
