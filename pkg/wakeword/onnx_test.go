package wakeword

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzoschke/wakelab/pkg/audio"
	"github.com/nzoschke/wakelab/pkg/config"
	"github.com/nzoschke/wakelab/pkg/features"
	"github.com/nzoschke/wakelab/pkg/onnx"
)

// TestPretrainedHeyMycroft runs the real models when they and the runtime
// are available.
// Run with: go test -v -run TestPretrainedHeyMycroft ./pkg/wakeword/
func TestPretrainedHeyMycroft(t *testing.T) {
	reg := config.Default()
	reg.ModelsDir = "../../models"
	for _, p := range []string{reg.MelPath(), reg.EmbeddingPath(), reg.Resolve("hey_mycroft_v0.1.onnx")} {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("model not found: %s", p)
		}
	}
	if err := onnx.Init(); err != nil {
		t.Skipf("ONNX Runtime not available: %v", err)
	}

	for _, mel := range []string{MelONNX, MelNative} {
		t.Run(mel, func(t *testing.T) {
			m, err := New(Config{WakeWords: []string{"hey mycroft"}, Registry: reg, Mel: mel})
			require.NoError(t, err)
			defer m.Close()

			assert.Equal(t, map[string]int{"hey_mycroft": 16}, m.ModelInputs())
			assert.Equal(t, map[string]int{"hey_mycroft": 1}, m.ModelOutputs())
			assert.Equal(t, [2]int{41, features.EmbeddingSize}, m.Preprocessor().FeatureBufferShape())

			src := audio.Noise(rand.New(rand.NewSource(1)), 10*features.ChunkSize)
			for _, c := range audio.Chunks(src, features.ChunkSize) {
				p, err := m.Predict(c)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, p["hey_mycroft"], float32(0))
				assert.LessOrEqual(t, p["hey_mycroft"], float32(1))
			}
			assert.Equal(t, [2]int{51, features.EmbeddingSize}, m.Preprocessor().FeatureBufferShape())
		})
	}
}
