package inspect

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzoschke/wakelab/pkg/tflite/tflitetest"
)

func wakeWordSpec(frames int32) tflitetest.Spec {
	return tflitetest.Spec{
		Version: 3,
		Inputs:  []tflitetest.Tensor{{Name: "onnx::Flatten_0", Shape: []int32{1, frames, 96}}},
		Outputs: []tflitetest.Tensor{{Name: "39", Shape: []int32{1, 1}}},
	}
}

func writeModel(t *testing.T, dir, name string, spec tflitetest.Spec) string {
	t.Helper()
	path, err := tflitetest.Write(dir, name, spec)
	require.NoError(t, err)
	return path
}

func TestElementCount(t *testing.T) {
	assert.Equal(t, int64(1536), ElementCount([]int64{1, 16, 96}))
	assert.Equal(t, int64(1536), ElementCount([]int64{-1, 16, 96}))
	assert.Equal(t, int64(32), ElementCount([]int64{-1, 1, -1, 32}))
	assert.Equal(t, int64(1), ElementCount(nil))
}

func TestDescribeTFLite(t *testing.T) {
	path := writeModel(t, t.TempDir(), "hey_mycroft_v0.1.tflite", wakeWordSpec(16))

	info, err := Describe("Hey Mycroft", path)
	require.NoError(t, err)

	assert.Equal(t, FormatTFLite, info.Format)
	require.Len(t, info.Inputs, 1)
	assert.Equal(t, TensorInfo{Name: "onnx::Flatten_0", Shape: []int64{1, 16, 96}, Type: "float32"}, info.Inputs[0])
	assert.Equal(t, int64(1536), info.TotalInputSize())
	assert.Equal(t, int64(1), info.TotalOutputSize())
	assert.Equal(t, int64(16), info.EmbeddingFrames())
}

func TestDetectFormat(t *testing.T) {
	dir := t.TempDir()

	// identifier sniffing for files without a known extension
	path := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(path, tflitetest.Build(wakeWordSpec(16)), 0644))
	format, err := DetectFormat(path)
	require.NoError(t, err)
	assert.Equal(t, FormatTFLite, format)

	format, err = DetectFormat(dir)
	require.NoError(t, err)
	assert.Equal(t, FormatSavedModel, format)

	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("not a model"), 0644))
	_, err = DetectFormat(junk)
	assert.ErrorContains(t, err, "unknown model format")

	_, err = DetectFormat(filepath.Join(dir, "missing.tflite"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	ours := writeModel(t, dir, "ours.tflite", wakeWordSpec(64))
	corrupt := filepath.Join(dir, "corrupt.tflite")
	require.NoError(t, os.WriteFile(corrupt, []byte("\x00\x00\x00\x00TFL3\xff\xff"), 0644))

	var buf bytes.Buffer
	infos := Inspect(&buf,
		Target{Name: "Missing", Path: filepath.Join(dir, "missing.tflite")},
		Target{Name: "Corrupt", Path: corrupt},
		Target{Name: "Ours", Path: ours},
	)

	require.Len(t, infos, 3)
	assert.NotEmpty(t, infos[0].Error)
	assert.NotEmpty(t, infos[1].Error)
	assert.Empty(t, infos[2].Error)

	out := buf.String()
	assert.Contains(t, out, "INSPECTING: Missing")
	assert.Contains(t, out, "ERROR: ")
	assert.Contains(t, out, "INSPECTING: Ours")
	assert.Contains(t, out, "    Shape: [1 64 96]\n")
	assert.Contains(t, out, "    Type: float32\n")
	assert.Contains(t, out, "TOTAL INPUT SIZE: 6144\n")
	assert.Contains(t, out, "TOTAL OUTPUT SIZE: 1\n")
}

func TestInspectSavedModelWithoutTensorflow(t *testing.T) {
	info := Load(Target{Name: "SavedModel", Path: t.TempDir()})
	assert.NotEmpty(t, info.Error)
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	ours := Load(Target{Name: "Ours", Path: writeModel(t, dir, "ours.tflite", wakeWordSpec(64))})
	official := Load(Target{Name: "Official", Path: writeModel(t, dir, "official.tflite", wakeWordSpec(16))})

	c := Compare(ours, official)
	assert.Equal(t, Compatibility{
		Ours:           "Ours",
		Official:       "Official",
		OursInput:      6144,
		OfficialInput:  1536,
		OursFrames:     64,
		OfficialFrames: 16,
	}, c)

	var buf bytes.Buffer
	PrintAnalysis(&buf, c)
	assert.Contains(t, buf.String(), "then we're using incompatible models!")
	assert.Contains(t, buf.String(), "2. Feed it 16 embedding frames (16x96=1536) instead of 64 (64x96=6144)")

	same := Compare(official, official)
	assert.True(t, same.Compatible)
	buf.Reset()
	PrintAnalysis(&buf, same)
	assert.Contains(t, buf.String(), "The models are compatible.")

	broken := Compare(ModelInfo{Name: "Missing", Error: "no such file"}, ModelInfo{Name: "Missing", Error: "no such file"})
	assert.False(t, broken.Compatible)
}

func TestPipeline(t *testing.T) {
	mel := ModelInfo{Outputs: []TensorInfo{{Shape: []int64{1, 1, 5, 32}}}}
	emb := ModelInfo{
		Inputs:  []TensorInfo{{Shape: []int64{1, 76, 32, 1}}},
		Outputs: []TensorInfo{{Shape: []int64{1, 1, 1, 96}}},
	}
	wake := ModelInfo{
		Inputs:  []TensorInfo{{Shape: []int64{1, 16, 96}}},
		Outputs: []TensorInfo{{Shape: []int64{1, 1}}},
	}

	p := NewPipeline(mel, emb, wake)
	// 76*32 = 2432 mel values at 256 per chunk
	assert.Equal(t, int64(10), p.ChunksNeeded)

	var buf bytes.Buffer
	PrintPipeline(&buf, p)
	assert.Contains(t, buf.String(), "Stage 2 - Embedding: [1 76 32 1] -> [1 1 1 96] (2432 -> 96 features)")
	assert.Contains(t, buf.String(), "- Time to accumulate: 0.8s (at 80ms per chunk)")
}
