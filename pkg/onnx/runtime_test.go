package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestLibraryPathPrecedence(t *testing.T) {
	t.Setenv(LibraryPathEnv, "/env/libonnxruntime.so")
	assert.Equal(t, "/env/libonnxruntime.so", LibraryPath())

	SetLibraryPath("/explicit/libonnxruntime.so")
	defer SetLibraryPath("")
	assert.Equal(t, "/explicit/libonnxruntime.so", LibraryPath())
}

func TestElementTypeName(t *testing.T) {
	assert.Equal(t, "float32", ElementTypeName(ort.TensorElementDataTypeFloat))
	assert.Equal(t, "int64", ElementTypeName(ort.TensorElementDataTypeInt64))
	assert.Equal(t, "onnx_type_999", ElementTypeName(ort.TensorElementDataType(999)))
}

// TestMelModel runs the openWakeWord mel model when it and the runtime are available.
// Run with: go test -v -run TestMelModel ./pkg/onnx/
func TestMelModel(t *testing.T) {
	modelPath := filepath.Join("..", "..", "models", "melspectrogram.onnx")
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		t.Skip("melspectrogram.onnx not found, skipping")
	}
	if err := Init(); err != nil {
		t.Skipf("ONNX Runtime unavailable: %v", err)
	}

	s, err := Open(modelPath)
	require.NoError(t, err)
	defer s.Close()

	out, err := s.Run(make([]float32, 1760), 1, 1760)
	require.NoError(t, err)

	t.Logf("mel output shape: %v", out.Shape)
	assert.Equal(t, int64(32), out.Shape[len(out.Shape)-1])
	assert.Equal(t, 8*32, len(out.Data))
}
