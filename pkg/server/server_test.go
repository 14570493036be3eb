package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzoschke/wakelab/pkg/config"
	"github.com/nzoschke/wakelab/pkg/probe"
	"github.com/nzoschke/wakelab/pkg/tflite/tflitetest"
	"github.com/nzoschke/wakelab/pkg/wakeword"
	"github.com/nzoschke/wakelab/pkg/wakeword/wakewordtest"
)

func wakeWordModel(t *testing.T, dir, name string, frames int32) string {
	t.Helper()
	path, err := tflitetest.Write(dir, name, tflitetest.Spec{
		Inputs:  []tflitetest.Tensor{{Name: "input", Shape: []int32{1, frames, 96}}},
		Outputs: []tflitetest.Tensor{{Name: "output", Shape: []int32{1, 1}}},
	})
	require.NoError(t, err)
	return path
}

// testServer registers one ours/official pair and one missing model.
func testServer(t *testing.T, factory ModelFactory) *Server {
	t.Helper()
	dir := t.TempDir()
	ours := wakeWordModel(t, dir, "ours.tflite", 64)
	official := wakeWordModel(t, dir, "official.tflite", 16)

	cfg := config.Default()
	cfg.Inspect = []config.InspectTarget{
		{Name: "Ours", Path: ours},
		{Name: "Official", Path: official},
		{Name: "Missing", Path: filepath.Join(dir, "missing.tflite")},
	}
	cfg.Compare = config.ComparePair{Ours: ours, Official: official}

	if factory == nil {
		factory = func(seed int64) (*wakeword.Model, error) {
			return wakewordtest.NewModel("hey_mycroft", 16, 0.5, seed)
		}
	}
	return New(cfg, factory)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	rec := get(t, testServer(t, nil), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<wakelab-app>")
}

func TestListModels(t *testing.T) {
	rec := get(t, testServer(t, nil), "/api/models")
	require.Equal(t, http.StatusOK, rec.Code)

	var out Models
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Models, 3)
	assert.Equal(t, []int64{1, 64, 96}, out.Models[0].Inputs[0].Shape)
	assert.Empty(t, out.Models[1].Error)
	assert.NotEmpty(t, out.Models[2].Error)

	assert.False(t, out.Compatibility.Compatible)
	assert.Equal(t, int64(64), out.Compatibility.OursFrames)
	assert.Equal(t, int64(16), out.Compatibility.OfficialFrames)
}

func TestCompare(t *testing.T) {
	rec := get(t, testServer(t, nil), "/api/compare?chunks=7&seed=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var steps []probe.Step
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &steps))
	require.Len(t, steps, 7)
	assert.Equal(t, [2]int{48, 96}, steps[6].FeatureBuffer)
	assert.Equal(t, float32(0.5), steps[6].Scores["hey_mycroft"])
}

func TestCompareBadRequest(t *testing.T) {
	s := testServer(t, nil)
	for _, target := range []string{
		"/api/compare?chunks=0",
		"/api/compare?chunks=abc",
		"/api/compare?chunks=100000",
		"/api/compare?seed=x",
	} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestCompareErrors(t *testing.T) {
	s := testServer(t, func(int64) (*wakeword.Model, error) {
		return nil, errors.New("onnxruntime not found")
	})
	rec := get(t, s, "/api/compare")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "onnxruntime not found")

	// a 64-frame model cannot run on the 16-frame pipeline
	s = testServer(t, func(seed int64) (*wakeword.Model, error) {
		return wakewordtest.NewModel("ours", 64, 0.5, seed)
	})
	rec = get(t, s, "/api/compare")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "expected 64 feature frames")
}
