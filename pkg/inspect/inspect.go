// Package inspect reports the declared inputs and outputs of serialized
// models and checks whether a wake-word model fits the feature pipeline.
package inspect

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nzoschke/wakelab/pkg/features"
	"github.com/nzoschke/wakelab/pkg/onnx"
	"github.com/nzoschke/wakelab/pkg/tflite"
)

// Model formats.
const (
	FormatTFLite     = "tflite"
	FormatONNX       = "onnx"
	FormatSavedModel = "savedmodel"
)

// TensorInfo describes one declared input or output.
type TensorInfo struct {
	Name  string  `json:"name"`
	Shape []int64 `json:"shape"`
	Type  string  `json:"type"`
}

// ModelInfo is the inspection result for one model file.
type ModelInfo struct {
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Format  string       `json:"format,omitempty"`
	Inputs  []TensorInfo `json:"inputs"`
	Outputs []TensorInfo `json:"outputs"`
	Error   string       `json:"error,omitempty"`
}

// Target names a model file to inspect.
type Target struct {
	Name string
	Path string
}

// ElementCount multiplies the dimensions of shape, skipping dimensions <= 0
// (dynamic batch markers).
func ElementCount(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		if d > 0 {
			n *= d
		}
	}
	return n
}

// TotalInputSize is the element count of the first input.
func (m *ModelInfo) TotalInputSize() int64 {
	if len(m.Inputs) == 0 {
		return 0
	}
	return ElementCount(m.Inputs[0].Shape)
}

// TotalOutputSize is the element count of the first output.
func (m *ModelInfo) TotalOutputSize() int64 {
	if len(m.Outputs) == 0 {
		return 0
	}
	return ElementCount(m.Outputs[0].Shape)
}

// EmbeddingFrames is the number of 96-wide embedding frames the first input
// holds.
func (m *ModelInfo) EmbeddingFrames() int64 {
	return m.TotalInputSize() / features.EmbeddingSize
}

// DetectFormat picks the decoder for path: directories are SavedModels,
// otherwise the extension decides, falling back to the TFL3 identifier.
func DetectFormat(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return FormatSavedModel, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tflite":
		return FormatTFLite, nil
	case ".onnx":
		return FormatONNX, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 8)
	if _, err := io.ReadFull(f, head); err == nil && bytes.Equal(head[4:8], []byte(tflite.FileIdentifier)) {
		return FormatTFLite, nil
	}
	return "", fmt.Errorf("unknown model format: %s", path)
}

// Describe loads a model's declared inputs and outputs.
func Describe(name, path string) (*ModelInfo, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	info := &ModelInfo{Name: name, Path: path, Format: format}
	switch format {
	case FormatTFLite:
		err = describeTFLite(info)
	case FormatONNX:
		err = describeONNX(info)
	case FormatSavedModel:
		err = describeSavedModel(info)
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

func describeTFLite(info *ModelInfo) error {
	m, err := tflite.Open(info.Path)
	if err != nil {
		return err
	}
	sg, err := m.Main()
	if err != nil {
		return err
	}
	info.Inputs = tfliteTensors(sg.InputTensors())
	info.Outputs = tfliteTensors(sg.OutputTensors())
	return nil
}

func tfliteTensors(ts []tflite.Tensor) []TensorInfo {
	out := make([]TensorInfo, len(ts))
	for i, t := range ts {
		shape := make([]int64, len(t.Shape))
		for j, d := range t.Shape {
			shape[j] = int64(d)
		}
		out[i] = TensorInfo{Name: t.Name, Shape: shape, Type: t.Type.String()}
	}
	return out
}

func describeONNX(info *ModelInfo) error {
	in, out, err := onnx.Describe(info.Path)
	if err != nil {
		return err
	}
	info.Inputs = onnxTensors(in)
	info.Outputs = onnxTensors(out)
	return nil
}

func onnxTensors(ts []onnx.IOInfo) []TensorInfo {
	out := make([]TensorInfo, len(ts))
	for i, t := range ts {
		out[i] = TensorInfo{Name: t.Name, Shape: t.Shape, Type: t.Type}
	}
	return out
}

// Load describes a target, recording any failure, including a decoder
// panic, in the Error field.
func Load(t Target) (info ModelInfo) {
	info = ModelInfo{Name: t.Name, Path: t.Path}
	defer func() {
		if r := recover(); r != nil {
			info.Error = fmt.Sprint(r)
		}
	}()

	m, err := Describe(t.Name, t.Path)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	return *m
}

// Inspect prints a report for each target and returns the results. A
// target that fails to load prints its error and the next target runs.
func Inspect(w io.Writer, targets ...Target) []ModelInfo {
	infos := make([]ModelInfo, 0, len(targets))
	for _, t := range targets {
		info := Load(t)
		Print(w, info)
		infos = append(infos, info)
	}
	return infos
}

var rule = strings.Repeat("=", 50)

// Print writes the report for one model.
func Print(w io.Writer, info ModelInfo) {
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "INSPECTING: %s\n", info.Name)
	fmt.Fprintf(w, "File: %s\n", info.Path)
	fmt.Fprintf(w, "%s\n", rule)

	if info.Error != "" {
		fmt.Fprintf(w, "ERROR: %s\n", info.Error)
		return
	}

	fmt.Fprintf(w, "INPUT DETAILS:\n")
	printTensors(w, "Input", info.Inputs)
	fmt.Fprintf(w, "\nOUTPUT DETAILS:\n")
	printTensors(w, "Output", info.Outputs)

	fmt.Fprintf(w, "\nTOTAL INPUT SIZE: %d\n", info.TotalInputSize())
	fmt.Fprintf(w, "TOTAL OUTPUT SIZE: %d\n", info.TotalOutputSize())
}

func printTensors(w io.Writer, kind string, ts []TensorInfo) {
	for i, t := range ts {
		fmt.Fprintf(w, "  %s %d:\n", kind, i)
		fmt.Fprintf(w, "    Name: %s\n", t.Name)
		fmt.Fprintf(w, "    Shape: %v\n", t.Shape)
		fmt.Fprintf(w, "    Type: %s\n", t.Type)
	}
}
