// Package tflite decodes TensorFlow Lite model files far enough to report
// their declared input and output tensors. It does not execute models.
package tflite

import (
	"errors"
	"fmt"
	"os"
)

// FileIdentifier is the flatbuffer file identifier of .tflite files.
const FileIdentifier = "TFL3"

// ErrNotTFLite is returned when a buffer lacks the TFL3 identifier.
var ErrNotTFLite = errors.New("not a TFLite model (missing TFL3 identifier)")

// TensorType is the element type of a tensor, as declared in schema.fbs.
type TensorType int8

const (
	TensorTypeFloat32    TensorType = 0
	TensorTypeFloat16    TensorType = 1
	TensorTypeInt32      TensorType = 2
	TensorTypeUint8      TensorType = 3
	TensorTypeInt64      TensorType = 4
	TensorTypeString     TensorType = 5
	TensorTypeBool       TensorType = 6
	TensorTypeInt16      TensorType = 7
	TensorTypeComplex64  TensorType = 8
	TensorTypeInt8       TensorType = 9
	TensorTypeFloat64    TensorType = 10
	TensorTypeComplex128 TensorType = 11
	TensorTypeUint64     TensorType = 12
	TensorTypeResource   TensorType = 13
	TensorTypeVariant    TensorType = 14
	TensorTypeUint32     TensorType = 15
	TensorTypeUint16     TensorType = 16
	TensorTypeInt4       TensorType = 17
	TensorTypeBfloat16   TensorType = 18
)

var tensorTypeNames = map[TensorType]string{
	TensorTypeFloat32:    "float32",
	TensorTypeFloat16:    "float16",
	TensorTypeInt32:      "int32",
	TensorTypeUint8:      "uint8",
	TensorTypeInt64:      "int64",
	TensorTypeString:     "string",
	TensorTypeBool:       "bool",
	TensorTypeInt16:      "int16",
	TensorTypeComplex64:  "complex64",
	TensorTypeInt8:       "int8",
	TensorTypeFloat64:    "float64",
	TensorTypeComplex128: "complex128",
	TensorTypeUint64:     "uint64",
	TensorTypeResource:   "resource",
	TensorTypeVariant:    "variant",
	TensorTypeUint32:     "uint32",
	TensorTypeUint16:     "uint16",
	TensorTypeInt4:       "int4",
	TensorTypeBfloat16:   "bfloat16",
}

// String returns the numpy-style dtype name.
func (t TensorType) String() string {
	if name, ok := tensorTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TensorType(%d)", int8(t))
}

// Tensor describes one tensor of a subgraph.
type Tensor struct {
	Name           string
	Type           TensorType
	Shape          []int32
	ShapeSignature []int32 // -1 marks dynamic dimensions; nil when absent
}

// SubGraph holds the tensors of one subgraph and the indices of its
// inputs and outputs.
type SubGraph struct {
	Name    string
	Tensors []Tensor
	Inputs  []int32
	Outputs []int32
}

// InputTensors returns the subgraph's declared input tensors in order.
func (s *SubGraph) InputTensors() []Tensor {
	return s.pick(s.Inputs)
}

// OutputTensors returns the subgraph's declared output tensors in order.
func (s *SubGraph) OutputTensors() []Tensor {
	return s.pick(s.Outputs)
}

func (s *SubGraph) pick(idx []int32) []Tensor {
	out := make([]Tensor, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && int(i) < len(s.Tensors) {
			out = append(out, s.Tensors[i])
		}
	}
	return out
}

// Model is a decoded .tflite file.
type Model struct {
	Version     uint32
	Description string
	Subgraphs   []SubGraph
}

// Main returns the primary subgraph, which is the one interpreters run.
func (m *Model) Main() (*SubGraph, error) {
	if len(m.Subgraphs) == 0 {
		return nil, errors.New("model has no subgraphs")
	}
	return &m.Subgraphs[0], nil
}

// Open reads and parses a .tflite file.
func Open(path string) (*Model, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return Parse(buf)
}

// Parse decodes a .tflite flatbuffer. Corrupt offsets are reported as errors.
func Parse(buf []byte) (m *Model, err error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("model too short: %d bytes", len(buf))
	}
	if string(buf[4:8]) != FileIdentifier {
		return nil, ErrNotTFLite
	}

	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("corrupt flatbuffer: %v", r)
		}
	}()

	root := rootAsModel(buf)
	m = &Model{
		Version:     root.Version(),
		Description: string(root.Description()),
	}

	var sg fbSubGraph
	var t fbTensor
	for i := 0; i < root.SubgraphsLength(); i++ {
		if !root.Subgraph(&sg, i) {
			continue
		}
		sub := SubGraph{
			Name:    string(sg.Name()),
			Inputs:  sg.Inputs(),
			Outputs: sg.Outputs(),
		}
		for j := 0; j < sg.TensorsLength(); j++ {
			if !sg.Tensor(&t, j) {
				continue
			}
			sub.Tensors = append(sub.Tensors, Tensor{
				Name:           string(t.Name()),
				Type:           t.Type(),
				Shape:          t.Shape(),
				ShapeSignature: t.ShapeSignature(),
			})
		}
		m.Subgraphs = append(m.Subgraphs, sub)
	}

	return m, nil
}
