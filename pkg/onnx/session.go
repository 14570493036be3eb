package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// IOInfo describes one declared model input or output.
type IOInfo struct {
	Name  string
	Shape []int64
	Type  string
}

// Describe returns the declared inputs and outputs of an ONNX model.
func Describe(path string) (inputs, outputs []IOInfo, err error) {
	if err := Init(); err != nil {
		return nil, nil, err
	}

	in, out, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get model info: %w", err)
	}
	return convertInfo(in), convertInfo(out), nil
}

func convertInfo(infos []ort.InputOutputInfo) []IOInfo {
	out := make([]IOInfo, len(infos))
	for i, info := range infos {
		out[i] = IOInfo{
			Name:  info.Name,
			Shape: []int64(info.Dimensions),
			Type:  ElementTypeName(info.DataType),
		}
	}
	return out
}

var elementTypeNames = map[ort.TensorElementDataType]string{
	ort.TensorElementDataTypeFloat:   "float32",
	ort.TensorElementDataTypeDouble:  "float64",
	ort.TensorElementDataTypeFloat16: "float16",
	ort.TensorElementDataTypeUint8:   "uint8",
	ort.TensorElementDataTypeInt8:    "int8",
	ort.TensorElementDataTypeUint16:  "uint16",
	ort.TensorElementDataTypeInt16:   "int16",
	ort.TensorElementDataTypeUint32:  "uint32",
	ort.TensorElementDataTypeInt32:   "int32",
	ort.TensorElementDataTypeUint64:  "uint64",
	ort.TensorElementDataTypeInt64:   "int64",
	ort.TensorElementDataTypeString:  "string",
	ort.TensorElementDataTypeBool:    "bool",
}

// ElementTypeName returns the numpy-style dtype name of an ONNX element type.
func ElementTypeName(t ort.TensorElementDataType) string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("onnx_type_%d", int(t))
}

// Output is a copied model output.
type Output struct {
	Data  []float32
	Shape []int64
}

// Session runs a single-input float32 model.
type Session struct {
	path    string
	session *ort.DynamicAdvancedSession
	Inputs  []IOInfo
	Outputs []IOInfo
}

// Open creates a session for the model at path, discovering its input and
// output names from the file.
func Open(path string) (*Session, error) {
	inputs, outputs, err := Describe(path)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s declares %d inputs and %d outputs", path, len(inputs), len(outputs))
	}

	session, err := ort.NewDynamicAdvancedSession(
		path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", path, err)
	}

	return &Session{
		path:    path,
		session: session,
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}

// Run feeds data with the given shape to the first input and returns a copy
// of the first output.
func (s *Session) Run(data []float32, shape ...int64) (*Output, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// nil output is allocated by the runtime
	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed for %s: %w", s.path, err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("output was nil")
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	// Copy the data since we'll destroy the tensor
	raw := outputTensor.GetData()
	data = make([]float32, len(raw))
	copy(data, raw)

	return &Output{
		Data:  data,
		Shape: []int64(outputs[0].GetShape()),
	}, nil
}

// Close releases the session.
func (s *Session) Close() error {
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
