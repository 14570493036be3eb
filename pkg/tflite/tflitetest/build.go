// Package tflitetest builds small .tflite flatbuffers for tests.
package tflitetest

import (
	"os"
	"path/filepath"

	flatbuffers "github.com/google/flatbuffers/go"
)

// Tensor declares one tensor of the generated model.
type Tensor struct {
	Name           string
	Type           int8 // schema.fbs TensorType
	Shape          []int32
	ShapeSignature []int32
}

// Spec declares a single-subgraph model.
type Spec struct {
	Version     uint32
	Description string
	Inputs      []Tensor
	Outputs     []Tensor
}

// Build serializes spec as a TFL3 flatbuffer. Inputs come first in the
// tensor table, followed by outputs.
func Build(spec Spec) []byte {
	b := flatbuffers.NewBuilder(1024)

	tensors := append(append([]Tensor{}, spec.Inputs...), spec.Outputs...)
	tensorOffsets := make([]flatbuffers.UOffsetT, len(tensors))
	for i, t := range tensors {
		name := b.CreateString(t.Name)
		shape := int32s(b, t.Shape)
		var sig flatbuffers.UOffsetT
		if t.ShapeSignature != nil {
			sig = int32s(b, t.ShapeSignature)
		}
		b.StartObject(10)
		b.PrependUOffsetTSlot(0, shape, 0)
		b.PrependInt8Slot(1, t.Type, 0)
		b.PrependUOffsetTSlot(3, name, 0)
		if sig != 0 {
			b.PrependUOffsetTSlot(7, sig, 0)
		}
		tensorOffsets[i] = b.EndObject()
	}

	inputIdx := make([]int32, len(spec.Inputs))
	for i := range spec.Inputs {
		inputIdx[i] = int32(i)
	}
	outputIdx := make([]int32, len(spec.Outputs))
	for i := range spec.Outputs {
		outputIdx[i] = int32(len(spec.Inputs) + i)
	}

	tensorVec := offsets(b, tensorOffsets)
	inputs := int32s(b, inputIdx)
	outputs := int32s(b, outputIdx)
	sgName := b.CreateString("main")

	b.StartObject(5)
	b.PrependUOffsetTSlot(0, tensorVec, 0)
	b.PrependUOffsetTSlot(1, inputs, 0)
	b.PrependUOffsetTSlot(2, outputs, 0)
	b.PrependUOffsetTSlot(4, sgName, 0)
	subgraph := b.EndObject()

	subgraphs := offsets(b, []flatbuffers.UOffsetT{subgraph})
	desc := b.CreateString(spec.Description)

	b.StartObject(8)
	b.PrependUint32Slot(0, spec.Version, 0)
	b.PrependUOffsetTSlot(2, subgraphs, 0)
	b.PrependUOffsetTSlot(3, desc, 0)
	model := b.EndObject()

	b.FinishWithFileIdentifier(model, []byte("TFL3"))
	return b.FinishedBytes()
}

// Write builds spec into dir/name and returns the path.
func Write(dir, name string, spec Spec) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(spec), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func int32s(b *flatbuffers.Builder, v []int32) flatbuffers.UOffsetT {
	b.StartVector(4, len(v), 4)
	for i := len(v) - 1; i >= 0; i-- {
		b.PrependInt32(v[i])
	}
	return b.EndVector(len(v))
}

func offsets(b *flatbuffers.Builder, v []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	b.StartVector(4, len(v), 4)
	for i := len(v) - 1; i >= 0; i-- {
		b.PrependUOffsetT(v[i])
	}
	return b.EndVector(len(v))
}
