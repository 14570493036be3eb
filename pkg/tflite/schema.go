package tflite

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// Accessors for the subset of schema.fbs used for introspection. They follow
// the layout flatc generates: field N lives at vtable offset 4+2*N.

type fbModel struct {
	_tab flatbuffers.Table
}

func rootAsModel(buf []byte) *fbModel {
	n := flatbuffers.GetUOffsetT(buf)
	m := &fbModel{}
	m._tab.Bytes = buf
	m._tab.Pos = n
	return m
}

func (m *fbModel) Version() uint32 {
	o := flatbuffers.UOffsetT(m._tab.Offset(4))
	if o != 0 {
		return m._tab.GetUint32(o + m._tab.Pos)
	}
	return 0
}

func (m *fbModel) SubgraphsLength() int {
	o := flatbuffers.UOffsetT(m._tab.Offset(8))
	if o != 0 {
		return m._tab.VectorLen(o)
	}
	return 0
}

func (m *fbModel) Subgraph(obj *fbSubGraph, j int) bool {
	o := flatbuffers.UOffsetT(m._tab.Offset(8))
	if o != 0 {
		x := m._tab.Vector(o)
		x += flatbuffers.UOffsetT(j) * 4
		x = m._tab.Indirect(x)
		obj._tab.Bytes = m._tab.Bytes
		obj._tab.Pos = x
		return true
	}
	return false
}

func (m *fbModel) Description() []byte {
	o := flatbuffers.UOffsetT(m._tab.Offset(10))
	if o != 0 {
		return m._tab.ByteVector(o + m._tab.Pos)
	}
	return nil
}

type fbSubGraph struct {
	_tab flatbuffers.Table
}

func (s *fbSubGraph) TensorsLength() int {
	o := flatbuffers.UOffsetT(s._tab.Offset(4))
	if o != 0 {
		return s._tab.VectorLen(o)
	}
	return 0
}

func (s *fbSubGraph) Tensor(obj *fbTensor, j int) bool {
	o := flatbuffers.UOffsetT(s._tab.Offset(4))
	if o != 0 {
		x := s._tab.Vector(o)
		x += flatbuffers.UOffsetT(j) * 4
		x = s._tab.Indirect(x)
		obj._tab.Bytes = s._tab.Bytes
		obj._tab.Pos = x
		return true
	}
	return false
}

func (s *fbSubGraph) Inputs() []int32 {
	return int32Vector(&s._tab, 6)
}

func (s *fbSubGraph) Outputs() []int32 {
	return int32Vector(&s._tab, 8)
}

func (s *fbSubGraph) Name() []byte {
	o := flatbuffers.UOffsetT(s._tab.Offset(12))
	if o != 0 {
		return s._tab.ByteVector(o + s._tab.Pos)
	}
	return nil
}

type fbTensor struct {
	_tab flatbuffers.Table
}

func (t *fbTensor) Shape() []int32 {
	return int32Vector(&t._tab, 4)
}

func (t *fbTensor) Type() TensorType {
	o := flatbuffers.UOffsetT(t._tab.Offset(6))
	if o != 0 {
		return TensorType(t._tab.GetInt8(o + t._tab.Pos))
	}
	return TensorTypeFloat32
}

func (t *fbTensor) Name() []byte {
	o := flatbuffers.UOffsetT(t._tab.Offset(10))
	if o != 0 {
		return t._tab.ByteVector(o + t._tab.Pos)
	}
	return nil
}

func (t *fbTensor) ShapeSignature() []int32 {
	return int32Vector(&t._tab, 18)
}

func int32Vector(tab *flatbuffers.Table, slot flatbuffers.VOffsetT) []int32 {
	o := flatbuffers.UOffsetT(tab.Offset(slot))
	if o == 0 {
		return nil
	}
	n := tab.VectorLen(o)
	a := tab.Vector(o)
	out := make([]int32, n)
	for j := 0; j < n; j++ {
		out[j] = tab.GetInt32(a + flatbuffers.UOffsetT(j*4))
	}
	return out
}
