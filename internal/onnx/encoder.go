package onnx

import (
	"encoding/binary"
	"math"
)

// Marshal encodes a ModelProto in protobuf wire format.
//
// Fields are written in field-number order, scalars equal to their zero value
// are omitted and repeated scalars are packed, which is the canonical
// encoding produced by the reference protobuf libraries.
func Marshal(m *ModelProto) []byte {
	w := &writer{}
	w.writeModelProto(m)
	return w.buf
}

// MarshalTensor encodes a standalone TensorProto.
func MarshalTensor(t *TensorProto) []byte {
	w := &writer{}
	w.writeTensorProto(t)
	return w.buf
}

// writer implements the encoding half of the wire format.
type writer struct {
	buf []byte
}

func (w *writer) tag(field, wire int) {
	w.varint(uint64(field)<<3 | uint64(wire)) //nolint:gosec // field numbers are positive
}

func (w *writer) varint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

func (w *writer) int64Field(field int, v int64) {
	if v == 0 {
		return
	}
	w.tag(field, wireVarint)
	w.varint(uint64(v)) //nolint:gosec // two's complement, 10 bytes for negatives
}

func (w *writer) bytesField(field int, b []byte) {
	w.tag(field, wireBytes)
	w.varint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) stringField(field int, s string) {
	if s == "" {
		return
	}
	w.bytesField(field, []byte(s))
}

func (w *writer) float32Field(field int, v float32) {
	if v == 0 && !math.Signbit(float64(v)) {
		return
	}
	w.tag(field, wire32Bit)
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// message writes a length-delimited sub-message.
func (w *writer) message(field int, encode func(sub *writer)) {
	sub := &writer{}
	encode(sub)
	w.bytesField(field, sub.buf)
}

func (w *writer) packedVarints(field int, n int, at func(i int) uint64) {
	if n == 0 {
		return
	}
	sub := &writer{}
	for i := 0; i < n; i++ {
		sub.varint(at(i))
	}
	w.bytesField(field, sub.buf)
}

func (w *writer) packedInt64s(field int, vs []int64) {
	w.packedVarints(field, len(vs), func(i int) uint64 { return uint64(vs[i]) }) //nolint:gosec // two's complement
}

func (w *writer) packedFloat32s(field int, vs []float32) {
	if len(vs) == 0 {
		return
	}
	b := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	w.bytesField(field, b)
}

func (w *writer) packedFloat64s(field int, vs []float64) {
	if len(vs) == 0 {
		return
	}
	b := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	w.bytesField(field, b)
}

func (w *writer) writeModelProto(m *ModelProto) {
	w.int64Field(1, m.IRVersion)
	w.stringField(2, m.ProducerName)
	w.stringField(3, m.ProducerVersion)
	w.stringField(4, m.Domain)
	w.int64Field(5, m.ModelVersion)
	w.stringField(6, m.DocString)
	if m.Graph != nil {
		w.message(7, func(sub *writer) { sub.writeGraphProto(m.Graph) })
	}
	for i := range m.OpsetImport {
		op := &m.OpsetImport[i]
		w.message(8, func(sub *writer) {
			sub.stringField(1, op.Domain)
			sub.int64Field(2, op.Version)
		})
	}
	for i := range m.MetadataProps {
		w.message(14, func(sub *writer) { sub.writeStringStringEntry(&m.MetadataProps[i]) })
	}
}

func (w *writer) writeGraphProto(g *GraphProto) {
	for i := range g.Nodes {
		w.message(1, func(sub *writer) { sub.writeNodeProto(&g.Nodes[i]) })
	}
	w.stringField(2, g.Name)
	for i := range g.Initializers {
		w.message(5, func(sub *writer) { sub.writeTensorProto(&g.Initializers[i]) })
	}
	w.stringField(10, g.DocString)
	for i := range g.Inputs {
		w.message(11, func(sub *writer) { sub.writeValueInfoProto(&g.Inputs[i]) })
	}
	for i := range g.Outputs {
		w.message(12, func(sub *writer) { sub.writeValueInfoProto(&g.Outputs[i]) })
	}
	for i := range g.ValueInfo {
		w.message(13, func(sub *writer) { sub.writeValueInfoProto(&g.ValueInfo[i]) })
	}
}

func (w *writer) writeNodeProto(n *NodeProto) {
	// Inputs and outputs are positional: empty names mark omitted optional
	// inputs and must be kept.
	for _, in := range n.Inputs {
		w.bytesField(1, []byte(in))
	}
	for _, out := range n.Outputs {
		w.bytesField(2, []byte(out))
	}
	w.stringField(3, n.Name)
	w.stringField(4, n.OpType)
	for i := range n.Attributes {
		w.message(5, func(sub *writer) { sub.writeAttributeProto(&n.Attributes[i]) })
	}
	w.stringField(6, n.DocString)
	w.stringField(7, n.Domain)
}

func (w *writer) writeTensorProto(t *TensorProto) {
	w.packedInt64s(1, t.Dims)
	w.int64Field(2, int64(t.DataType))
	if t.Segment != nil {
		w.message(3, func(sub *writer) {
			sub.int64Field(1, t.Segment.Begin)
			sub.int64Field(2, t.Segment.End)
		})
	}
	w.packedFloat32s(4, t.FloatData)
	w.packedVarints(5, len(t.Int32Data), func(i int) uint64 { return uint64(int64(t.Int32Data[i])) }) //nolint:gosec // sign-extended
	for _, s := range t.StringData {
		w.bytesField(6, s)
	}
	w.packedInt64s(7, t.Int64Data)
	w.stringField(8, t.Name)
	if len(t.RawData) > 0 {
		w.bytesField(9, t.RawData)
	}
	w.packedFloat64s(10, t.DoubleData)
	w.packedVarints(11, len(t.Uint64Data), func(i int) uint64 { return t.Uint64Data[i] })
	w.stringField(12, t.DocString)
	for i := range t.ExternalData {
		w.message(13, func(sub *writer) { sub.writeStringStringEntry(&t.ExternalData[i]) })
	}
	w.int64Field(14, int64(t.DataLocation))
}

func (w *writer) writeValueInfoProto(v *ValueInfoProto) {
	w.stringField(1, v.Name)
	if v.Type != nil {
		w.message(2, func(sub *writer) { sub.writeTypeProto(v.Type) })
	}
	w.stringField(3, v.DocString)
}

func (w *writer) writeTypeProto(t *TypeProto) {
	if tt := t.TensorType; tt != nil {
		w.message(1, func(sub *writer) {
			sub.int64Field(1, int64(tt.ElemType))
			if tt.Shape != nil {
				sub.message(2, func(shape *writer) {
					for i := range tt.Shape.Dims {
						d := &tt.Shape.Dims[i]
						shape.message(1, func(dim *writer) {
							if d.DimParam == "" {
								// dim_value is a oneof member: written even when 0.
								dim.tag(1, wireVarint)
								dim.varint(uint64(d.DimValue)) //nolint:gosec // two's complement
							}
							dim.stringField(2, d.DimParam)
							dim.stringField(3, d.Denotation)
						})
					}
				})
			}
		})
	}
	w.stringField(6, t.Denotation)
}

func (w *writer) writeAttributeProto(a *AttributeProto) {
	w.stringField(1, a.Name)
	w.float32Field(2, a.F)
	w.int64Field(3, a.I)
	if len(a.S) > 0 {
		w.bytesField(4, a.S)
	}
	if a.T != nil {
		w.message(5, func(sub *writer) { sub.writeTensorProto(a.T) })
	}
	if a.G != nil {
		w.message(6, func(sub *writer) { sub.writeGraphProto(a.G) })
	}
	w.packedFloat32s(7, a.Floats)
	w.packedInt64s(8, a.Ints)
	for _, s := range a.Strings {
		w.bytesField(9, s)
	}
	for i := range a.Tensors {
		w.message(10, func(sub *writer) { sub.writeTensorProto(&a.Tensors[i]) })
	}
	for i := range a.Graphs {
		w.message(11, func(sub *writer) { sub.writeGraphProto(&a.Graphs[i]) })
	}
	w.stringField(13, a.DocString)
	w.int64Field(20, int64(a.Type))
	w.stringField(21, a.RefAttrName)
}

func (w *writer) writeStringStringEntry(e *StringStringEntry) {
	w.stringField(1, e.Key)
	w.stringField(2, e.Value)
}
