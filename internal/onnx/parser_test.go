package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

func TestParseModelFields(t *testing.T) {
	mp := modelProto(pointwiseConvGraph())
	mp.Domain = "ai.test"
	mp.ModelVersion = 3
	mp.DocString = "pointwise conv"
	mp.MetadataProps = []StringStringEntry{{Key: "author", Value: "tests"}}

	got, err := Parse(Marshal(mp))
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.IRVersion)
	assert.Equal(t, "onnxrun-test", got.ProducerName)
	assert.Equal(t, "1.0", got.ProducerVersion)
	assert.Equal(t, "ai.test", got.Domain)
	assert.Equal(t, int64(3), got.ModelVersion)
	assert.Equal(t, "pointwise conv", got.DocString)
	assert.Equal(t, []OperatorSetID{{Version: 13}}, got.OpsetImport)
	assert.Equal(t, mp.MetadataProps, got.MetadataProps)

	require.NotNil(t, got.Graph)
	g := got.Graph
	assert.Equal(t, "pointwise", g.Name)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "Conv", g.Nodes[0].OpType)
	assert.Equal(t, []string{"x", "w", "b"}, g.Nodes[0].Inputs)
	require.Len(t, g.Nodes[0].Attributes, 1)
	assert.Equal(t, "kernel_shape", g.Nodes[0].Attributes[0].Name)
	assert.Equal(t, []int64{1}, g.Nodes[0].Attributes[0].Ints)
	assert.Equal(t, int32(AttributeProtoInts), g.Nodes[0].Attributes[0].Type)

	require.Len(t, g.Initializers, 2)
	assert.Equal(t, "w", g.Initializers[0].Name)
	assert.Equal(t, []int64{1, 1, 1}, g.Initializers[0].Dims)
	assert.Len(t, g.Initializers[0].RawData, 4)

	require.Len(t, g.Inputs, 3)
	dims := g.Inputs[0].Type.TensorType.Shape.Dims
	require.Len(t, dims, 3)
	assert.Equal(t, int64(3), dims[2].DimValue)
}

func TestParseKeepsEmptyNodeInputs(t *testing.T) {
	g := &GraphProto{Nodes: []NodeProto{node("Clip", "", []string{"x", "", "hi"}, []string{"y"})}}
	got, err := Parse(Marshal(modelProto(g)))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "", "hi"}, got.Graph.Nodes[0].Inputs)
}

func TestParseSymbolicAndZeroDims(t *testing.T) {
	info := ValueInfoProto{Name: "x", Type: &TypeProto{TensorType: &TensorTypeProto{
		ElemType: TensorProtoFloat,
		Shape:    &TensorShapeProto{Dims: []DimensionProto{{DimParam: "batch"}, {DimValue: 0}}},
	}}}
	got, err := Parse(Marshal(modelProto(&GraphProto{Inputs: []ValueInfoProto{info}})))
	require.NoError(t, err)
	dims := got.Graph.Inputs[0].Type.TensorType.Shape.Dims
	require.Len(t, dims, 2)
	assert.Equal(t, "batch", dims[0].DimParam)
	assert.Equal(t, int64(0), dims[1].DimValue)
}

func TestParseUnpackedRepeatedFields(t *testing.T) {
	// TensorProto with dims 2 and 3 written unpacked (field 1, varint) and
	// an unknown field 99 that must be skipped.
	data := []byte{
		0x08, 0x02, // dims: 2
		0x08, 0x03, // dims: 3
		0x10, 0x07, // data_type: INT64
		0x98, 0x06, 0x01, // field 99, varint 1
	}
	tp, err := ParseTensor(data)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, tp.Dims)
	assert.Equal(t, int32(TensorProtoInt64), tp.DataType)
}

func TestParseTruncated(t *testing.T) {
	data := Marshal(modelProto(pointwiseConvGraph()))
	for _, cut := range []int{len(data) - 1, len(data) / 2, 1} {
		_, err := Parse(data[:cut])
		assert.ErrorIs(t, err, errs.ErrDecode, "cut at %d", cut)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"wire type mismatch", []byte{0x0A, 0x00}},                // ir_version as bytes
		{"unknown wire type", []byte{0x7F}},                       // field 15, wire type 7
		{"field zero", []byte{0x00, 0x01}},                        // tag 0
		{"truncated varint", []byte{0x08, 0x80}},                  // ir_version, continuation bit set at EOF
		{"overlong varint", append([]byte{0x08}, overlong()...)},  // 11 continuation bytes
		{"length past end", []byte{0x12, 0x05, 'a', 'b'}},         // producer_name of 5 bytes, 2 present
		{"negative length", append([]byte{0x12}, negativeLen()...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.ErrorIs(t, err, errs.ErrDecode)
		})
	}
}

func overlong() []byte {
	b := make([]byte, 11)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}

// negativeLen encodes -1 as a 10-byte varint.
func negativeLen() []byte {
	b := make([]byte, 10)
	for i := 0; i < 9; i++ {
		b[i] = 0xFF
	}
	b[9] = 0x01
	return b
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "absent.onnx"))
	assert.ErrorIs(t, err, errs.ErrIO)
}

func TestLoadModelTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	data := Marshal(modelProto(pointwiseConvGraph()))
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0o600))
	_, err := LoadModel(path)
	assert.ErrorIs(t, err, errs.ErrDecode)

	// The opset_import entry closes the file; {version: 13} takes 4 bytes.
	data = Marshal(modelProto(chainGraph()))
	_, err = LoadModelFromBytes(data[:len(data)-4])
	assert.ErrorIs(t, err, errs.ErrDecode, "cut before opset_import")

	for cut := 1; cut < len(data); cut++ {
		_, err := LoadModelFromBytes(data[:cut])
		assert.ErrorIs(t, err, errs.ErrDecode, "cut at %d of %d", cut, len(data))
	}
}

func TestParseTensorFloatData(t *testing.T) {
	tp := &TensorProto{Name: "t", DataType: TensorProtoFloat, Dims: []int64{2}, FloatData: []float32{1.5, -2}}
	got, err := ParseTensor(MarshalTensor(tp))
	require.NoError(t, err)
	assert.Equal(t, tp, got)

	decoded, err := DecodeTensor(got)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2}, decoded.Shape())
	assert.Equal(t, []float32{1.5, -2}, decoded.AsFloat32())
}
