package onnx

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/tensor"
)

// Builders for in-memory models. Every fixture goes through Marshal and
// Parse, so the tests exercise the wire codec as well.

func f32(shape tensor.Shape, values ...float32) *tensor.RawTensor {
	return must.M1(tensor.FromValues(shape, values))
}

func floatInfo(name string, dims ...int64) ValueInfoProto {
	shape := &TensorShapeProto{}
	for _, d := range dims {
		if d < 0 {
			shape.Dims = append(shape.Dims, DimensionProto{DimParam: "N"})
			continue
		}
		shape.Dims = append(shape.Dims, DimensionProto{DimValue: d})
	}
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{ElemType: TensorProtoFloat, Shape: shape}},
	}
}

func initializer(name string, t *tensor.RawTensor) TensorProto {
	return *EncodeTensor(t, name)
}

func node(op, name string, inputs, outputs []string, attrs ...AttributeProto) NodeProto {
	return NodeProto{Name: name, OpType: op, Inputs: inputs, Outputs: outputs, Attributes: attrs}
}

func intsAttr(name string, v ...int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInts, Ints: v}
}

func intAttr(name string, v int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInt, I: v}
}

func floatAttr(name string, v float32) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoFloat, F: v}
}

func modelProto(graph *GraphProto) *ModelProto {
	return &ModelProto{
		IRVersion:       8,
		ProducerName:    "onnxrun-test",
		ProducerVersion: "1.0",
		OpsetImport:     []OperatorSetID{{Domain: "", Version: 13}},
		Graph:           graph,
	}
}

func loadGraph(t *testing.T, graph *GraphProto) *Model {
	t.Helper()
	m, err := LoadModelFromBytes(Marshal(modelProto(graph)))
	require.NoError(t, err)
	return m
}

// pointwiseConvGraph is y = Conv(x, w=[[[2]]], b=[0]) over [1, 1, 3].
func pointwiseConvGraph() *GraphProto {
	return &GraphProto{
		Name: "pointwise",
		Nodes: []NodeProto{
			node("Conv", "conv", []string{"x", "w", "b"}, []string{"y"}, intsAttr("kernel_shape", 1)),
		},
		Initializers: []TensorProto{
			initializer("w", f32(tensor.Shape{1, 1, 1}, 2)),
			initializer("b", f32(tensor.Shape{1}, 0)),
		},
		Inputs:  []ValueInfoProto{floatInfo("x", 1, 1, 3), floatInfo("w", 1, 1, 1), floatInfo("b", 1)},
		Outputs: []ValueInfoProto{floatInfo("y", 1, 1, 3)},
	}
}

// chainGraph is y = Relu(Add(x, bias)) * 2, recorded in the given node
// order (a permutation of 0..2).
func chainGraph(order ...int) *GraphProto {
	nodes := []NodeProto{
		node("Add", "add", []string{"x", "bias"}, []string{"h1"}),
		node("Relu", "relu", []string{"h1"}, []string{"h2"}),
		node("Mul", "scale", []string{"h2", "two"}, []string{"y"}),
	}
	g := &GraphProto{
		Name: "chain",
		Initializers: []TensorProto{
			initializer("bias", f32(tensor.Shape{3}, -1, 0, 1)),
			initializer("two", tensor.Scalar[float32](2)),
		},
		Inputs:  []ValueInfoProto{floatInfo("x", -1, 3)},
		Outputs: []ValueInfoProto{floatInfo("y", -1, 3)},
	}
	if len(order) == 0 {
		order = []int{0, 1, 2}
	}
	for _, i := range order {
		g.Nodes = append(g.Nodes, nodes[i])
	}
	return g
}
