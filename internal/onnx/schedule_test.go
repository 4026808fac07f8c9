package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/onnx/operators"
)

func opNode(name string, inputs, outputs []string) operators.Node {
	return operators.Node{Name: name, OpType: "Relu", Inputs: inputs, Outputs: outputs}
}

func TestSchedule(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []operators.Node
		external []string
		want     []int
	}{
		{
			name:  "empty",
			nodes: nil,
			want:  []int{},
		},
		{
			name: "already sorted keeps recorded order",
			nodes: []operators.Node{
				opNode("a", []string{"x"}, []string{"a"}),
				opNode("b", []string{"x"}, []string{"b"}),
				opNode("c", []string{"a", "b"}, []string{"c"}),
			},
			want: []int{0, 1, 2},
		},
		{
			name: "reversed chain",
			nodes: []operators.Node{
				opNode("c", []string{"b"}, []string{"c"}),
				opNode("b", []string{"a"}, []string{"b"}),
				opNode("a", []string{"x"}, []string{"a"}),
			},
			want: []int{2, 1, 0},
		},
		{
			name: "ties broken by position",
			nodes: []operators.Node{
				opNode("join", []string{"p", "q"}, []string{"y"}),
				opNode("q", []string{"x"}, []string{"q"}),
				opNode("p", []string{"x"}, []string{"p"}),
				opNode("side", []string{"x"}, []string{"s"}),
			},
			want: []int{1, 2, 0, 3},
		},
		{
			name: "omitted optional inputs",
			nodes: []operators.Node{
				opNode("clip", []string{"a", "", "hi"}, []string{"y"}),
				opNode("a", []string{"x"}, []string{"a"}),
			},
			want: []int{1, 0},
		},
		{
			name: "rebound name read between producers",
			nodes: []operators.Node{
				opNode("relu", []string{"x"}, []string{"a"}),
				opNode("sum", []string{"a", "x"}, []string{"y1"}),
				opNode("double", []string{"x"}, []string{"a"}),
				opNode("out", []string{"y1", "a"}, []string{"y"}),
			},
			external: []string{"x"},
			want:     []int{0, 1, 2, 3},
		},
		{
			name: "graph input rebound in place",
			nodes: []operators.Node{
				opNode("r", []string{"x"}, []string{"x"}),
				opNode("i", []string{"x"}, []string{"y"}),
			},
			external: []string{"x"},
			want:     []int{0, 1},
		},
		{
			name: "self rebinding of an unlisted name",
			nodes: []operators.Node{
				opNode("self", []string{"s"}, []string{"s"}),
			},
			want: []int{0},
		},
		{
			name: "external value read before it is rebound",
			nodes: []operators.Node{
				opNode("use", []string{"b", "x"}, []string{"y"}),
				opNode("rebind", []string{"x"}, []string{"x"}),
				opNode("b", []string{"z"}, []string{"b"}),
			},
			external: []string{"x", "z"},
			want:     []int{2, 0, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Schedule(tt.nodes, tt.external)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduleCycle(t *testing.T) {
	nodes := []operators.Node{
		opNode("ok", []string{"x"}, []string{"a"}),
		opNode("p", []string{"a", "r"}, []string{"q"}),
		opNode("r", []string{"q"}, []string{"r"}),
	}
	_, err := Schedule(nodes, []string{"x"})
	require.ErrorIs(t, err, errs.ErrCycleDetected)
	assert.Contains(t, err.Error(), "#1 p (Relu)")
	assert.Contains(t, err.Error(), "#2 r (Relu)")
	assert.NotContains(t, err.Error(), "ok")
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("Recorded")
	require.NoError(t, err)
	assert.Equal(t, OrderRecorded, o)

	o, err = ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderResolve, o)
	assert.Equal(t, "resolve", o.String())

	_, err = ParseOrder("random")
	assert.Error(t, err)
	assert.Equal(t, []int{0, 1, 2}, RecordedOrder(3))
}
