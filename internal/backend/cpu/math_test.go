package cpu

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/parallel"
	"github.com/born-ml/onnxrun/internal/tensor"
)

func TestBinaryBroadcast(t *testing.T) {
	cpu := New(parallel.Sequential())
	a := f32(tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	row := f32(tensor.Shape{3}, 10, 20, 30)
	col := f32(tensor.Shape{2, 1}, 100, 200)

	tests := []struct {
		name  string
		op    BinaryOp
		b     *tensor.RawTensor
		shape tensor.Shape
		want  []float32
	}{
		{"add same shape", OpAdd, a, tensor.Shape{2, 3}, []float32{2, 4, 6, 8, 10, 12}},
		{"add row", OpAdd, row, tensor.Shape{2, 3}, []float32{11, 22, 33, 14, 25, 36}},
		{"sub col", OpSub, col, tensor.Shape{2, 3}, []float32{-99, -98, -97, -196, -195, -194}},
		{"mul scalar", OpMul, f32(tensor.Shape{}, 2), tensor.Shape{2, 3}, []float32{2, 4, 6, 8, 10, 12}},
		{"div row", OpDiv, row, tensor.Shape{2, 3}, []float32{0.1, 0.1, 0.1, 0.4, 0.25, 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := cpu.Binary(tt.op, a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, out.Shape())
			assert.InDeltaSlice(t, tt.want, out.AsFloat32(), 1e-6)
		})
	}
}

func TestAddBiasBroadcast(t *testing.T) {
	cpu := New(parallel.Sequential())
	x := must.M1(tensor.NewRaw(tensor.Shape{1, 2, 2, 2}, tensor.Float32))
	bias := f32(tensor.Shape{2, 1, 1}, 1, -1)

	out, err := cpu.Add(x, bias)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1, -1, -1, -1, -1}, out.AsFloat32())
}

func TestBinaryIntegers(t *testing.T) {
	cpu := New(parallel.Sequential())
	a := must.M1(tensor.FromValues(tensor.Shape{3}, []int64{7, -7, 9}))
	b := must.M1(tensor.FromValues(tensor.Shape{3}, []int64{2, 2, 3}))

	q, err := cpu.Div(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, -3, 3}, q.AsInt64())

	zero := must.M1(tensor.FromValues(tensor.Shape{1}, []int64{0}))
	_, err = cpu.Div(a, zero)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	s, err := cpu.Sub(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, -9, 6}, s.AsInt64())
}

func TestBinaryErrors(t *testing.T) {
	cpu := New(parallel.Sequential())
	_, err := cpu.Mul(f32(tensor.Shape{2}, 1, 2), f32(tensor.Shape{3}, 1, 2, 3))
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	i := must.M1(tensor.FromValues(tensor.Shape{2}, []int32{1, 2}))
	_, err = cpu.Add(f32(tensor.Shape{2}, 1, 2), i)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	u := must.M1(tensor.FromValues(tensor.Shape{2}, []uint8{1, 2}))
	_, err = cpu.Add(u, u)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)
}
