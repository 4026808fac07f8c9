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

func TestMatMul(t *testing.T) {
	cpu := New(parallel.Sequential())
	tests := []struct {
		name  string
		a, b  *tensor.RawTensor
		shape tensor.Shape
		want  []float32
	}{
		{
			"2x3 @ 3x2",
			f32(tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6),
			f32(tensor.Shape{3, 2}, 7, 8, 9, 10, 11, 12),
			tensor.Shape{2, 2},
			[]float32{58, 64, 139, 154},
		},
		{
			"vector @ matrix",
			f32(tensor.Shape{2}, 1, 2),
			f32(tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6),
			tensor.Shape{3},
			[]float32{9, 12, 15},
		},
		{
			"matrix @ vector",
			f32(tensor.Shape{2, 2}, 1, 2, 3, 4),
			f32(tensor.Shape{2}, 1, 1),
			tensor.Shape{2},
			[]float32{3, 7},
		},
		{
			"dot",
			f32(tensor.Shape{3}, 1, 2, 3),
			f32(tensor.Shape{3}, 4, 5, 6),
			tensor.Shape{},
			[]float32{32},
		},
		{
			"broadcast batch",
			f32(tensor.Shape{2, 1, 2}, 1, 0, 0, 1),
			f32(tensor.Shape{2, 2}, 1, 2, 3, 4),
			tensor.Shape{2, 1, 2},
			[]float32{1, 2, 3, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := cpu.MatMul(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, out.Shape())
			assert.Equal(t, tt.want, out.AsFloat32())
		})
	}

	_, err := cpu.MatMul(f32(tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6), f32(tensor.Shape{2, 2}, 1, 2, 3, 4))
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)
}

func TestGemm(t *testing.T) {
	cpu := New(parallel.Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1})
	a := f32(tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	bT := f32(tensor.Shape{2, 3}, 1, 0, 0, 0, 1, 0) // B' = [[1,0],[0,1],[0,0]]
	c := f32(tensor.Shape{2}, 10, 20)

	out, err := cpu.Gemm(a, bT, c, 2, 0.5, false, true)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{7, 14, 13, 20}, out.AsFloat32())

	aT := f32(tensor.Shape{3, 2}, 1, 4, 2, 5, 3, 6)
	same, err := cpu.Gemm(aT, bT, c, 2, 0.5, true, true)
	require.NoError(t, err)
	assert.True(t, tensor.Equal(out, same))

	noC, err := cpu.Gemm(a, bT, nil, 1, 1, false, true)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 4, 5}, noC.AsFloat32())
}

func TestGemmErrors(t *testing.T) {
	cpu := New(parallel.Sequential())
	a := f32(tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	_, err := cpu.Gemm(a, a, nil, 1, 1, false, false)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	_, err = cpu.Gemm(a, a, f32(tensor.Shape{3}, 1, 2, 3), 1, 1, false, true)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	f64 := must.M1(tensor.FromValues(tensor.Shape{3, 2}, []float64{1, 2, 3, 4, 5, 6}))
	_, err = cpu.Gemm(a, f64, nil, 1, 1, false, false)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)
}
