package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/parallel"
	"github.com/born-ml/onnxrun/internal/tensor"
)

func grid4x4() *tensor.RawTensor {
	return f32(tensor.Shape{1, 1, 4, 4},
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16)
}

func TestMaxPool(t *testing.T) {
	cpu := New(parallel.Sequential())
	tests := []struct {
		name  string
		win   Window
		shape tensor.Shape
		want  []float32
	}{
		{"2x2 stride 2", Window{Kernel: []int{2, 2}, Strides: []int{2, 2}}, tensor.Shape{1, 1, 2, 2}, []float32{6, 8, 14, 16}},
		{"3x3 stride 1", Window{Kernel: []int{3, 3}}, tensor.Shape{1, 1, 2, 2}, []float32{11, 12, 15, 16}},
		{"ceil mode", Window{Kernel: []int{3, 3}, Strides: []int{2, 2}, CeilMode: true}, tensor.Shape{1, 1, 2, 2}, []float32{11, 12, 15, 16}},
		{"padding never wins", Window{Kernel: []int{2, 2}, Strides: []int{2, 2}, Pads: []int{1, 1, 1, 1}}, tensor.Shape{1, 1, 3, 3},
			[]float32{1, 3, 4, 9, 11, 12, 13, 15, 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := cpu.MaxPool(grid4x4(), tt.win)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, out.Shape())
			assert.Equal(t, tt.want, out.AsFloat32())
		})
	}
}

func TestMaxPoolNegativeInputWithPadding(t *testing.T) {
	cpu := New(parallel.Sequential())
	x := f32(tensor.Shape{1, 1, 2}, -5, -7)
	out, err := cpu.MaxPool(x, Window{Kernel: []int{2}, Pads: []int{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []float32{-5, -5, -7}, out.AsFloat32())
}

func TestAveragePool(t *testing.T) {
	cpu := New(parallel.Sequential())
	win := Window{Kernel: []int{2, 2}, Strides: []int{2, 2}, Pads: []int{1, 1, 1, 1}}

	exclude, err := cpu.AveragePool(grid4x4(), win, false)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, exclude.Shape())
	// Corner windows cover one real element.
	assert.Equal(t, float32(1), exclude.AsFloat32()[0])
	assert.Equal(t, float32(2.5), exclude.AsFloat32()[1])

	include, err := cpu.AveragePool(grid4x4(), win, true)
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), include.AsFloat32()[0])
	assert.Equal(t, float32(1.25), include.AsFloat32()[1])
	assert.Equal(t, exclude.AsFloat32()[4], include.AsFloat32()[4])
}

func TestGlobalPools(t *testing.T) {
	cpu := New(parallel.Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1})
	x := f32(tensor.Shape{1, 2, 2, 2}, 1, 2, 3, 4, -1, -2, -3, -8)

	avg, err := cpu.GlobalAveragePool(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 1, 1}, avg.Shape())
	assert.Equal(t, []float32{2.5, -3.5}, avg.AsFloat32())

	mx, err := cpu.GlobalMaxPool(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, -1}, mx.AsFloat32())

	_, err = cpu.GlobalAveragePool(f32(tensor.Shape{2, 2}, 1, 2, 3, 4))
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)
}

func TestMaxPoolPropagatesNaN(t *testing.T) {
	cpu := New(parallel.Sequential())
	nan := float32(math.NaN())
	out, err := cpu.MaxPool(f32(tensor.Shape{1, 1, 3}, 1, nan, 3), Window{Kernel: []int{3}})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(out.AsFloat32()[0])))
}

func TestPoolErrors(t *testing.T) {
	cpu := New(parallel.Sequential())
	_, err := cpu.MaxPool(grid4x4(), Window{Kernel: []int{5, 5}})
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	_, err = cpu.MaxPool(grid4x4(), Window{Kernel: []int{2}})
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	_, err = cpu.AveragePool(grid4x4(), Window{Kernel: []int{2, 2}, AutoPad: "BOGUS"}, false)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)
}
