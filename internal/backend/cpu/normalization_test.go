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

func TestBatchNormalizationIdentity(t *testing.T) {
	cpu := New(parallel.Sequential())
	x := ramp(tensor.Shape{2, 3, 2, 2})
	ones := f32(tensor.Shape{3}, 1, 1, 1)
	zeros := f32(tensor.Shape{3}, 0, 0, 0)

	out, err := cpu.BatchNormalization(x, ones, zeros, zeros, ones, 0)
	require.NoError(t, err)
	assert.True(t, tensor.Equal(x, out))

	eps, err := cpu.BatchNormalization(x, ones, zeros, zeros, ones, 1e-5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, x.AsFloat32(), eps.AsFloat32(), 1e-4)
}

func TestBatchNormalization(t *testing.T) {
	cpu := New(parallel.Sequential())
	x := f32(tensor.Shape{1, 2, 2}, 1, 3, 10, 20)
	scale := f32(tensor.Shape{2}, 2, 1)
	bias := f32(tensor.Shape{2}, 1, 0)
	mean := f32(tensor.Shape{2}, 1, 10)
	variance := f32(tensor.Shape{2}, 4, 25)

	out, err := cpu.BatchNormalization(x, scale, bias, mean, variance, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 3, 0, 2}, out.AsFloat32())

	_, err = cpu.BatchNormalization(x, f32(tensor.Shape{3}, 1, 1, 1), bias, mean, variance, 0)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)
}

func TestLRN(t *testing.T) {
	cpu := New(parallel.Sequential())
	x := f32(tensor.Shape{1, 3, 1, 1}, 1, 2, 3)
	params := LRNParams{Size: 3, Alpha: 3, Beta: 1, Bias: 1}

	out, err := cpu.LRN(x, params)
	require.NoError(t, err)
	// alpha/size = 1: channel 0 sees 1+4, channel 1 sees 1+4+9, channel 2 sees 4+9.
	assert.InDeltaSlice(t, []float32{1.0 / 6, 2.0 / 15, 3.0 / 14}, out.AsFloat32(), 1e-6)

	beta := LRNParams{Size: 1, Alpha: 1, Beta: 0.75, Bias: 2}
	out, err = cpu.LRN(f32(tensor.Shape{1, 1, 1, 1}, 2), beta)
	require.NoError(t, err)
	assert.InDelta(t, 2/math.Pow(6, 0.75), float64(out.AsFloat32()[0]), 1e-6)

	_, err = cpu.LRN(x, LRNParams{Size: 0})
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)
}
