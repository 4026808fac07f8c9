package cpu

import (
	"math"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/parallel"
	"github.com/born-ml/onnxrun/internal/tensor"
)

func TestActivations(t *testing.T) {
	cpu := New(parallel.Sequential())
	x := f32(tensor.Shape{2, 2}, -2, -0.5, 0, 3)

	relu, err := cpu.Relu(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, relu.Shape())
	assert.Equal(t, []float32{0, 0, 0, 3}, relu.AsFloat32())

	leaky, err := cpu.LeakyRelu(x, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, -0.25, 0, 3}, leaky.AsFloat32())

	clip, err := cpu.Clip(x, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, -0.5, 0, 1}, clip.AsFloat32())

	_, err = cpu.Clip(x, 1, -1)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	// Operands are never modified.
	assert.Equal(t, []float32{-2, -0.5, 0, 3}, x.AsFloat32())
}

func rowSums(values []float64, rows, cols int) []float64 {
	sums := make([]float64, rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sums[r] += values[r*cols+c]
		}
	}
	return sums
}

func TestSoftmaxLaws(t *testing.T) {
	cpu := New(parallel.Sequential())
	values := []float64{1, 2, 3, 4, -1000, 0, 1000, 5, 0.5, 0.5, 0.5, 0.5}
	x := must.M1(tensor.FromValues(tensor.Shape{3, 4}, values))

	out, err := cpu.Softmax(x, -1, false)
	require.NoError(t, err)
	probs := out.AsFloat64()
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.False(t, math.IsNaN(p))
	}
	for _, s := range rowSums(probs, 3, 4) {
		assert.InDelta(t, 1.0, s, 1e-12)
	}
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, probs[8:], 1e-12)

	shifted := make([]float64, len(values))
	for i, v := range values {
		shifted[i] = v + 123.5
	}
	out2, err := cpu.Softmax(must.M1(tensor.FromValues(tensor.Shape{3, 4}, shifted)), 1, false)
	require.NoError(t, err)
	assert.InDeltaSlice(t, probs, out2.AsFloat64(), 1e-12)
}

func TestSoftmaxAxis(t *testing.T) {
	cpu := New(parallel.Sequential())
	x := f32(tensor.Shape{2, 2, 2}, 0, 0, 1, 1, 5, 5, 5, 5)

	// Single axis: normalize across dim 1 for every (outer, inner) pair.
	out, err := cpu.Softmax(x, 1, false)
	require.NoError(t, err)
	got := out.AsFloat32()
	assert.InDelta(t, 1.0, float64(got[0]+got[2]), 1e-6)
	assert.InDelta(t, 1.0, float64(got[1]+got[3]), 1e-6)
	assert.InDelta(t, 0.5, float64(got[4]), 1e-6)

	// Coerced: rows are the flattened trailing block of four elements.
	coerced, err := cpu.Softmax(x, 1, true)
	require.NoError(t, err)
	c := coerced.AsFloat32()
	assert.InDelta(t, 1.0, float64(c[0]+c[1]+c[2]+c[3]), 1e-6)
	assert.InDelta(t, 0.25, float64(c[5]), 1e-6)

	_, err = cpu.Softmax(x, 3, false)
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)
}
