// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/tensor"
)

func TestFacade(t *testing.T) {
	x, err := tensor.FromValues(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, x.DType())
	assert.Equal(t, tensor.Shape{2, 2}, x.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4}, tensor.Float64s(x))
	assert.True(t, tensor.Equal(x, x.Clone()))

	s := tensor.Scalar(int64(7))
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, []int64{7}, tensor.Values[int64](s))

	z, err := tensor.NewRaw(tensor.Shape{3}, tensor.Bool)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false}, z.AsBool())

	_, err = tensor.FromBytes(tensor.Shape{2}, tensor.Int32, []byte{1, 2, 3})
	assert.Error(t, err)
}
