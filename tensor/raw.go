// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/onnxrun/internal/tensor"
)

// RawTensor is a dense row-major tensor.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Rank()
//   - Typed views via AsFloat32(), AsInt64(), etc.
//   - Deep copies via Clone()
//
// Tensors returned by the runtime must be treated as read-only: an output
// may share its buffer with an initializer or an input.
type RawTensor = tensor.RawTensor

// Shape lists the dimensions of a tensor. The empty shape is a scalar.
type Shape = tensor.Shape

// DataType is the element type of a tensor.
type DataType = tensor.DataType

// Element is the set of Go types a tensor buffer can be viewed as.
type Element = tensor.Element

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Float16 = tensor.Float16
	Int8    = tensor.Int8
	Int16   = tensor.Int16
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Uint16  = tensor.Uint16
	Uint32  = tensor.Uint32
	Uint64  = tensor.Uint64
	Bool    = tensor.Bool
)

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromBytes wraps little-endian element bytes. len(data) must equal
// shape.NumElements() * dtype.Size().
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	return tensor.FromBytes(shape, dtype, data)
}

// FromValues copies values into a new tensor of the given shape.
//
// Example:
//
//	x, err := tensor.FromValues(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
func FromValues[T Element](shape Shape, values []T) (*RawTensor, error) {
	return tensor.FromValues(shape, values)
}

// Scalar returns a rank-0 tensor holding v.
func Scalar[T Element](v T) *RawTensor {
	return tensor.Scalar(v)
}

// Values returns the elements of r as []T without copying. It panics if T
// does not match the tensor's data type.
func Values[T Element](r *RawTensor) []T {
	return tensor.Values[T](r)
}

// Float64s returns the elements of r widened to float64.
func Float64s(r *RawTensor) []float64 {
	return tensor.Float64s(r)
}

// Equal reports whether a and b have the same type, shape and bytes.
func Equal(a, b *RawTensor) bool {
	return tensor.Equal(a, b)
}
