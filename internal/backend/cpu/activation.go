package cpu

import (
	"math"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// Relu computes max(0, x) element-wise.
func (cpu *CPUBackend) Relu(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	return unaryFloat("relu", x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		if v != v {
			return v
		}
		return 0
	})
}

// LeakyRelu computes x for x >= 0 and alpha*x otherwise.
func (cpu *CPUBackend) LeakyRelu(x *tensor.RawTensor, alpha float64) (*tensor.RawTensor, error) {
	return unaryFloat("leakyrelu", x, func(v float64) float64 {
		if v < 0 {
			return alpha * v
		}
		return v
	})
}

// Clip saturates x into [lo, hi].
func (cpu *CPUBackend) Clip(x *tensor.RawTensor, lo, hi float64) (*tensor.RawTensor, error) {
	if lo > hi {
		return nil, errs.ShapeMismatchf("clip: min %g greater than max %g", lo, hi)
	}
	return unaryFloat("clip", x, func(v float64) float64 {
		switch {
		case v < lo:
			return lo
		case v > hi:
			return hi
		}
		return v
	})
}

// unaryFloat applies f to every element. float32 values round-trip through
// float64, which is exact for the piecewise-linear functions used here.
func unaryFloat(op string, x *tensor.RawTensor, f func(float64) float64) (*tensor.RawTensor, error) {
	if err := requireFloat(op, x); err != nil {
		return nil, err
	}
	out, err := newLike(x, x.Shape())
	if err != nil {
		return nil, err
	}
	switch x.DType() {
	case tensor.Float32:
		dst := out.AsFloat32()
		for i, v := range x.AsFloat32() {
			dst[i] = float32(f(float64(v)))
		}
	case tensor.Float64:
		dst := out.AsFloat64()
		for i, v := range x.AsFloat64() {
			dst[i] = f(v)
		}
	}
	return out, nil
}

// Softmax computes a numerically stable softmax along axis: the row maximum
// is subtracted before exponentiation, so the result is invariant under
// adding a constant to the row.
//
// With coerce2D the input is viewed as a matrix
// [prod(dims[:axis]), prod(dims[axis:])] and each matrix row is normalized,
// as operator sets before 13 define it.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, axis int, coerce2D bool) (*tensor.RawTensor, error) {
	if err := requireFloat("softmax", x); err != nil {
		return nil, err
	}
	shape := x.Shape()
	rank := shape.Rank()
	if rank == 0 {
		return nil, errs.ShapeMismatchf("softmax: input must have rank >= 1")
	}
	axis, err := tensor.NormalizeAxis(axis, rank)
	if err != nil {
		return nil, errs.ShapeMismatchf("softmax: %v", err)
	}

	// Elements are grouped as [outer, dim, inner]; each (outer, inner) pair is
	// one softmax row with stride inner.
	outer := shape[:axis].NumElements()
	dim := shape[axis]
	inner := shape[axis+1:].NumElements()
	if coerce2D {
		dim *= inner
		inner = 1
	}

	out, err := newLike(x, shape)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return out, nil
	}
	switch x.DType() {
	case tensor.Float32:
		softmax(out.AsFloat32(), x.AsFloat32(), outer, dim, inner)
	case tensor.Float64:
		softmax(out.AsFloat64(), x.AsFloat64(), outer, dim, inner)
	}
	return out, nil
}

func softmax[T tensor.Float](dst, src []T, outer, dim, inner int) {
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*dim*inner + in

			maxVal := src[base]
			for d := 1; d < dim; d++ {
				if v := src[base+d*inner]; v > maxVal {
					maxVal = v
				}
			}

			var sum float64
			for d := 0; d < dim; d++ {
				e := math.Exp(float64(src[base+d*inner] - maxVal))
				dst[base+d*inner] = T(e)
				sum += e
			}

			for d := 0; d < dim; d++ {
				dst[base+d*inner] = T(float64(dst[base+d*inner]) / sum)
			}
		}
	}
}
