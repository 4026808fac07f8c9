package cpu

import (
	"math"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/parallel"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// LRNParams configures local response normalization across channels.
type LRNParams struct {
	Size  int
	Alpha float64
	Beta  float64
	Bias  float64
}

// LRN normalizes each element of an [N, C, spatial...] input by the sum of
// squares over a window of Size neighboring channels:
//
//	y = x / (bias + alpha/size * sum(x^2))^beta
//
// The window for channel c spans [c - floor((size-1)/2), c + ceil((size-1)/2)],
// clipped to the valid channels.
func (cpu *CPUBackend) LRN(x *tensor.RawTensor, params LRNParams) (*tensor.RawTensor, error) {
	if err := requireFloat("lrn", x); err != nil {
		return nil, err
	}
	xs := x.Shape()
	if xs.Rank() < 3 {
		return nil, errs.ShapeMismatchf("lrn: input must be [N,C,spatial...], got %v", xs)
	}
	if params.Size <= 0 {
		return nil, errs.ShapeMismatchf("lrn: size must be positive, got %d", params.Size)
	}
	out, err := newLike(x, xs)
	if err != nil {
		return nil, err
	}
	N, C, spatial := xs[0], xs[1], xs[2:].NumElements()
	switch x.DType() {
	case tensor.Float32:
		lrn(out.AsFloat32(), x.AsFloat32(), N, C, spatial, params, cpu.par)
	case tensor.Float64:
		lrn(out.AsFloat64(), x.AsFloat64(), N, C, spatial, params, cpu.par)
	}
	return out, nil
}

func lrn[T tensor.Float](out, x []T, N, C, spatial int, params LRNParams, par parallel.Config) {
	before := (params.Size - 1) / 2
	after := params.Size - 1 - before
	scale := params.Alpha / float64(params.Size)
	parallel.ForBatch(N, C, func(n, c int) {
		lo := max(0, c-before)
		hi := min(C-1, c+after)
		base := n * C * spatial
		for s := 0; s < spatial; s++ {
			var sum float64
			for cc := lo; cc <= hi; cc++ {
				v := float64(x[base+cc*spatial+s])
				sum += v * v
			}
			idx := base + c*spatial + s
			out[idx] = T(float64(x[idx]) / math.Pow(params.Bias+scale*sum, params.Beta))
		}
	}, par)
}

// BatchNormalization applies inference-mode batch normalization to an
// [N, C, ...] input with per-channel parameters of shape [C]:
//
//	y = scale * (x - mean) / sqrt(variance + epsilon) + bias
func (cpu *CPUBackend) BatchNormalization(x, scale, bias, mean, variance *tensor.RawTensor, epsilon float64) (*tensor.RawTensor, error) {
	if err := requireFloat("batchnorm", x, scale, bias, mean, variance); err != nil {
		return nil, err
	}
	xs := x.Shape()
	if xs.Rank() < 2 {
		return nil, errs.ShapeMismatchf("batchnorm: input must be [N,C,...], got %v", xs)
	}
	C := xs[1]
	for _, p := range []struct {
		name string
		t    *tensor.RawTensor
	}{{"scale", scale}, {"bias", bias}, {"mean", mean}, {"variance", variance}} {
		if !p.t.Shape().Equal(tensor.Shape{C}) {
			return nil, errs.ShapeMismatchf("batchnorm: %s must have shape (%d), got %v", p.name, C, p.t.Shape())
		}
	}
	out, err := newLike(x, xs)
	if err != nil {
		return nil, err
	}
	N, spatial := xs[0], xs[2:].NumElements()
	switch x.DType() {
	case tensor.Float32:
		batchNorm(out.AsFloat32(), x.AsFloat32(), scale.AsFloat32(), bias.AsFloat32(),
			mean.AsFloat32(), variance.AsFloat32(), N, C, spatial, epsilon)
	case tensor.Float64:
		batchNorm(out.AsFloat64(), x.AsFloat64(), scale.AsFloat64(), bias.AsFloat64(),
			mean.AsFloat64(), variance.AsFloat64(), N, C, spatial, epsilon)
	}
	return out, nil
}

func batchNorm[T tensor.Float](out, x, scale, bias, mean, variance []T, N, C, spatial int, epsilon float64) {
	for c := 0; c < C; c++ {
		factor := float64(scale[c]) / math.Sqrt(float64(variance[c])+epsilon)
		shift := float64(bias[c]) - float64(mean[c])*factor
		for n := 0; n < N; n++ {
			base := (n*C + c) * spatial
			for s := 0; s < spatial; s++ {
				out[base+s] = T(float64(x[base+s])*factor + shift)
			}
		}
	}
}
