package cpu

import (
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/parallel"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// Conv performs grouped cross-correlation (what deep learning frameworks
// call convolution) using the im2col algorithm.
//
// Input shape:  [N, C, spatial...] with one or two spatial dims
// Weight shape: [M, C/group, k...]
// Bias shape:   [M] (bias may be nil)
// Output shape: [N, M, out...]
//
// An empty win.Kernel is inferred from the weight shape.
//
// Algorithm: Im2col
//  1. For each image and group, unfold input patches into a column matrix
//     [C/group * K_h * K_w, H_out * W_out]
//  2. Treat the group's weights as a matrix [M/group, C/group * K_h * K_w]
//  3. Multiply, one output channel per work item
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv(x, w, bias *tensor.RawTensor, win Window, group int) (*tensor.RawTensor, error) {
	if err := requireFloat("conv", x, w); err != nil {
		return nil, err
	}
	xs, ws := x.Shape(), w.Shape()
	if xs.Rank() < 3 {
		return nil, errs.ShapeMismatchf("conv: input must be [N,C,spatial...], got %v", xs)
	}
	if ws.Rank() != xs.Rank() {
		return nil, errs.ShapeMismatchf("conv: weight %v and input %v ranks differ", ws, xs)
	}
	if group <= 0 {
		return nil, errs.ShapeMismatchf("conv: group must be positive, got %d", group)
	}

	N, C := xs[0], xs[1]
	M := ws[0]
	if C%group != 0 || M%group != 0 {
		return nil, errs.ShapeMismatchf("conv: channels %d and filters %d must be divisible by group %d", C, M, group)
	}
	if ws[1] != C/group {
		return nil, errs.ShapeMismatchf("conv: weight %v expects %d input channels per group, input has %d channels and group %d",
			ws, ws[1], C, group)
	}

	if len(win.Kernel) == 0 {
		win.Kernel = ws[2:]
	} else if !tensor.Shape(win.Kernel).Equal(ws[2:]) {
		return nil, errs.ShapeMismatchf("conv: kernel_shape %v does not match weight %v", win.Kernel, ws)
	}
	p, err := win.resolve("conv", xs[2:])
	if err != nil {
		return nil, err
	}

	if bias != nil {
		if err := requireSameType("conv", x, bias); err != nil {
			return nil, err
		}
		if !bias.Shape().Equal(tensor.Shape{M}) {
			return nil, errs.ShapeMismatchf("conv: bias must have shape (%d), got %v", M, bias.Shape())
		}
	}

	out, err := newLike(x, p.outShape(N, M, xs.Rank()-2))
	if err != nil {
		return nil, err
	}

	switch x.DType() {
	case tensor.Float32:
		conv2d(tensor.Values[float32](out), x.AsFloat32(), w.AsFloat32(), biasValues[float32](bias), N, C, M, group, p, cpu.par)
	case tensor.Float64:
		conv2d(tensor.Values[float64](out), x.AsFloat64(), w.AsFloat64(), biasValues[float64](bias), N, C, M, group, p, cpu.par)
	}
	return out, nil
}

func biasValues[T tensor.Float](bias *tensor.RawTensor) []T {
	if bias == nil {
		return nil
	}
	return tensor.Values[T](bias)
}

func conv2d[T tensor.Float](out, x, w, bias []T, N, C, M, group int, p plane, par parallel.Config) {
	cg := C / group
	mg := M / group
	colWidth := cg * p.KH * p.KW
	positions := p.HOut * p.WOut
	col := make([]T, colWidth*positions)

	for n := 0; n < N; n++ {
		for g := 0; g < group; g++ {
			channelOffset := (n*C + g*cg) * p.H * p.W
			im2col(col, x[channelOffset:channelOffset+cg*p.H*p.W], cg, p)

			parallel.For(mg, func(j int) {
				oc := g*mg + j
				dst := out[(n*M+oc)*positions : (n*M+oc+1)*positions]
				var b T
				if bias != nil {
					b = bias[oc]
				}
				for i := range dst {
					dst[i] = b
				}
				kernel := w[oc*colWidth : (oc+1)*colWidth]
				for k, wv := range kernel {
					row := col[k*positions : (k+1)*positions]
					for i, v := range row {
						dst[i] += wv * v
					}
				}
			}, par)
		}
	}
}

// im2col unfolds the [C, H, W] image into col [C*K_h*K_w, H_out*W_out]:
// each row holds one kernel tap across all output positions. Taps that fall
// into padding are zero.
func im2col[T tensor.Float](col, img []T, C int, p plane) {
	positions := p.HOut * p.WOut
	row := 0
	for c := 0; c < C; c++ {
		channel := img[c*p.H*p.W : (c+1)*p.H*p.W]
		for kh := 0; kh < p.KH; kh++ {
			for kw := 0; kw < p.KW; kw++ {
				dst := col[row*positions : (row+1)*positions]
				idx := 0
				for oh := 0; oh < p.HOut; oh++ {
					h := oh*p.SH - p.PT + kh*p.DH
					for ow := 0; ow < p.WOut; ow++ {
						wIdx := ow*p.SW - p.PL + kw*p.DW
						if h >= 0 && h < p.H && wIdx >= 0 && wIdx < p.W {
							dst[idx] = channel[h*p.W+wIdx]
						} else {
							dst[idx] = 0
						}
						idx++
					}
				}
				row++
			}
		}
	}
}
