package cpu

import (
	"math"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/parallel"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// MaxPool takes the maximum over each window of an [N, C, spatial...] input.
//
// Padded positions never win: a window that only covers padding (possible
// with ceil_mode) yields -Inf.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool(x *tensor.RawTensor, win Window) (*tensor.RawTensor, error) {
	p, out, err := cpu.preparePool("maxpool", x, win)
	if err != nil {
		return nil, err
	}
	xs := x.Shape()
	switch x.DType() {
	case tensor.Float32:
		maxPool(out.AsFloat32(), x.AsFloat32(), xs[0], xs[1], p, cpu.par)
	case tensor.Float64:
		maxPool(out.AsFloat64(), x.AsFloat64(), xs[0], xs[1], p, cpu.par)
	}
	return out, nil
}

// AveragePool averages each window of an [N, C, spatial...] input.
//
// With countIncludePad the divisor counts pad positions inside the declared
// pads; otherwise only real input positions are counted.
func (cpu *CPUBackend) AveragePool(x *tensor.RawTensor, win Window, countIncludePad bool) (*tensor.RawTensor, error) {
	p, out, err := cpu.preparePool("averagepool", x, win)
	if err != nil {
		return nil, err
	}
	xs := x.Shape()
	switch x.DType() {
	case tensor.Float32:
		avgPool(out.AsFloat32(), x.AsFloat32(), xs[0], xs[1], p, countIncludePad, cpu.par)
	case tensor.Float64:
		avgPool(out.AsFloat64(), x.AsFloat64(), xs[0], xs[1], p, countIncludePad, cpu.par)
	}
	return out, nil
}

func (cpu *CPUBackend) preparePool(op string, x *tensor.RawTensor, win Window) (plane, *tensor.RawTensor, error) {
	if err := requireFloat(op, x); err != nil {
		return plane{}, nil, err
	}
	xs := x.Shape()
	if xs.Rank() < 3 {
		return plane{}, nil, errs.ShapeMismatchf("%s: input must be [N,C,spatial...], got %v", op, xs)
	}
	p, err := win.resolve(op, xs[2:])
	if err != nil {
		return plane{}, nil, err
	}
	out, err := newLike(x, p.outShape(xs[0], xs[1], xs.Rank()-2))
	if err != nil {
		return plane{}, nil, err
	}
	return p, out, nil
}

func maxPool[T tensor.Float](out, x []T, N, C int, p plane, par parallel.Config) {
	planeIn := p.H * p.W
	planeOut := p.HOut * p.WOut
	parallel.ForBatch(N, C, func(n, c int) {
		// Pre-slice channel plane: eliminates (n*C+c)*H*W bounds checks.
		src := x[(n*C+c)*planeIn : (n*C+c+1)*planeIn]
		dst := out[(n*C+c)*planeOut : (n*C+c+1)*planeOut]
		idx := 0
		for oh := 0; oh < p.HOut; oh++ {
			hStart := oh*p.SH - p.PT
			for ow := 0; ow < p.WOut; ow++ {
				wStart := ow*p.SW - p.PL
				maxVal := T(math.Inf(-1))
				for kh := 0; kh < p.KH; kh++ {
					h := hStart + kh*p.DH
					if h < 0 || h >= p.H {
						continue
					}
					rowData := src[h*p.W : (h+1)*p.W]
					for kw := 0; kw < p.KW; kw++ {
						w := wStart + kw*p.DW
						if w < 0 || w >= p.W {
							continue
						}
						if v := rowData[w]; v > maxVal || v != v {
							maxVal = v
						}
					}
				}
				dst[idx] = maxVal
				idx++
			}
		}
	}, par)
}

func avgPool[T tensor.Float](out, x []T, N, C int, p plane, countIncludePad bool, par parallel.Config) {
	planeIn := p.H * p.W
	planeOut := p.HOut * p.WOut
	parallel.ForBatch(N, C, func(n, c int) {
		src := x[(n*C+c)*planeIn : (n*C+c+1)*planeIn]
		dst := out[(n*C+c)*planeOut : (n*C+c+1)*planeOut]
		idx := 0
		for oh := 0; oh < p.HOut; oh++ {
			hStart := oh*p.SH - p.PT
			for ow := 0; ow < p.WOut; ow++ {
				wStart := ow*p.SW - p.PL
				var sum T
				count := 0
				for kh := 0; kh < p.KH; kh++ {
					h := hStart + kh*p.DH
					inH := h >= 0 && h < p.H
					padH := h >= -p.PT && h < p.H+p.PB
					for kw := 0; kw < p.KW; kw++ {
						w := wStart + kw*p.DW
						inW := w >= 0 && w < p.W
						if inH && inW {
							sum += src[h*p.W+w]
							count++
						} else if countIncludePad && padH && w >= -p.PL && w < p.W+p.PR {
							count++
						}
					}
				}
				if count > 0 {
					dst[idx] = sum / T(count)
				}
				idx++
			}
		}
	}, par)
}

// GlobalAveragePool averages all spatial positions of an [N, C, spatial...]
// input into [N, C, 1, ...].
func (cpu *CPUBackend) GlobalAveragePool(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.globalPool("globalaveragepool", x, false)
}

// GlobalMaxPool takes the maximum over all spatial positions.
func (cpu *CPUBackend) GlobalMaxPool(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.globalPool("globalmaxpool", x, true)
}

func (cpu *CPUBackend) globalPool(op string, x *tensor.RawTensor, takeMax bool) (*tensor.RawTensor, error) {
	if err := requireFloat(op, x); err != nil {
		return nil, err
	}
	xs := x.Shape()
	if xs.Rank() < 3 {
		return nil, errs.ShapeMismatchf("%s: input must be [N,C,spatial...], got %v", op, xs)
	}
	spatial := xs[2:].NumElements()
	if spatial == 0 {
		return nil, errs.ShapeMismatchf("%s: empty spatial dims in %v", op, xs)
	}
	outShape := make(tensor.Shape, xs.Rank())
	outShape[0], outShape[1] = xs[0], xs[1]
	for i := 2; i < len(outShape); i++ {
		outShape[i] = 1
	}
	out, err := newLike(x, outShape)
	if err != nil {
		return nil, err
	}
	switch x.DType() {
	case tensor.Float32:
		reducePlanes(out.AsFloat32(), x.AsFloat32(), spatial, takeMax, cpu.par)
	case tensor.Float64:
		reducePlanes(out.AsFloat64(), x.AsFloat64(), spatial, takeMax, cpu.par)
	}
	return out, nil
}

func reducePlanes[T tensor.Float](out, x []T, size int, takeMax bool, par parallel.Config) {
	parallel.For(len(out), func(i int) {
		src := x[i*size : (i+1)*size]
		if takeMax {
			m := src[0]
			for _, v := range src[1:] {
				if v > m || v != v {
					m = v
				}
			}
			out[i] = m
			return
		}
		var sum T
		for _, v := range src {
			sum += v
		}
		out[i] = sum / T(size)
	}, par)
}
