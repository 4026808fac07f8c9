package cpu

import (
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// Padding modes accepted by Window.AutoPad.
const (
	AutoPadNotSet    = "NOTSET"
	AutoPadValid     = "VALID"
	AutoPadSameUpper = "SAME_UPPER"
	AutoPadSameLower = "SAME_LOWER"
)

// Window describes a sliding window over the spatial dimensions of an
// (N, C, spatial...) tensor, shared by convolution and pooling.
//
// Empty Strides and Dilations default to 1, empty Pads to 0. Pads lists all
// begin paddings followed by all end paddings.
type Window struct {
	Kernel    []int
	Strides   []int
	Pads      []int
	Dilations []int
	AutoPad   string
	CeilMode  bool
}

// plane is a window resolved against a concrete input, lifted to two
// spatial dimensions (1-D inputs get a unit height).
type plane struct {
	H, W       int
	KH, KW     int
	SH, SW     int
	DH, DW     int
	PT, PL     int // begin pads
	PB, PR     int // end pads
	HOut, WOut int
}

// OutputSize returns floor((in + padBegin + padEnd - dil*(k-1) - 1)/stride) + 1,
// or the ceil variant, for one spatial dimension.
func OutputSize(in, k, stride, padBegin, padEnd, dil int, ceil bool) (int, error) {
	span := in + padBegin + padEnd - dil*(k-1) - 1
	if span < 0 {
		return 0, errs.ShapeMismatchf("window of size %d (dilation %d) does not fit input %d with pads (%d, %d)",
			k, dil, in, padBegin, padEnd)
	}
	if !ceil {
		return span/stride + 1, nil
	}
	out := (span+stride-1)/stride + 1
	// The last window must start inside the input or the begin padding.
	if (out-1)*stride >= in+padBegin {
		out--
	}
	return out, nil
}

func defaultInts(v []int, n, def int) []int {
	if len(v) != 0 {
		return v
	}
	out := make([]int, n)
	for i := range out {
		out[i] = def
	}
	return out
}

// resolve validates the window against the spatial dims of x and computes
// pads and output sizes.
func (w Window) resolve(op string, spatial tensor.Shape) (plane, error) {
	n := len(spatial)
	if n < 1 || n > 2 {
		return plane{}, errs.ShapeMismatchf("%s: only 1-D and 2-D spatial inputs are supported, got %d spatial dims", op, n)
	}
	if len(w.Kernel) != n {
		return plane{}, errs.ShapeMismatchf("%s: kernel_shape %v does not match %d spatial dims", op, w.Kernel, n)
	}
	strides := defaultInts(w.Strides, n, 1)
	dils := defaultInts(w.Dilations, n, 1)
	pads := defaultInts(w.Pads, 2*n, 0)
	if len(strides) != n || len(dils) != n || len(pads) != 2*n {
		return plane{}, errs.ShapeMismatchf("%s: strides %v, dilations %v or pads %v do not match %d spatial dims",
			op, strides, dils, pads, n)
	}

	begin := make([]int, n)
	end := make([]int, n)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		k, s, d := w.Kernel[i], strides[i], dils[i]
		if k <= 0 || s <= 0 || d <= 0 {
			return plane{}, errs.ShapeMismatchf("%s: kernel %d, stride %d and dilation %d must be positive", op, k, s, d)
		}
		switch w.AutoPad {
		case "", AutoPadNotSet:
			begin[i], end[i] = pads[i], pads[n+i]
			if begin[i] < 0 || end[i] < 0 {
				return plane{}, errs.ShapeMismatchf("%s: negative pads %v", op, pads)
			}
		case AutoPadValid:
		case AutoPadSameUpper, AutoPadSameLower:
			target := (spatial[i] + s - 1) / s
			total := max(0, (target-1)*s+d*(k-1)+1-spatial[i])
			if w.AutoPad == AutoPadSameUpper {
				begin[i] = total / 2
			} else {
				begin[i] = (total + 1) / 2
			}
			end[i] = total - begin[i]
		default:
			return plane{}, errs.ShapeMismatchf("%s: unknown auto_pad %q", op, w.AutoPad)
		}
		o, err := OutputSize(spatial[i], k, s, begin[i], end[i], d, w.CeilMode)
		if err != nil {
			return plane{}, errs.ShapeMismatchf("%s: %v", op, err)
		}
		out[i] = o
	}

	if n == 1 {
		return plane{
			H: 1, W: spatial[0],
			KH: 1, KW: w.Kernel[0],
			SH: 1, SW: strides[0],
			DH: 1, DW: dils[0],
			PL: begin[0], PR: end[0],
			HOut: 1, WOut: out[0],
		}, nil
	}
	return plane{
		H: spatial[0], W: spatial[1],
		KH: w.Kernel[0], KW: w.Kernel[1],
		SH: strides[0], SW: strides[1],
		DH: dils[0], DW: dils[1],
		PT: begin[0], PL: begin[1],
		PB: end[0], PR: end[1],
		HOut: out[0], WOut: out[1],
	}, nil
}

// outShape returns (N, C, out spatial...) keeping the input's spatial rank.
func (p plane) outShape(n, c, spatialRank int) tensor.Shape {
	if spatialRank == 1 {
		return tensor.Shape{n, c, p.WOut}
	}
	return tensor.Shape{n, c, p.HOut, p.WOut}
}
