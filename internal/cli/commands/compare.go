package commands

import (
	"math"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// comparison is the outcome of checking an output against its reference.
type comparison struct {
	MaxAbsDiff float64
	Mismatched int // elements further than the tolerance
	Total      int
}

func (c comparison) Pass() bool { return c.Mismatched == 0 }

// compareTensors checks got against want element by element. Shapes must
// match exactly; NaN only matches NaN.
func compareTensors(got, want *tensor.RawTensor, tolerance float64) (comparison, error) {
	if !got.Shape().Equal(want.Shape()) {
		return comparison{}, errs.ShapeMismatchf("output shape %v, expected %v", got.Shape(), want.Shape())
	}
	g, w := tensor.Float64s(got), tensor.Float64s(want)
	c := comparison{Total: len(g)}
	for i := range g {
		if math.IsNaN(g[i]) || math.IsNaN(w[i]) {
			if math.IsNaN(g[i]) != math.IsNaN(w[i]) {
				c.Mismatched++
				c.MaxAbsDiff = math.Inf(1)
			}
			continue
		}
		if g[i] == w[i] {
			continue
		}
		d := math.Abs(g[i] - w[i])
		if d > c.MaxAbsDiff {
			c.MaxAbsDiff = d
		}
		if d > tolerance {
			c.Mismatched++
		}
	}
	return c, nil
}
