// Package classify ranks classifier outputs and maps class indices to
// human readable labels.
package classify

import (
	"math"
	"slices"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// Prediction is one ranked class of an output row.
type Prediction struct {
	Index int
	Value float64
}

// TopK returns, for every batch row of t, the min(k, classes) highest
// scoring classes in strictly descending order of value, ties broken by the
// lower index.
//
// t is read as [batch, classes...]: trailing dimensions are flattened into
// the class axis and a rank-1 tensor is a single row. NaN ranks below every
// number.
func TopK(t *tensor.RawTensor, k int) ([][]Prediction, error) {
	if k <= 0 {
		return nil, errs.ShapeMismatchf("top-k: k must be positive, got %d", k)
	}
	shape := t.Shape()
	var batch, classes int
	switch shape.Rank() {
	case 0:
		return nil, errs.ShapeMismatchf("top-k: scores must have rank >= 1")
	case 1:
		batch, classes = 1, shape[0]
	default:
		batch, classes = shape[0], shape[1:].NumElements()
	}

	values := tensor.Float64s(t)
	rows := make([][]Prediction, batch)
	for b := range rows {
		row := make([]Prediction, classes)
		for c := range row {
			row[c] = Prediction{Index: c, Value: values[b*classes+c]}
		}
		slices.SortStableFunc(row, func(x, y Prediction) int {
			return compareDesc(x.Value, y.Value)
		})
		rows[b] = row[:min(k, classes)]
	}
	return rows, nil
}

func compareDesc(x, y float64) int {
	switch xn, yn := math.IsNaN(x), math.IsNaN(y); {
	case xn && yn:
		return 0
	case xn:
		return 1
	case yn:
		return -1
	case x > y:
		return -1
	case x < y:
		return 1
	}
	return 0
}

// Argmax returns the index of the highest value of each row.
func Argmax(t *tensor.RawTensor) ([]int, error) {
	rows, err := TopK(t, 1)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = -1
		if len(row) > 0 {
			out[i] = row[0].Index
		}
	}
	return out, nil
}
