// Package cpu implements the inference kernels on the CPU.
//
// Kernels are pure: they never modify their operands and always allocate a
// fresh output. Incompatible operand shapes or types are reported as
// errs.ErrShapeMismatch before any computation starts.
package cpu

import (
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/parallel"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// CPUBackend runs kernels on the host CPU.
type CPUBackend struct {
	par parallel.Config
}

// New creates a CPU backend that splits heavy kernels according to par.
func New(par parallel.Config) *CPUBackend {
	return &CPUBackend{par: par}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Parallel returns the parallel configuration used by the heavy kernels.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.par
}

// requireFloat fails unless every operand is float32 or float64 and they all
// share the same type.
func requireFloat(op string, ts ...*tensor.RawTensor) error {
	if len(ts) == 0 {
		return nil
	}
	dt := ts[0].DType()
	if dt != tensor.Float32 && dt != tensor.Float64 {
		return errs.ShapeMismatchf("%s: unsupported dtype %s (only float32/float64 supported)", op, dt)
	}
	return requireSameType(op, ts...)
}

func requireSameType(op string, ts ...*tensor.RawTensor) error {
	for i, t := range ts[1:] {
		if t.DType() != ts[0].DType() {
			return errs.ShapeMismatchf("%s: operand %d has dtype %s, expected %s", op, i+1, t.DType(), ts[0].DType())
		}
	}
	return nil
}

func requireRank(op, what string, t *tensor.RawTensor, ranks ...int) error {
	for _, r := range ranks {
		if t.Rank() == r {
			return nil
		}
	}
	return errs.ShapeMismatchf("%s: %s must have rank %v, got shape %v", op, what, ranks, t.Shape())
}

// newLike allocates a zeroed output of the given shape with x's data type.
func newLike(x *tensor.RawTensor, shape tensor.Shape) (*tensor.RawTensor, error) {
	out, err := tensor.NewRaw(shape, x.DType())
	if err != nil {
		return nil, errs.ShapeMismatchf("cannot allocate output %v: %v", shape, err)
	}
	return out, nil
}
