package cpu

import (
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// BinaryOp selects the arithmetic of an element-wise binary kernel.
type BinaryOp int

// Element-wise binary operations.
const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
)

// String returns the operator name.
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	default:
		return "binary"
	}
}

type arith interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.Binary(OpAdd, a, b)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.Binary(OpSub, a, b)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.Binary(OpMul, a, b)
}

// Div performs element-wise division with broadcasting. Integer division
// truncates toward zero; an integer zero divisor fails.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.Binary(OpDiv, a, b)
}

// Binary applies op element-wise. Shapes are aligned from the trailing
// dimension; a dimension of 1 (or a missing leading one) is stretched.
func (cpu *CPUBackend) Binary(op BinaryOp, a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := requireSameType(op.String(), a, b); err != nil {
		return nil, err
	}
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		return nil, errs.ShapeMismatchf("%s: %v", op, err)
	}
	out, err := newLike(a, outShape)
	if err != nil {
		return nil, err
	}

	switch a.DType() {
	case tensor.Float32:
		binary(op, out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	case tensor.Float64:
		binary(op, out.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	case tensor.Int32:
		if op == OpDiv && hasZero(b.AsInt32()) {
			return nil, errs.ShapeMismatchf("div: integer division by zero")
		}
		binary(op, out.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	case tensor.Int64:
		if op == OpDiv && hasZero(b.AsInt64()) {
			return nil, errs.ShapeMismatchf("div: integer division by zero")
		}
		binary(op, out.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	default:
		return nil, errs.ShapeMismatchf("%s: unsupported dtype %s", op, a.DType())
	}
	return out, nil
}

func hasZero[T int32 | int64](v []T) bool {
	for _, x := range v {
		if x == 0 {
			return true
		}
	}
	return false
}

func apply[T arith](op BinaryOp, x, y T) T {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	default:
		return x / y
	}
}

func binary[T arith](op BinaryOp, out, a, b []T, aShape, bShape, outShape tensor.Shape, needsBroadcast bool) {
	if !needsBroadcast {
		// Fast path: identical shapes.
		for i := range out {
			out[i] = apply(op, a[i], b[i])
		}
		return
	}

	outStrides := outShape.ComputeStrides()
	aStrides := tensor.BroadcastStrides(aShape, outShape)
	bStrides := tensor.BroadcastStrides(bShape, outShape)
	for i := range out {
		ai, bi := 0, 0
		rem := i
		for d, s := range outStrides {
			coord := rem / s
			rem %= s
			ai += coord * aStrides[d]
			bi += coord * bStrides[d]
		}
		out[i] = apply(op, a[ai], b[bi])
	}
}
