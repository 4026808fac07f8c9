package cpu

import (
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// Concat joins tensors along axis (negative counts from the end). All inputs
// must share dtype, rank and every dimension except axis.
func (cpu *CPUBackend) Concat(inputs []*tensor.RawTensor, axis int) (*tensor.RawTensor, error) {
	if len(inputs) == 0 {
		return nil, errs.ShapeMismatchf("concat: no inputs")
	}
	if err := requireSameType("concat", inputs...); err != nil {
		return nil, err
	}
	first := inputs[0].Shape()
	rank := first.Rank()
	axis, err := tensor.NormalizeAxis(axis, rank)
	if err != nil {
		return nil, errs.ShapeMismatchf("concat: %v", err)
	}

	outShape := first.Clone()
	outShape[axis] = 0
	for i, in := range inputs {
		s := in.Shape()
		if s.Rank() != rank {
			return nil, errs.ShapeMismatchf("concat: input %d has shape %v, expected rank %d", i, s, rank)
		}
		for d := range s {
			if d != axis && s[d] != first[d] {
				return nil, errs.ShapeMismatchf("concat: input %d has shape %v, incompatible with %v on axis %d", i, s, first, axis)
			}
		}
		outShape[axis] += s[axis]
	}

	out, err := newLike(inputs[0], outShape)
	if err != nil {
		return nil, err
	}

	// Copy contiguous blocks: for every outer index each input contributes
	// dim(axis) * inner elements.
	elem := inputs[0].DType().Size()
	outer := first[:axis].NumElements()
	inner := first[axis+1:].NumElements()
	dst := out.Data()
	pos := 0
	for o := 0; o < outer; o++ {
		for _, in := range inputs {
			block := in.Shape()[axis] * inner * elem
			copy(dst[pos:pos+block], in.Data()[o*block:(o+1)*block])
			pos += block
		}
	}
	return out, nil
}

// Flatten reshapes x into a matrix [prod(dims[:axis]), prod(dims[axis:])].
// axis may equal the rank, giving [prod(dims), 1].
func (cpu *CPUBackend) Flatten(x *tensor.RawTensor, axis int) (*tensor.RawTensor, error) {
	s := x.Shape()
	rank := s.Rank()
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis > rank {
		return nil, errs.ShapeMismatchf("flatten: axis %d out of range for rank %d", axis, rank)
	}
	return x.Clone().Reshaped(tensor.Shape{s[:axis].NumElements(), s[axis:].NumElements()})
}

// ReshapeTarget resolves a Reshape shape request against an input shape:
// 0 copies the input dimension at the same position (unless allowZero), and
// a single -1 is inferred from the remaining element count.
func ReshapeTarget(in tensor.Shape, request []int64, allowZero bool) (tensor.Shape, error) {
	out := make(tensor.Shape, len(request))
	infer := -1
	known := 1
	for i, r := range request {
		switch {
		case r == -1:
			if infer >= 0 {
				return nil, errs.ShapeMismatchf("reshape: more than one -1 in %v", request)
			}
			infer = i
			continue
		case r == 0 && !allowZero:
			if i >= in.Rank() {
				return nil, errs.ShapeMismatchf("reshape: 0 at position %d but input %v has rank %d", i, in, in.Rank())
			}
			out[i] = in[i]
		case r < 0:
			return nil, errs.ShapeMismatchf("reshape: invalid dimension %d in %v", r, request)
		default:
			out[i] = int(r)
		}
		known *= out[i]
	}

	total := in.NumElements()
	if infer >= 0 {
		if known == 0 || total%known != 0 {
			return nil, errs.ShapeMismatchf("reshape: cannot infer -1 in %v for input %v", request, in)
		}
		out[infer] = total / known
	}
	if out.NumElements() != total {
		return nil, errs.ShapeMismatchf("reshape: %v (%d elements) cannot become %v (%d elements)",
			in, total, out, out.NumElements())
	}
	return out, nil
}

// Reshape returns x with the shape resolved by ReshapeTarget.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, request []int64, allowZero bool) (*tensor.RawTensor, error) {
	target, err := ReshapeTarget(x.Shape(), request, allowZero)
	if err != nil {
		return nil, err
	}
	return x.Clone().Reshaped(target)
}
