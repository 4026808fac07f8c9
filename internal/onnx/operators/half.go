package operators

import (
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// widenHalf returns inputs with every Float16 operand converted to Float32,
// and whether any conversion happened. The caller's slice is not modified.
func widenHalf(node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, bool, error) {
	var widened []*tensor.RawTensor
	for i, t := range inputs {
		if t == nil || t.DType() != tensor.Float16 {
			continue
		}
		if widened == nil {
			widened = make([]*tensor.RawTensor, len(inputs))
			copy(widened, inputs)
		}
		f32, err := tensor.ToFloat32(t)
		if err != nil {
			return nil, false, errs.ShapeMismatchf("%s: input %d: %v", node.OpType, i, err)
		}
		widened[i] = f32
	}
	if widened == nil {
		return inputs, false, nil
	}
	return widened, true, nil
}

// narrowHalf converts the Float32 results of a widened call back to Float16.
func narrowHalf(node *Node, outputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	for i, t := range outputs {
		if t == nil || t.DType() != tensor.Float32 {
			continue
		}
		h, err := tensor.Float16FromFloat32(t.Shape(), t.AsFloat32())
		if err != nil {
			return nil, errs.ShapeMismatchf("%s: output %d: %v", node.OpType, i, err)
		}
		outputs[i] = h
	}
	return outputs, nil
}
