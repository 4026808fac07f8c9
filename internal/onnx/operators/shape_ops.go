package operators

import (
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// registerShapeOps adds shape manipulation operators to the registry.
func (r *Registry) registerShapeOps() {
	r.mustRegister(OpConcat, handleConcat)
	r.mustRegister(OpFlatten, handleFlatten)
	r.mustRegister(OpReshape, handleReshape)
}

func handleConcat(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) == 0 {
		return nil, errs.ShapeMismatchf("Concat requires at least one input")
	}
	if err := requireInputs(node, inputs, len(inputs), len(inputs)); err != nil {
		return nil, err
	}
	if !node.Has("axis") {
		return nil, errs.Decodef("Concat: missing required attribute axis")
	}
	axis, err := node.Int("axis", 0)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.Concat(inputs, int(axis)))
}

func handleFlatten(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	axis, err := node.Int("axis", 1)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.Flatten(inputs[0], int(axis)))
}

// handleReshape takes the target shape from the int64 second input. A 0
// copies the input dimension unless allowzero is set, and a single -1 is
// inferred.
func handleReshape(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 2, 2); err != nil {
		return nil, err
	}
	shape := inputs[1]
	if shape.DType() != tensor.Int64 || shape.Rank() != 1 {
		return nil, errs.ShapeMismatchf("Reshape: shape must be a 1-D int64 tensor, got %s", shape)
	}
	allowZero, err := node.Int("allowzero", 0)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.Reshape(inputs[0], shape.AsInt64(), allowZero != 0))
}
