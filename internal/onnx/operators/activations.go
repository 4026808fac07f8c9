package operators

import (
	"math"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// registerActivations adds activation operators to the registry.
func (r *Registry) registerActivations() {
	r.mustRegister(OpRelu, handleRelu)
	r.mustRegister(OpLeakyRelu, handleLeakyRelu)
	r.mustRegister(OpClip, handleClip)
	r.mustRegister(OpSoftmax, handleSoftmax)
}

func handleRelu(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	return single(ctx.Backend.Relu(inputs[0]))
}

func handleLeakyRelu(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	alpha, err := node.Float("alpha", 0.01)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.LeakyRelu(inputs[0], float64(alpha)))
}

// handleClip reads the bounds from the min/max attributes (opset < 11) or
// from the optional scalar inputs 1 and 2.
func handleClip(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 3); err != nil {
		return nil, err
	}
	lo, hi := math.Inf(-1), math.Inf(1)
	if node.Has("min") || node.Has("max") {
		minAttr, err := node.Float("min", float32(math.Inf(-1)))
		if err != nil {
			return nil, err
		}
		maxAttr, err := node.Float("max", float32(math.Inf(1)))
		if err != nil {
			return nil, err
		}
		lo, hi = float64(minAttr), float64(maxAttr)
	}
	var err error
	if t := optional(inputs, 1); t != nil {
		if lo, err = scalarValue(node, "min", t); err != nil {
			return nil, err
		}
	}
	if t := optional(inputs, 2); t != nil {
		if hi, err = scalarValue(node, "max", t); err != nil {
			return nil, err
		}
	}
	return single(ctx.Backend.Clip(inputs[0], lo, hi))
}

func scalarValue(node *Node, what string, t *tensor.RawTensor) (float64, error) {
	if t.NumElements() != 1 {
		return 0, errs.ShapeMismatchf("%s: %s must be a scalar, got %v", node.OpType, what, t.Shape())
	}
	if t.DType() == tensor.Bool {
		return 0, errs.ShapeMismatchf("%s: %s has dtype %s", node.OpType, what, t.DType())
	}
	return tensor.Float64s(t)[0], nil
}

// handleSoftmax follows opset 13 (a single axis, default -1) and coerces the
// input to 2-D at axis (default 1) for older opsets.
func handleSoftmax(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	legacy := ctx.Opset > 0 && ctx.Opset < 13
	def := int64(-1)
	if legacy {
		def = 1
	}
	axis, err := node.Int("axis", def)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.Softmax(inputs[0], int(axis), legacy))
}
