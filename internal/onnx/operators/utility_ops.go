package operators

import (
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// registerUtilityOps adds pass-through and constant operators to the registry.
func (r *Registry) registerUtilityOps() {
	r.mustRegister(OpIdentity, handleIdentity)
	r.mustRegister(OpDropout, handleDropout)
	r.mustRegister(OpConstant, handleConstant)
}

// handleIdentity returns its input. Tensors are never mutated after they are
// produced, so sharing the buffer is safe.
func handleIdentity(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	return inputs, nil
}

// handleDropout is the inference-mode identity. The ratio and training_mode
// inputs are accepted and ignored; the optional mask output is all true.
func handleDropout(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 3); err != nil {
		return nil, err
	}
	x := inputs[0]
	if len(node.Outputs) < 2 || node.Outputs[1] == "" {
		return []*tensor.RawTensor{x}, nil
	}
	mask, err := tensor.NewRaw(x.Shape(), tensor.Bool)
	if err != nil {
		return nil, err
	}
	values := mask.AsBool()
	for i := range values {
		values[i] = true
	}
	return []*tensor.RawTensor{x, mask}, nil
}

// handleConstant materializes the single value attribute the node carries.
func handleConstant(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 0, 0); err != nil {
		return nil, err
	}
	if len(node.Attributes) != 1 {
		return nil, errs.Decodef("Constant requires exactly one value attribute, got %d", len(node.Attributes))
	}
	for name, attr := range node.Attributes {
		switch name {
		case "value":
			t, err := attr.Tensor()
			if err != nil {
				return nil, node.wrap(name, err)
			}
			return []*tensor.RawTensor{t}, nil
		case "value_float":
			v, err := attr.Float()
			if err != nil {
				return nil, node.wrap(name, err)
			}
			return []*tensor.RawTensor{tensor.Scalar(v)}, nil
		case "value_floats":
			v, err := attr.Floats()
			if err != nil {
				return nil, node.wrap(name, err)
			}
			return single(tensor.FromValues(tensor.Shape{len(v)}, v))
		case "value_int":
			v, err := attr.Int()
			if err != nil {
				return nil, node.wrap(name, err)
			}
			return []*tensor.RawTensor{tensor.Scalar(v)}, nil
		case "value_ints":
			v, err := attr.Ints()
			if err != nil {
				return nil, node.wrap(name, err)
			}
			return single(tensor.FromValues(tensor.Shape{len(v)}, v))
		}
		return nil, errs.Decodef("Constant: unsupported value attribute %q", name)
	}
	return nil, nil
}
