package operators

import (
	"github.com/born-ml/onnxrun/internal/backend/cpu"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// registerMathOps adds arithmetic and matrix operators to the registry.
func (r *Registry) registerMathOps() {
	r.mustRegister(OpAdd, binaryHandler(cpu.OpAdd))
	r.mustRegister(OpSub, binaryHandler(cpu.OpSub))
	r.mustRegister(OpMul, binaryHandler(cpu.OpMul))
	r.mustRegister(OpDiv, binaryHandler(cpu.OpDiv))
	r.mustRegister(OpGemm, handleGemm)
	r.mustRegister(OpMatMul, handleMatMul)
}

// binaryHandler builds the handler of an element-wise operator with
// multidirectional broadcasting.
func binaryHandler(op cpu.BinaryOp) OpHandler {
	return func(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := requireInputs(node, inputs, 2, 2); err != nil {
			return nil, err
		}
		return single(ctx.Backend.Binary(op, inputs[0], inputs[1]))
	}
}

// handleGemm computes alpha*A'*B' + beta*C, where C is optional and
// unidirectionally broadcast to the result.
func handleGemm(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 2, 3); err != nil {
		return nil, err
	}
	alpha, err := node.Float("alpha", 1)
	if err != nil {
		return nil, err
	}
	beta, err := node.Float("beta", 1)
	if err != nil {
		return nil, err
	}
	transA, err := node.Int("transA", 0)
	if err != nil {
		return nil, err
	}
	transB, err := node.Int("transB", 0)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.Gemm(inputs[0], inputs[1], optional(inputs, 2),
		float64(alpha), float64(beta), transA != 0, transB != 0))
}

func handleMatMul(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 2, 2); err != nil {
		return nil, err
	}
	return single(ctx.Backend.MatMul(inputs[0], inputs[1]))
}
