package operators

import (
	"github.com/born-ml/onnxrun/internal/backend/cpu"
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// registerNormalizationOps adds normalization operators to the registry.
func (r *Registry) registerNormalizationOps() {
	r.mustRegister(OpLRN, handleLRN)
	r.mustRegister(OpBatchNormalization, handleBatchNormalization)
}

func handleLRN(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	if !node.Has("size") {
		return nil, errs.Decodef("LRN: missing required attribute size")
	}
	size, err := node.Int("size", 0)
	if err != nil {
		return nil, err
	}
	alpha, err := node.Float("alpha", 1e-4)
	if err != nil {
		return nil, err
	}
	beta, err := node.Float("beta", 0.75)
	if err != nil {
		return nil, err
	}
	bias, err := node.Float("bias", 1)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.LRN(inputs[0], cpu.LRNParams{
		Size:  int(size),
		Alpha: float64(alpha),
		Beta:  float64(beta),
		Bias:  float64(bias),
	}))
}

// handleBatchNormalization runs inference mode only: the running mean and
// variance outputs of training mode are never produced.
func handleBatchNormalization(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 5, 5); err != nil {
		return nil, err
	}
	epsilon, err := node.Float("epsilon", 1e-5)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.BatchNormalization(inputs[0], inputs[1], inputs[2], inputs[3], inputs[4], float64(epsilon)))
}
