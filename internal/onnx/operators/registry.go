package operators

import (
	"fmt"
	"sort"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/born-ml/onnxrun/internal/backend/cpu"
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// OpType is an ONNX operator tag.
type OpType string

// Operators the runtime implements. The set is closed: Register only
// accepts these tags.
const (
	OpRelu               OpType = "Relu"
	OpLeakyRelu          OpType = "LeakyRelu"
	OpClip               OpType = "Clip"
	OpSoftmax            OpType = "Softmax"
	OpConv               OpType = "Conv"
	OpMaxPool            OpType = "MaxPool"
	OpAveragePool        OpType = "AveragePool"
	OpGlobalAveragePool  OpType = "GlobalAveragePool"
	OpGlobalMaxPool      OpType = "GlobalMaxPool"
	OpGemm               OpType = "Gemm"
	OpMatMul             OpType = "MatMul"
	OpLRN                OpType = "LRN"
	OpBatchNormalization OpType = "BatchNormalization"
	OpConcat             OpType = "Concat"
	OpFlatten            OpType = "Flatten"
	OpReshape            OpType = "Reshape"
	OpIdentity           OpType = "Identity"
	OpDropout            OpType = "Dropout"
	OpAdd                OpType = "Add"
	OpSub                OpType = "Sub"
	OpMul                OpType = "Mul"
	OpDiv                OpType = "Div"
	OpConstant           OpType = "Constant"
)

var knownOps = map[OpType]bool{
	OpRelu: true, OpLeakyRelu: true, OpClip: true, OpSoftmax: true,
	OpConv: true, OpMaxPool: true, OpAveragePool: true, OpGlobalAveragePool: true, OpGlobalMaxPool: true,
	OpGemm: true, OpMatMul: true, OpLRN: true, OpBatchNormalization: true,
	OpConcat: true, OpFlatten: true, OpReshape: true, OpIdentity: true, OpDropout: true,
	OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpConstant: true,
}

// OpHandler processes an ONNX node and returns output tensors.
type OpHandler func(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)

// Context provides the backend and model level settings to handlers.
type Context struct {
	Backend *cpu.CPUBackend
	Opset   int64 // default-domain opset version of the model
}

// Registry maps ONNX operator types to handler functions.
type Registry struct {
	handlers map[OpType]OpHandler
}

// NewRegistry creates a new operator registry with all supported operators.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[OpType]OpHandler),
	}

	// Register all operators
	r.registerActivations()
	r.registerConvOps()
	r.registerMathOps()
	r.registerNormalizationOps()
	r.registerShapeOps()
	r.registerUtilityOps()

	return r
}

// Register adds a handler for a known operator type. Unknown tags and
// duplicate registrations are rejected.
func (r *Registry) Register(opType OpType, handler OpHandler) error {
	if !knownOps[opType] {
		return errs.UnknownOpf("%s is not a supported operator type", opType)
	}
	if _, dup := r.handlers[opType]; dup {
		return errors.Errorf("operator %s registered twice", opType)
	}
	r.handlers[opType] = handler
	return nil
}

// mustRegister is used by the built-in families, whose tags are static.
func (r *Registry) mustRegister(opType OpType, handler OpHandler) {
	if err := r.Register(opType, handler); err != nil {
		panic(err)
	}
}

// Get returns the handler for an operator type.
func (r *Registry) Get(opType string) (OpHandler, bool) {
	h, ok := r.handlers[OpType(opType)]
	return h, ok
}

// Supports reports whether node can be executed: a registered op type in
// the default ONNX domain.
func (r *Registry) Supports(node *Node) bool {
	if node.Domain != "" && node.Domain != "ai.onnx" {
		return false
	}
	_, ok := r.handlers[OpType(node.OpType)]
	return ok
}

// Execute runs an operator with the given inputs.
//
// The kernels compute in float32 or float64. Float16 operands are widened
// to float32 before the handler runs and its float32 results narrowed back.
//
// Kernel panics (an index out of range on a malformed operand, for example)
// are caught here and reported as ShapeMismatch, so a bad model can never
// crash the caller.
func (r *Registry) Execute(ctx *Context, node *Node, inputs []*tensor.RawTensor) (outputs []*tensor.RawTensor, err error) {
	if !r.Supports(node) {
		return nil, errs.UnknownOpf("unsupported operator: %s", qualifiedOp(node))
	}
	handler := r.handlers[OpType(node.OpType)]
	inputs, half, err := widenHalf(node, inputs)
	if err != nil {
		return nil, err
	}
	exception := exceptions.Try(func() {
		outputs, err = handler(ctx, node, inputs)
	})
	if exception != nil {
		return nil, errs.ShapeMismatchf("%s kernel failed: %v", node.OpType, exception)
	}
	if err != nil {
		return nil, err
	}
	if half {
		if outputs, err = narrowHalf(node, outputs); err != nil {
			return nil, err
		}
	}
	if len(outputs) > len(node.Outputs) {
		outputs = outputs[:len(node.Outputs)]
	}
	return outputs, nil
}

func qualifiedOp(node *Node) string {
	if node.Domain == "" {
		return node.OpType
	}
	return fmt.Sprintf("%s.%s", node.Domain, node.OpType)
}

// SupportedOps returns all supported operator types, sorted.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	return ops
}

// Input validation helpers shared by the handlers.

// requireInputs checks that at least min and at most max inputs are given
// and that the first min of them are present.
func requireInputs(node *Node, inputs []*tensor.RawTensor, minInputs, maxInputs int) error {
	if len(inputs) < minInputs || len(inputs) > maxInputs {
		if minInputs == maxInputs {
			return errs.ShapeMismatchf("%s requires %d inputs, got %d", node.OpType, minInputs, len(inputs))
		}
		return errs.ShapeMismatchf("%s requires %d to %d inputs, got %d", node.OpType, minInputs, maxInputs, len(inputs))
	}
	for i := 0; i < minInputs; i++ {
		if inputs[i] == nil {
			return errs.MissingInputf("%s: required input %d is empty", node.OpType, i)
		}
	}
	return nil
}

// optional returns inputs[i], or nil when omitted.
func optional(inputs []*tensor.RawTensor, i int) *tensor.RawTensor {
	if i < len(inputs) {
		return inputs[i]
	}
	return nil
}

func single(t *tensor.RawTensor, err error) ([]*tensor.RawTensor, error) {
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{t}, nil
}
