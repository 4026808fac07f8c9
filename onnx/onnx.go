// Package onnx loads ONNX models and runs them on the CPU.
//
// It is a self-contained runtime: the protobuf wire format is decoded
// without generated code, the graph is ordered by its data dependencies
// and every node is executed by a built-in kernel.
//
// # Example Usage
//
//	import (
//	    "github.com/born-ml/onnxrun/onnx"
//	    "github.com/born-ml/onnxrun/tensor"
//	)
//
//	model, err := onnx.LoadModel("mnist-8/model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	input, err := onnx.LoadData("mnist-8/test_data_set_0/input_0.pb")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	exec := onnx.NewExecutor(onnx.DefaultExecConfig())
//	output, err := exec.Run(model, input)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	top, _ := onnx.TopK(output, 3)
//	fmt.Println(top[0])
//
// # Supported Operators
//
//   - Activation: Relu, LeakyRelu, Clip, Softmax
//   - Convolution and pooling: Conv, MaxPool, AveragePool, GlobalAveragePool, GlobalMaxPool
//   - Linear algebra: Gemm, MatMul
//   - Normalization: LRN, BatchNormalization
//   - Arithmetic (broadcasting): Add, Sub, Mul, Div
//   - Shape: Concat, Flatten, Reshape
//   - Other: Identity, Dropout, Constant
//
// Use [ListSupportedOps] to get the complete list of supported operators.
//
// # Errors
//
// Every failure wraps one of the Err* sentinels; test with errors.Is or
// classify with [KindOf].
package onnx

import (
	"github.com/born-ml/onnxrun/internal/classify"
	"github.com/born-ml/onnxrun/internal/errs"
	internalonnx "github.com/born-ml/onnxrun/internal/onnx"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// Model is a loaded, immutable ONNX model. It can be shared by concurrent
// runs.
type Model = internalonnx.Model

// ValueInfo describes a declared graph input or output.
type ValueInfo = internalonnx.ValueInfo

// Executor runs models. One executor can serve concurrent runs.
type Executor = internalonnx.Executor

// ExecConfig configures graph execution.
type ExecConfig = internalonnx.ExecConfig

// Order selects how nodes are ordered for execution.
type Order = internalonnx.Order

// Execution orders.
const (
	OrderResolve  = internalonnx.OrderResolve
	OrderRecorded = internalonnx.OrderRecorded
)

// ModelInfo summarizes a model for display.
type ModelInfo = internalonnx.ModelInfo

// Prediction is one ranked class of a classifier output.
type Prediction = classify.Prediction

// Error kinds returned by the runtime.
var (
	ErrIO            = errs.ErrIO
	ErrDecode        = errs.ErrDecode
	ErrUnknownOp     = errs.ErrUnknownOp
	ErrMissingInput  = errs.ErrMissingInput
	ErrShapeMismatch = errs.ErrShapeMismatch
	ErrCycleDetected = errs.ErrCycleDetected
)

// Kind classifies an error returned by the runtime.
type Kind = errs.Kind

// NodeError reports the graph node a failure happened in.
type NodeError = errs.NodeError

// KindOf returns the kind of err, KindUnknown when it carries none.
func KindOf(err error) Kind {
	return errs.KindOf(err)
}

// LoadModel reads and decodes an ONNX model file.
func LoadModel(path string) (*Model, error) {
	return internalonnx.LoadModel(path)
}

// LoadModelFromBytes decodes an in-memory ONNX model.
//
// Example:
//
//	data, _ := os.ReadFile("model.onnx")
//	model, err := onnx.LoadModelFromBytes(data)
func LoadModelFromBytes(data []byte) (*Model, error) {
	return internalonnx.LoadModelFromBytes(data)
}

// LoadData reads a TensorProto file such as input_0.pb of an ONNX test set.
func LoadData(path string) (*tensor.RawTensor, error) {
	return internalonnx.LoadData(path)
}

// SaveData writes t as a TensorProto file.
func SaveData(t *tensor.RawTensor, path string) error {
	return internalonnx.SaveData(t, path)
}

// DefaultExecConfig returns dependency-resolved execution with parallel
// kernels.
func DefaultExecConfig() ExecConfig {
	return internalonnx.DefaultExecConfig()
}

// NewExecutor creates an executor.
func NewExecutor(cfg ExecConfig) *Executor {
	return internalonnx.NewExecutor(cfg)
}

// Run executes model on input with the default configuration and returns
// the first output.
func Run(model *Model, input *tensor.RawTensor) (*tensor.RawTensor, error) {
	return internalonnx.NewExecutor(internalonnx.DefaultExecConfig()).Run(model, input)
}

// TopK returns the k highest scoring classes of every batch row of scores,
// in descending order.
func TopK(scores *tensor.RawTensor, k int) ([][]Prediction, error) {
	return classify.TopK(scores, k)
}

// GetModelInfo loads the model at path and summarizes it.
//
// Example:
//
//	info, err := onnx.GetModelInfo("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Opset: %d, nodes: %d\n", info.OpsetVersion, info.NodeCount)
//	fmt.Printf("Unsupported: %v\n", info.UnsupportedOps)
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}

// ListSupportedOps returns all supported ONNX operators, sorted.
func ListSupportedOps() []string {
	return internalonnx.ListSupportedOps()
}
