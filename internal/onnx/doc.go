// Package onnx loads ONNX models and runs them on the CPU.
//
// Model files are decoded by a hand-written protobuf reader into the wire
// structs of proto.go (ModelProto, GraphProto, NodeProto, TensorProto, ...)
// and converted into an immutable Model: nodes with typed attributes,
// initializers decoded once, and the declared graph interface.
//
// An Executor runs a Model against bound inputs. By default it first orders
// the nodes by their data dependencies and fails with CycleDetected when no
// order exists; ExecConfig.Order = OrderRecorded trusts the file order
// instead.
//
// Example usage:
//
//	model, err := onnx.LoadModel("mnist/model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	input, err := onnx.LoadData("mnist/test_data_set_0/input_0.pb")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	output, err := onnx.NewExecutor(onnx.DefaultExecConfig()).Run(model, input)
//
// Every error carries one of the kinds of internal/errs: Io, Decode,
// UnknownOp, MissingInput, ShapeMismatch or CycleDetected.
package onnx
