// Package operators maps ONNX nodes onto the CPU kernels.
//
// The registry holds one handler per supported op type. The set of op
// types is closed: registering an unknown tag fails, and executing a node
// with an unregistered tag fails with an UnknownOp error. Handlers read
// their attributes through the typed Attribute accessors, validate input
// arity and delegate the arithmetic to internal/backend/cpu.
package operators
