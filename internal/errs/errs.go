// Package errs defines the failure taxonomy shared by the parser, the
// tensor codec, the kernels and the graph executor.
//
// Every error produced by the runtime carries exactly one Kind. Callers test
// for a kind with errors.Is against the sentinel values:
//
//	if errors.Is(err, errs.ErrMissingInput) {
//	    ...
//	}
//
// or extract it with KindOf.
package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a runtime failure.
type Kind int

// Failure kinds.
const (
	KindUnknown       Kind = iota
	KindIO                 // file open/read/write failure
	KindDecode             // malformed wire bytes, field/type mismatch
	KindUnknownOp          // operator tag with no registered kernel
	KindMissingInput       // referenced tensor name absent from the environment
	KindShapeMismatch      // rank/dimension/dtype incompatibility in a kernel
	KindCycleDetected      // graph nodes depend on each other circularly
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindUnknownOp:
		return "unknown op"
	case KindMissingInput:
		return "missing input"
	case KindShapeMismatch:
		return "shape mismatch"
	case KindCycleDetected:
		return "cycle detected"
	default:
		return "unknown"
	}
}

// kindError is the sentinel type behind the Err* values.
type kindError struct {
	kind Kind
}

func (e *kindError) Error() string { return e.kind.String() }

// Sentinel errors, one per Kind.
var (
	ErrIO            error = &kindError{KindIO}
	ErrDecode        error = &kindError{KindDecode}
	ErrUnknownOp     error = &kindError{KindUnknownOp}
	ErrMissingInput  error = &kindError{KindMissingInput}
	ErrShapeMismatch error = &kindError{KindShapeMismatch}
	ErrCycleDetected error = &kindError{KindCycleDetected}
)

// Sentinel returns the sentinel error for k.
func (k Kind) Sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindDecode:
		return ErrDecode
	case KindUnknownOp:
		return ErrUnknownOp
	case KindMissingInput:
		return ErrMissingInput
	case KindShapeMismatch:
		return ErrShapeMismatch
	case KindCycleDetected:
		return ErrCycleDetected
	default:
		return nil
	}
}

// Error is a classified failure with a message and an optional cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the cause, so errors.Is/As see through to it.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*kindError)
	return ok && t.kind == e.Kind
}

func newf(kind Kind, cause error, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause})
}

// IO wraps an I/O failure.
func IO(cause error, format string, args ...any) error {
	return newf(KindIO, cause, format, args...)
}

// Decodef reports malformed or type-inconsistent wire data.
func Decodef(format string, args ...any) error {
	return newf(KindDecode, nil, format, args...)
}

// Decode wraps a lower level decoding failure.
func Decode(cause error, format string, args ...any) error {
	return newf(KindDecode, cause, format, args...)
}

// UnknownOpf reports an operator without a registered kernel.
func UnknownOpf(format string, args ...any) error {
	return newf(KindUnknownOp, nil, format, args...)
}

// MissingInputf reports a tensor name absent from the environment.
func MissingInputf(format string, args ...any) error {
	return newf(KindMissingInput, nil, format, args...)
}

// ShapeMismatchf reports a kernel level shape or dtype incompatibility.
func ShapeMismatchf(format string, args ...any) error {
	return newf(KindShapeMismatch, nil, format, args...)
}

// Cyclef reports a dependency cycle between graph nodes.
func Cyclef(format string, args ...any) error {
	return newf(KindCycleDetected, nil, format, args...)
}

// KindOf returns the Kind of the first classified error in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k *kindError
	if errors.As(err, &k) {
		return k.kind
	}
	return KindUnknown
}

// NodeError attaches the failing node's position and identity to an
// executor error.
type NodeError struct {
	Index  int      // recorded position of the node in the model
	Name   string   // node name, may be empty
	OpType string   // operator tag
	Inputs []string // input tensor names
	Err    error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	name := e.Name
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("node #%d %s (%s) inputs=[%s]: %v",
		e.Index, name, e.OpType, strings.Join(e.Inputs, ", "), e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error { return e.Err }
