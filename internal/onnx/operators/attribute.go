package operators

import (
	"fmt"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// AttrKind tags the value held by an Attribute.
type AttrKind int

// Attribute kinds, numbered as in AttributeProto.AttributeType.
const (
	AttrUndefined AttrKind = iota
	AttrFloat
	AttrInt
	AttrString
	AttrTensor
	AttrGraph
	AttrFloats
	AttrInts
	AttrStrings
	AttrTensors
	AttrGraphs
)

var attrKindNames = [...]string{"UNDEFINED", "FLOAT", "INT", "STRING", "TENSOR", "GRAPH",
	"FLOATS", "INTS", "STRINGS", "TENSORS", "GRAPHS"}

// String returns the ONNX name of the kind.
func (k AttrKind) String() string {
	if k >= 0 && int(k) < len(attrKindNames) {
		return attrKindNames[k]
	}
	return fmt.Sprintf("AttrKind(%d)", int(k))
}

// Attribute is a tagged union of the values a node attribute can hold.
// Accessors fail with a Decode error when the kind does not match; there is
// no implicit conversion between kinds.
//
// Graph attributes record only their kind: subgraphs are never executed.
type Attribute struct {
	kind    AttrKind
	f       float32
	i       int64
	s       string
	t       *tensor.RawTensor
	floats  []float32
	ints    []int64
	strings []string
	tensors []*tensor.RawTensor
}

// FloatAttr returns a FLOAT attribute.
func FloatAttr(v float32) Attribute { return Attribute{kind: AttrFloat, f: v} }

// IntAttr returns an INT attribute.
func IntAttr(v int64) Attribute { return Attribute{kind: AttrInt, i: v} }

// StringAttr returns a STRING attribute.
func StringAttr(v string) Attribute { return Attribute{kind: AttrString, s: v} }

// TensorAttr returns a TENSOR attribute.
func TensorAttr(v *tensor.RawTensor) Attribute { return Attribute{kind: AttrTensor, t: v} }

// FloatsAttr returns a FLOATS attribute.
func FloatsAttr(v ...float32) Attribute { return Attribute{kind: AttrFloats, floats: v} }

// IntsAttr returns an INTS attribute.
func IntsAttr(v ...int64) Attribute { return Attribute{kind: AttrInts, ints: v} }

// StringsAttr returns a STRINGS attribute.
func StringsAttr(v ...string) Attribute { return Attribute{kind: AttrStrings, strings: v} }

// TensorsAttr returns a TENSORS attribute.
func TensorsAttr(v ...*tensor.RawTensor) Attribute { return Attribute{kind: AttrTensors, tensors: v} }

// GraphAttr returns a GRAPH (or GRAPHS, when many) attribute placeholder.
func GraphAttr(many bool) Attribute {
	if many {
		return Attribute{kind: AttrGraphs}
	}
	return Attribute{kind: AttrGraph}
}

// Kind returns the attribute's tag.
func (a Attribute) Kind() AttrKind { return a.kind }

func (a Attribute) expect(k AttrKind) error {
	if a.kind != k {
		return errs.Decodef("attribute holds %s, not %s", a.kind, k)
	}
	return nil
}

// Float returns the FLOAT value.
func (a Attribute) Float() (float32, error) {
	return a.f, a.expect(AttrFloat)
}

// Int returns the INT value.
func (a Attribute) Int() (int64, error) {
	return a.i, a.expect(AttrInt)
}

// String returns the STRING value.
func (a Attribute) String() (string, error) {
	return a.s, a.expect(AttrString)
}

// Tensor returns the TENSOR value.
func (a Attribute) Tensor() (*tensor.RawTensor, error) {
	return a.t, a.expect(AttrTensor)
}

// Floats returns the FLOATS value.
func (a Attribute) Floats() ([]float32, error) {
	return a.floats, a.expect(AttrFloats)
}

// Ints returns the INTS value.
func (a Attribute) Ints() ([]int64, error) {
	return a.ints, a.expect(AttrInts)
}

// Strings returns the STRINGS value.
func (a Attribute) Strings() ([]string, error) {
	return a.strings, a.expect(AttrStrings)
}

// Tensors returns the TENSORS value.
func (a Attribute) Tensors() ([]*tensor.RawTensor, error) {
	return a.tensors, a.expect(AttrTensors)
}

// Display renders the value for humans, e.g. "[2 2]" or "0.0001".
func (a Attribute) Display() string {
	switch a.kind {
	case AttrFloat:
		return fmt.Sprint(a.f)
	case AttrInt:
		return fmt.Sprint(a.i)
	case AttrString:
		return fmt.Sprintf("%q", a.s)
	case AttrTensor:
		return "tensor " + a.t.String()
	case AttrFloats:
		return fmt.Sprint(a.floats)
	case AttrInts:
		return fmt.Sprint(a.ints)
	case AttrStrings:
		return fmt.Sprintf("%q", a.strings)
	case AttrTensors:
		return fmt.Sprintf("%d tensors", len(a.tensors))
	default:
		return a.kind.String()
	}
}
