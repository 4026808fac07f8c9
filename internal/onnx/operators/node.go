package operators

import (
	"github.com/pkg/errors"
)

// Node represents an ONNX operation node with decoded attributes.
// It mirrors onnx.NodeProto without importing it, which would create an
// import cycle between onnx and operators.
type Node struct {
	Name       string               // Node name (optional)
	OpType     string               // Operation type (e.g., "Conv", "MatMul", "Relu")
	Inputs     []string             // Input tensor names; "" marks an omitted optional input
	Outputs    []string             // Output tensor names
	Attributes map[string]Attribute // Operation attributes by name
	Domain     string               // Custom domain (empty for default)
}

// Has reports whether the attribute is present.
func (n *Node) Has(name string) bool {
	_, ok := n.Attributes[name]
	return ok
}

func (n *Node) wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%s attribute %q", n.OpType, name)
}

// Int returns an INT attribute, or def when absent. A present attribute of
// another kind is a Decode error.
func (n *Node) Int(name string, def int64) (int64, error) {
	a, ok := n.Attributes[name]
	if !ok {
		return def, nil
	}
	v, err := a.Int()
	return v, n.wrap(name, err)
}

// Ints returns an INTS attribute, or def when absent.
func (n *Node) Ints(name string, def []int64) ([]int64, error) {
	a, ok := n.Attributes[name]
	if !ok {
		return def, nil
	}
	v, err := a.Ints()
	return v, n.wrap(name, err)
}

// Float returns a FLOAT attribute, or def when absent.
func (n *Node) Float(name string, def float32) (float32, error) {
	a, ok := n.Attributes[name]
	if !ok {
		return def, nil
	}
	v, err := a.Float()
	return v, n.wrap(name, err)
}

// Floats returns a FLOATS attribute, or def when absent.
func (n *Node) Floats(name string, def []float32) ([]float32, error) {
	a, ok := n.Attributes[name]
	if !ok {
		return def, nil
	}
	v, err := a.Floats()
	return v, n.wrap(name, err)
}

// String returns a STRING attribute, or def when absent.
func (n *Node) String(name, def string) (string, error) {
	a, ok := n.Attributes[name]
	if !ok {
		return def, nil
	}
	v, err := a.String()
	return v, n.wrap(name, err)
}

// IntsAsInts is Ints converted to []int, the form kernels take.
func (n *Node) IntsAsInts(name string) ([]int, error) {
	v, err := n.Ints(name, nil)
	if err != nil || v == nil {
		return nil, err
	}
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out, nil
}
