package onnx

import (
	"maps"
	"slices"

	"k8s.io/klog/v2"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/onnx/operators"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// Dim is one dimension of a declared value: a static size or a symbolic
// name such as "batch_size". Value is -1 when the size is not static.
type Dim struct {
	Value int64
	Param string
}

// ValueInfo describes a declared graph input or output.
type ValueInfo struct {
	Name     string
	ElemType int32 // ONNX element type, 0 when undeclared
	Dims     []Dim // nil when the shape is undeclared
}

// DType returns the runtime data type of the declared element type.
func (v ValueInfo) DType() (tensor.DataType, bool) {
	if v.ElemType == TensorProtoUndefined {
		return 0, false
	}
	dt, err := DataTypeFromProto(v.ElemType)
	return dt, err == nil
}

// minOpsetIRVersion is the first IR version that requires opset_import.
const minOpsetIRVersion = 3

// Model is a loaded ONNX model: the node list in recorded order, decoded
// initializers and the declared graph interface. A Model is never mutated
// after loading, so it can be shared by concurrent runs.
type Model struct {
	irVersion       int64
	opset           int64
	producerName    string
	producerVersion string
	domain          string
	modelVersion    int64
	docString       string
	graphName       string
	metadata        map[string]string

	nodes        []operators.Node
	initializers map[string]*tensor.RawTensor
	initOrder    []string
	inputs       []ValueInfo
	outputs      []ValueInfo
}

// LoadModel reads and decodes an ONNX model file.
func LoadModel(path string) (*Model, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return NewModel(proto)
}

// LoadModelFromBytes decodes an in-memory ONNX model.
func LoadModelFromBytes(data []byte) (*Model, error) {
	proto, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return NewModel(proto)
}

// NewModel builds a Model from a parsed ModelProto. Every initializer is
// decoded here, once; nodes and their attributes are converted to the
// operators representation.
func NewModel(proto *ModelProto) (*Model, error) {
	graph := proto.Graph
	if graph == nil {
		return nil, errs.Decodef("model has no graph")
	}
	m := &Model{
		irVersion:       proto.IRVersion,
		producerName:    proto.ProducerName,
		producerVersion: proto.ProducerVersion,
		domain:          proto.Domain,
		modelVersion:    proto.ModelVersion,
		docString:       proto.DocString,
		graphName:       graph.Name,
		metadata:        make(map[string]string, len(proto.MetadataProps)),
		initializers:    make(map[string]*tensor.RawTensor, len(graph.Initializers)),
	}
	for _, prop := range proto.MetadataProps {
		m.metadata[prop.Key] = prop.Value
	}
	if len(proto.OpsetImport) == 0 && proto.IRVersion >= minOpsetIRVersion {
		return nil, errs.Decodef("model with IR version %d has no opset_import", proto.IRVersion)
	}
	for _, opset := range proto.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			m.opset = opset.Version
			break
		}
	}

	for i := range graph.Initializers {
		init := &graph.Initializers[i]
		if _, dup := m.initializers[init.Name]; dup {
			return nil, errs.Decodef("duplicate initializer %q", init.Name)
		}
		t, err := DecodeTensor(init)
		if err != nil {
			return nil, err
		}
		m.initializers[init.Name] = t
		m.initOrder = append(m.initOrder, init.Name)
	}

	m.nodes = make([]operators.Node, len(graph.Nodes))
	for i := range graph.Nodes {
		node, err := convertNode(&graph.Nodes[i])
		if err != nil {
			return nil, errs.Decode(err, "node #%d %q", i, graph.Nodes[i].Name)
		}
		m.nodes[i] = node
	}

	m.inputs = convertValueInfos(graph.Inputs)
	m.outputs = convertValueInfos(graph.Outputs)
	return m, nil
}

func convertNode(proto *NodeProto) (operators.Node, error) {
	node := operators.Node{
		Name:       proto.Name,
		OpType:     proto.OpType,
		Inputs:     slices.Clone(proto.Inputs),
		Outputs:    slices.Clone(proto.Outputs),
		Domain:     proto.Domain,
		Attributes: make(map[string]operators.Attribute, len(proto.Attributes)),
	}
	if node.OpType == "" {
		return node, errs.Decodef("node has no op_type")
	}
	for i := range proto.Attributes {
		ap := &proto.Attributes[i]
		if _, dup := node.Attributes[ap.Name]; dup {
			return node, errs.Decodef("duplicate attribute %q", ap.Name)
		}
		attr, err := convertAttribute(ap)
		if err != nil {
			return node, err
		}
		node.Attributes[ap.Name] = attr
	}
	return node, nil
}

// convertAttribute builds the tagged union from an AttributeProto. Files
// written before the type field was mandatory carry no type; the kind is
// then inferred from the populated field.
func convertAttribute(ap *AttributeProto) (operators.Attribute, error) {
	if ap.RefAttrName != "" {
		return operators.Attribute{}, errs.Decodef("attribute %q references %q outside a function", ap.Name, ap.RefAttrName)
	}
	typ := ap.Type
	if typ == AttributeProtoUndefined {
		typ = inferAttributeType(ap)
	}
	switch typ {
	case AttributeProtoFloat:
		return operators.FloatAttr(ap.F), nil
	case AttributeProtoInt:
		return operators.IntAttr(ap.I), nil
	case AttributeProtoString:
		return operators.StringAttr(string(ap.S)), nil
	case AttributeProtoTensor:
		if ap.T == nil {
			return operators.Attribute{}, errs.Decodef("attribute %q: TENSOR without a value", ap.Name)
		}
		t, err := DecodeTensor(ap.T)
		if err != nil {
			return operators.Attribute{}, errs.Decode(err, "attribute %q", ap.Name)
		}
		return operators.TensorAttr(t), nil
	case AttributeProtoFloats:
		return operators.FloatsAttr(slices.Clone(ap.Floats)...), nil
	case AttributeProtoInts:
		return operators.IntsAttr(slices.Clone(ap.Ints)...), nil
	case AttributeProtoStrings:
		ss := make([]string, len(ap.Strings))
		for i, s := range ap.Strings {
			ss[i] = string(s)
		}
		return operators.StringsAttr(ss...), nil
	case AttributeProtoTensors:
		ts := make([]*tensor.RawTensor, len(ap.Tensors))
		for i := range ap.Tensors {
			t, err := DecodeTensor(&ap.Tensors[i])
			if err != nil {
				return operators.Attribute{}, errs.Decode(err, "attribute %q[%d]", ap.Name, i)
			}
			ts[i] = t
		}
		return operators.TensorsAttr(ts...), nil
	case AttributeProtoGraph:
		return operators.GraphAttr(false), nil
	case AttributeProtoGraphs:
		return operators.GraphAttr(true), nil
	}
	return operators.Attribute{}, errs.Decodef("attribute %q has unsupported type %d", ap.Name, ap.Type)
}

func inferAttributeType(ap *AttributeProto) int32 {
	switch {
	case len(ap.Floats) > 0:
		return AttributeProtoFloats
	case len(ap.Ints) > 0:
		return AttributeProtoInts
	case len(ap.Strings) > 0:
		return AttributeProtoStrings
	case len(ap.Tensors) > 0:
		return AttributeProtoTensors
	case len(ap.Graphs) > 0:
		return AttributeProtoGraphs
	case ap.T != nil:
		return AttributeProtoTensor
	case ap.G != nil:
		return AttributeProtoGraph
	case len(ap.S) > 0:
		return AttributeProtoString
	case ap.F != 0:
		return AttributeProtoFloat
	}
	// A zero scalar cannot be told apart from an empty one; INT is the
	// common case (axis=0, transA=0 and friends).
	klog.V(1).Infof("attribute %q has no type, assuming INT", ap.Name)
	return AttributeProtoInt
}

func convertValueInfos(protos []ValueInfoProto) []ValueInfo {
	infos := make([]ValueInfo, len(protos))
	for i := range protos {
		vi := ValueInfo{Name: protos[i].Name}
		if tp := protos[i].Type; tp != nil && tp.TensorType != nil {
			vi.ElemType = tp.TensorType.ElemType
			if shape := tp.TensorType.Shape; shape != nil {
				vi.Dims = make([]Dim, len(shape.Dims))
				for j, d := range shape.Dims {
					if d.DimParam != "" {
						vi.Dims[j] = Dim{Value: -1, Param: d.DimParam}
					} else {
						vi.Dims[j] = Dim{Value: d.DimValue}
					}
				}
			}
		}
		infos[i] = vi
	}
	return infos
}

// IRVersion returns the ONNX IR version the file declares.
func (m *Model) IRVersion() int64 { return m.irVersion }

// Opset returns the default-domain operator set version, 0 when undeclared.
func (m *Model) Opset() int64 { return m.opset }

// Producer returns the producer name and version.
func (m *Model) Producer() (name, version string) { return m.producerName, m.producerVersion }

// GraphName returns the name of the main graph.
func (m *Model) GraphName() string { return m.graphName }

// DocString returns the model description.
func (m *Model) DocString() string { return m.docString }

// Metadata returns a copy of the model's key/value metadata together with
// the producer and domain fields.
func (m *Model) Metadata() map[string]string {
	meta := maps.Clone(m.metadata)
	meta["producer_name"] = m.producerName
	meta["producer_version"] = m.producerVersion
	meta["domain"] = m.domain
	return meta
}

// NumNodes returns the number of graph nodes.
func (m *Model) NumNodes() int { return len(m.nodes) }

// Node returns the node at recorded position i. The node must be treated as
// read-only.
func (m *Model) Node(i int) *operators.Node { return &m.nodes[i] }

// Initializer returns the decoded initializer with the given name.
func (m *Model) Initializer(name string) (*tensor.RawTensor, bool) {
	t, ok := m.initializers[name]
	return t, ok
}

// InitializerNames returns initializer names in file order.
func (m *Model) InitializerNames() []string { return slices.Clone(m.initOrder) }

// Inputs returns the declared graph inputs, initializers included.
func (m *Model) Inputs() []ValueInfo { return slices.Clone(m.inputs) }

// Outputs returns the declared graph outputs.
func (m *Model) Outputs() []ValueInfo { return slices.Clone(m.outputs) }

// InputNames returns the declared inputs that are not initializers, the
// values a caller has to bind.
func (m *Model) InputNames() []string {
	var names []string
	for _, in := range m.inputs {
		if _, ok := m.initializers[in.Name]; !ok {
			names = append(names, in.Name)
		}
	}
	return names
}

// OutputNames returns the declared output names.
func (m *Model) OutputNames() []string {
	names := make([]string, len(m.outputs))
	for i, out := range m.outputs {
		names[i] = out.Name
	}
	return names
}

// PrimaryInput returns the first declared input that is not an initializer.
func (m *Model) PrimaryInput() (ValueInfo, bool) {
	for _, in := range m.inputs {
		if _, ok := m.initializers[in.Name]; !ok {
			return in, true
		}
	}
	return ValueInfo{}, false
}

// OpCounts returns the number of nodes per op type.
func (m *Model) OpCounts() map[string]int {
	counts := make(map[string]int)
	for i := range m.nodes {
		counts[m.nodes[i].OpType]++
	}
	return counts
}

// InitializerBytes returns the total size of all initializer buffers.
func (m *Model) InitializerBytes() int64 {
	var total int64
	for _, t := range m.initializers {
		total += int64(t.ByteSize())
	}
	return total
}
