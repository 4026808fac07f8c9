package onnx

import (
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/born-ml/onnxrun/internal/backend/cpu"
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/onnx/operators"
	"github.com/born-ml/onnxrun/internal/parallel"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// ExecConfig configures graph execution. It is passed by value; the
// executor reads no global state.
type ExecConfig struct {
	// Order selects dependency resolution (default) or recorded order.
	Order Order

	// Verbose logs every node with its output shapes, sizes and timing.
	Verbose bool

	// Parallel configures the goroutine fan-out of the heavy kernels.
	Parallel parallel.Config

	// OnNode, when set, is called after each node completes with the number
	// of nodes done so far and the total.
	OnNode func(done, total int, node *operators.Node)
}

// DefaultExecConfig returns dependency-resolved execution with parallel
// kernels.
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		Order:    OrderResolve,
		Parallel: parallel.DefaultConfig(),
	}
}

// Option customizes an Executor.
type Option func(*Executor)

// WithRegistry replaces the built-in operator registry.
func WithRegistry(r *operators.Registry) Option {
	return func(e *Executor) {
		e.registry = r
	}
}

// Executor runs models. It holds no per-run state, so one Executor can run
// any number of models concurrently.
type Executor struct {
	cfg      ExecConfig
	registry *operators.Registry
	backend  *cpu.CPUBackend
}

// NewExecutor creates an executor for cfg.
func NewExecutor(cfg ExecConfig, opts ...Option) *Executor {
	e := &Executor{
		cfg:     cfg,
		backend: cpu.New(cfg.Parallel),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = operators.NewRegistry()
	}
	return e
}

// Config returns the executor configuration.
func (e *Executor) Config() ExecConfig { return e.cfg }

// Registry returns the operator registry in use.
func (e *Executor) Registry() *operators.Registry { return e.registry }

// UnsupportedOps returns the distinct op types of m the registry cannot
// run, in order of first appearance.
func (e *Executor) UnsupportedOps(m *Model) []string {
	var unsupported []string
	seen := make(map[string]bool)
	for i := range m.nodes {
		node := &m.nodes[i]
		if e.registry.Supports(node) {
			continue
		}
		op := node.OpType
		if node.Domain != "" {
			op = node.Domain + "." + op
		}
		if !seen[op] {
			seen[op] = true
			unsupported = append(unsupported, op)
		}
	}
	return unsupported
}

// Validate fails with UnknownOp naming every unsupported op type of m.
func (e *Executor) Validate(m *Model) error {
	if ops := e.UnsupportedOps(m); len(ops) > 0 {
		return errs.UnknownOpf("unsupported operators: %s", strings.Join(ops, ", "))
	}
	return nil
}

// Plan returns the node positions of m in execution order.
func (e *Executor) Plan(m *Model) ([]int, error) {
	if e.cfg.Order == OrderRecorded {
		return RecordedOrder(len(m.nodes)), nil
	}
	external := slices.Clone(m.initOrder)
	for _, in := range m.inputs {
		external = append(external, in.Name)
	}
	return Schedule(m.nodes, external)
}

// Run binds input to the model's primary input, executes the graph and
// returns the first declared output.
func (e *Executor) Run(m *Model, input *tensor.RawTensor) (*tensor.RawTensor, error) {
	primary, ok := m.PrimaryInput()
	if !ok {
		return nil, errs.MissingInputf("model declares no input to bind")
	}
	if len(m.outputs) == 0 {
		return nil, errs.MissingInputf("model declares no output")
	}
	outputs, err := e.run(m, map[string]*tensor.RawTensor{primary.Name: input}, m.outputs[:1])
	if err != nil {
		return nil, err
	}
	return outputs[m.outputs[0].Name], nil
}

// RunNamed binds every entry of inputs by name and returns all declared
// outputs.
func (e *Executor) RunNamed(m *Model, inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	return e.run(m, inputs, m.outputs)
}

func (e *Executor) run(m *Model, inputs map[string]*tensor.RawTensor, want []ValueInfo) (map[string]*tensor.RawTensor, error) {
	if err := e.Validate(m); err != nil {
		return nil, err
	}
	if err := checkInputs(m, inputs); err != nil {
		return nil, err
	}
	order, err := e.Plan(m)
	if err != nil {
		return nil, err
	}

	env := make(map[string]*tensor.RawTensor, len(m.initializers)+len(inputs)+len(m.nodes))
	for name, t := range m.initializers {
		env[name] = t
	}
	for name, t := range inputs {
		env[name] = t
	}

	var runID string
	if e.cfg.Verbose {
		runID = uuid.NewString()[:8]
		klog.Infof("[%s] running %d nodes (order=%s, opset=%d)", runID, len(order), e.cfg.Order, m.opset)
	}
	ctx := &operators.Context{Backend: e.backend, Opset: m.opset}
	start := time.Now()

	for step, i := range order {
		node := &m.nodes[i]
		nodeErr := func(err error) error {
			return &errs.NodeError{Index: i, Name: node.Name, OpType: node.OpType, Inputs: node.Inputs, Err: err}
		}

		args := make([]*tensor.RawTensor, len(node.Inputs))
		for j, name := range node.Inputs {
			if name == "" {
				continue
			}
			t, ok := env[name]
			if !ok {
				return nil, nodeErr(errs.MissingInputf("input %q is not bound", name))
			}
			args[j] = t
		}

		nodeStart := time.Now()
		outs, err := e.registry.Execute(ctx, node, args)
		if err != nil {
			return nil, nodeErr(err)
		}
		for j, name := range node.Outputs {
			if name != "" && j < len(outs) && outs[j] != nil {
				env[name] = outs[j]
			}
		}

		if e.cfg.Verbose {
			logNode(runID, step, len(order), node, outs, time.Since(nodeStart))
		}
		if e.cfg.OnNode != nil {
			e.cfg.OnNode(step+1, len(order), node)
		}
	}

	shared := sharedBuffers(m, inputs)
	result := make(map[string]*tensor.RawTensor, len(want))
	for _, out := range want {
		t, ok := env[out.Name]
		if !ok {
			return nil, errs.MissingInputf("graph output %q was never produced", out.Name)
		}
		if shared[bufferID(t)] {
			t = t.Clone()
		}
		result[out.Name] = t
	}
	if e.cfg.Verbose {
		klog.Infof("[%s] done in %s", runID, time.Since(start))
	}
	return result, nil
}

// sharedBuffers collects the buffers owned by the Model (initializers and
// Constant values) and by the caller (bound inputs). Identity, Dropout,
// Constant and the reshaping ops pass them through; an output aliasing one
// is copied before it is returned.
func sharedBuffers(m *Model, inputs map[string]*tensor.RawTensor) map[*byte]bool {
	shared := make(map[*byte]bool, len(m.initializers)+len(inputs))
	add := func(t *tensor.RawTensor) {
		if id := bufferID(t); id != nil {
			shared[id] = true
		}
	}
	for _, t := range m.initializers {
		add(t)
	}
	for i := range m.nodes {
		for _, attr := range m.nodes[i].Attributes {
			if attr.Kind() == operators.AttrTensor {
				if t, err := attr.Tensor(); err == nil {
					add(t)
				}
			}
		}
	}
	for _, t := range inputs {
		add(t)
	}
	return shared
}

// bufferID identifies a tensor buffer by its first byte, nil when empty.
func bufferID(t *tensor.RawTensor) *byte {
	if t == nil || len(t.Data()) == 0 {
		return nil
	}
	return &t.Data()[0]
}

// checkInputs rejects bound values whose element type contradicts the
// declared graph input.
func checkInputs(m *Model, inputs map[string]*tensor.RawTensor) error {
	for _, in := range m.inputs {
		t, ok := inputs[in.Name]
		if !ok {
			continue
		}
		if t == nil {
			return errs.MissingInputf("input %q is nil", in.Name)
		}
		if dt, declared := in.DType(); declared && dt != t.DType() {
			return errs.ShapeMismatchf("input %q is declared %s, got %s", in.Name, dt, t.DType())
		}
		if in.Dims != nil && len(in.Dims) != t.Rank() {
			return errs.ShapeMismatchf("input %q is declared with rank %d, got shape %v", in.Name, len(in.Dims), t.Shape())
		}
	}
	return nil
}

func logNode(runID string, step, total int, node *operators.Node, outs []*tensor.RawTensor, elapsed time.Duration) {
	shapes := make([]string, 0, len(outs))
	var size uint64
	for _, t := range outs {
		if t == nil {
			continue
		}
		shapes = append(shapes, t.String())
		size += uint64(t.ByteSize())
	}
	name := node.Name
	if name == "" {
		name = "<unnamed>"
	}
	klog.Infof("[%s] %d/%d %s %s -> %s (%s) in %s", runID, step+1, total, node.OpType, name,
		strings.Join(shapes, ", "), humanize.Bytes(size), elapsed)
}
