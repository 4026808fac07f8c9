package onnx

import (
	"github.com/born-ml/onnxrun/internal/onnx/operators"
)

// ModelInfo summarizes a model for display.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	GraphName       string
	Inputs          []ValueInfo // declared inputs that are not initializers
	Outputs         []ValueInfo
	NodeCount       int
	OpCounts        map[string]int
	WeightCount     int
	WeightBytes     int64
	UnsupportedOps  []string
}

// GetModelInfo loads the model at path and summarizes it.
func GetModelInfo(path string) (*ModelInfo, error) {
	m, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	return Describe(m, operators.NewRegistry()), nil
}

// Describe summarizes m, checking its op types against registry.
func Describe(m *Model, registry *operators.Registry) *ModelInfo {
	info := &ModelInfo{
		IRVersion:    m.IRVersion(),
		OpsetVersion: m.Opset(),
		GraphName:    m.GraphName(),
		Outputs:      m.Outputs(),
		NodeCount:    m.NumNodes(),
		OpCounts:     m.OpCounts(),
		WeightCount:  len(m.initOrder),
		WeightBytes:  m.InitializerBytes(),
	}
	info.ProducerName, info.ProducerVersion = m.Producer()
	for _, in := range m.inputs {
		if _, ok := m.initializers[in.Name]; !ok {
			info.Inputs = append(info.Inputs, in)
		}
	}
	info.UnsupportedOps = NewExecutor(ExecConfig{}, WithRegistry(registry)).UnsupportedOps(m)
	return info
}

// ListSupportedOps returns all supported ONNX operators, sorted.
func ListSupportedOps() []string {
	return operators.NewRegistry().SupportedOps()
}
