package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/born-ml/onnxrun/internal/onnx"
	"github.com/born-ml/onnxrun/internal/onnx/operators"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <model.onnx>",
		Short: "Describe a model without running it",
		Long: `Print the header fields, declared inputs and outputs, operator histogram
and weight size of an ONNX model, and list operators this runtime cannot
execute.`,
		Example: `  onnxrun inspect models/squeezenet1.1.onnx`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := onnx.LoadModel(args[0])
			if err != nil {
				return err
			}
			renderModelInfo(cmd.OutOrStdout(), args[0], onnx.Describe(m, operators.NewRegistry()))
			return nil
		},
	}
	return cmd
}

func renderModelInfo(w io.Writer, path string, info *onnx.ModelInfo) {
	producer := info.ProducerName
	if info.ProducerVersion != "" {
		producer += " " + info.ProducerVersion
	}
	_, _ = fmt.Fprintf(w, "Model:    %s\n", path)
	_, _ = fmt.Fprintf(w, "Graph:    %s\n", info.GraphName)
	_, _ = fmt.Fprintf(w, "IR:       %d, opset %d\n", info.IRVersion, info.OpsetVersion)
	_, _ = fmt.Fprintf(w, "Producer: %s\n", producer)
	_, _ = fmt.Fprintf(w, "Nodes:    %d\n", info.NodeCount)
	_, _ = fmt.Fprintf(w, "Weights:  %d tensors, %s\n\n", info.WeightCount, humanize.IBytes(uint64(max(info.WeightBytes, 0))))

	values := table.NewWriter()
	values.SetOutputMirror(w)
	values.SetStyle(table.StyleLight)
	values.AppendHeader(table.Row{"Kind", "Name", "Type", "Shape"})
	for _, in := range info.Inputs {
		values.AppendRow(table.Row{"input", in.Name, elemTypeName(in), formatDims(in.Dims)})
	}
	for _, out := range info.Outputs {
		values.AppendRow(table.Row{"output", out.Name, elemTypeName(out), formatDims(out.Dims)})
	}
	values.Render()

	ops := table.NewWriter()
	ops.SetOutputMirror(w)
	ops.SetStyle(table.StyleLight)
	ops.AppendHeader(table.Row{"Operator", "Count"})
	for _, op := range sortedOps(info.OpCounts) {
		ops.AppendRow(table.Row{op, info.OpCounts[op]})
	}
	ops.Render()

	if len(info.UnsupportedOps) > 0 {
		_, _ = fmt.Fprintf(w, "Unsupported operators: %s\n", strings.Join(info.UnsupportedOps, ", "))
	} else {
		_, _ = fmt.Fprintln(w, "All operators are supported.")
	}
}

// sortedOps orders op types by descending count, then name.
func sortedOps(counts map[string]int) []string {
	ops := slices.Collect(maps.Keys(counts))
	slices.SortFunc(ops, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})
	return ops
}

func elemTypeName(v onnx.ValueInfo) string {
	if dt, ok := v.DType(); ok {
		return dt.String()
	}
	if v.ElemType != 0 {
		return fmt.Sprintf("type %d", v.ElemType)
	}
	return "?"
}

func formatDims(dims []onnx.Dim) string {
	if dims == nil {
		return "?"
	}
	parts := make([]string, len(dims))
	for i, d := range dims {
		if d.Param != "" {
			parts[i] = d.Param
		} else if d.Value < 0 {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprint(d.Value)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
