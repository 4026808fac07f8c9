package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/born-ml/onnxrun/internal/classify"
	"github.com/born-ml/onnxrun/internal/config"
	"github.com/born-ml/onnxrun/internal/onnx"
	"github.com/born-ml/onnxrun/internal/onnx/operators"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Model    string
	Input    string
	Expected string
	Save     string
	Show     int
	Progress bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a model on one input tensor",
		Long: `Load an ONNX model and a TensorProto input file, execute the graph and
print the first output together with its top-k classes.

With --expected the output is compared element by element against a
reference tensor; the command fails when any element differs by more than
the configured tolerance.`,
		Example: `  # Classify an MNIST digit
  onnxrun run --model mnist/model.onnx --input mnist/test_data_set_0/input_0.pb --labels mnist

  # Check against the reference output
  onnxrun run -m model.onnx -i input_0.pb -e output_0.pb --tolerance 1e-3

  # Keep the output for later comparison
  onnxrun run -m model.onnx -i input_0.pb --save out.pb`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "ONNX model file")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "input TensorProto file")
	cmd.Flags().StringVarP(&opts.Expected, "expected", "e", "", "reference output TensorProto file")
	cmd.Flags().StringVar(&opts.Save, "save", "", "write the output tensor to this file")
	cmd.Flags().IntVar(&opts.Show, "show", 10, "number of output values to print")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "show a per-node progress bar")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cfg := ConfigFrom(cmd.Context())
	out := cmd.OutOrStdout()

	labels, err := classify.Labels(cfg.LabelSet, cfg.LabelsFile)
	if err != nil {
		return err
	}
	model, err := onnx.LoadModel(opts.Model)
	if err != nil {
		return err
	}
	input, err := onnx.LoadData(opts.Input)
	if err != nil {
		return err
	}
	var expected *tensor.RawTensor
	if opts.Expected != "" {
		if expected, err = onnx.LoadData(opts.Expected); err != nil {
			return err
		}
	}

	execCfg, err := cfg.Exec()
	if err != nil {
		return err
	}
	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = newNodeBar(cmd.ErrOrStderr(), model.NumNodes())
		execCfg.OnNode = func(done, _ int, _ *operators.Node) {
			_ = bar.Set(done)
		}
	}

	start := time.Now()
	result, err := onnx.NewExecutor(execCfg).Run(model, input)
	if bar != nil {
		_ = bar.Finish()
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	_, _ = fmt.Fprintf(out, "Model:   %s (opset %d, %d nodes)\n", opts.Model, model.Opset(), model.NumNodes())
	_, _ = fmt.Fprintf(out, "Input:   %s\n", input)
	_, _ = fmt.Fprintf(out, "Output:  %s in %s\n", result, elapsed.Round(time.Microsecond))
	if opts.Show > 0 {
		_, _ = fmt.Fprintf(out, "Values:  %s\n", formatValues(result, opts.Show))
	}

	if result.Rank() > 0 && result.NumElements() > 1 {
		if err := renderTopK(out, result, cfg, labels); err != nil {
			return err
		}
		if err := renderPredictions(out, result, labels); err != nil {
			return err
		}
	}

	if opts.Save != "" {
		if err := onnx.SaveData(result, opts.Save); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Saved output to %s\n", opts.Save)
	}

	if expected != nil {
		c, err := compareTensors(result, expected, cfg.Tolerance)
		if err != nil {
			return err
		}
		status := "PASS"
		if !c.Pass() {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(out, "Max abs diff: %.3g (tolerance %g): %s\n", c.MaxAbsDiff, cfg.Tolerance, status)
		if !c.Pass() {
			return errors.Errorf("output differs from %s: %d of %d elements beyond tolerance %g",
				opts.Expected, c.Mismatched, c.Total, cfg.Tolerance)
		}
	}
	return nil
}

func newNodeBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("inference"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("nodes"),
	)
}

// renderTopK prints the ranked classes of every batch row.
func renderTopK(w io.Writer, result *tensor.RawTensor, cfg *config.Config, labels *classify.LabelSet) error {
	rows, err := classify.TopK(result, cfg.TopK)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Batch", "Rank", "Class", "Label", "Score"})
	for b, row := range rows {
		for r, p := range row {
			t.AppendRow(table.Row{b, r + 1, p.Index, labels.Label(p.Index), fmt.Sprintf("%.6g", p.Value)})
		}
		if b < len(rows)-1 {
			t.AppendSeparator()
		}
	}
	t.Render()
	return nil
}

// renderPredictions prints the winning class of every batch row.
func renderPredictions(w io.Writer, result *tensor.RawTensor, labels *classify.LabelSet) error {
	best, err := classify.Argmax(result)
	if err != nil {
		return err
	}
	parts := make([]string, len(best))
	for b, idx := range best {
		parts[b] = fmt.Sprintf("%d (%s)", idx, labels.Label(idx))
	}
	_, _ = fmt.Fprintf(w, "Predicted: %s\n", strings.Join(parts, ", "))
	return nil
}

// formatValues renders the first n elements of t.
func formatValues(t *tensor.RawTensor, n int) string {
	values := tensor.Float64s(t)
	parts := make([]string, 0, min(n, len(values))+1)
	for i, v := range values {
		if i == n {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(values)-n))
			break
		}
		parts = append(parts, strconv.FormatFloat(v, 'g', 6, 64))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
