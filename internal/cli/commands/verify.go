package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/onnx"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// VerifyOptions holds options for the verify command.
type VerifyOptions struct {
	Jobs     int
	FailFast bool
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand() *cobra.Command {
	opts := &VerifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify <model-dir>...",
		Short: "Run a model against its bundled test data sets",
		Long: `Verify runs every test_data_set_* directory of a model directory laid out
like the ONNX model zoo:

  model-dir/
    model.onnx
    test_data_set_0/
      input_0.pb
      output_0.pb

Inputs are bound to the model's declared inputs in order, every output is
compared with its reference within the configured tolerance. Data sets run
concurrently; the command fails if any of them does.`,
		Example: `  # Verify one model
  onnxrun verify models/mnist-8

  # Verify several models with a looser tolerance
  onnxrun verify models/* --tolerance 1e-3 --jobs 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", runtime.NumCPU(), "data sets run concurrently")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first failing data set")

	return cmd
}

// testCase is one test_data_set directory of a model.
type testCase struct {
	ModelPath string
	Dir       string
}

// caseResult is the outcome of one test case.
type caseResult struct {
	Case       testCase
	MaxAbsDiff float64
	Elapsed    time.Duration
	Err        error
}

func (r caseResult) Pass() bool { return r.Err == nil }

func runVerify(cmd *cobra.Command, dirs []string, opts *VerifyOptions) error {
	cfg := ConfigFrom(cmd.Context())
	execCfg, err := cfg.Exec()
	if err != nil {
		return err
	}
	exec := onnx.NewExecutor(execCfg)

	var cases []testCase
	models := make(map[string]*onnx.Model)
	for _, dir := range dirs {
		modelPath, sets, err := discoverTestSets(dir)
		if err != nil {
			return err
		}
		m, err := onnx.LoadModel(modelPath)
		if err != nil {
			return err
		}
		if err := exec.Validate(m); err != nil {
			return errors.WithMessage(err, modelPath)
		}
		models[modelPath] = m
		for _, set := range sets {
			cases = append(cases, testCase{ModelPath: modelPath, Dir: set})
		}
	}

	results := make([]caseResult, len(cases))
	eg, egctx := errgroup.WithContext(cmd.Context())
	eg.SetLimit(max(opts.Jobs, 1))
	for i, tc := range cases {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				results[i] = caseResult{Case: tc, Err: err}
				return nil
			}
			results[i] = runTestCase(exec, models[tc.ModelPath], tc, cfg.Tolerance)
			if cfg.Verbose {
				klog.Infof("%s: pass=%t in %s", tc.Dir, results[i].Pass(), results[i].Elapsed)
			}
			if opts.FailFast && results[i].Err != nil {
				return results[i].Err
			}
			return nil
		})
	}
	_ = eg.Wait()

	failed := renderResults(cmd, results)
	if failed > 0 {
		return errors.Errorf("%d of %d test data sets failed", failed, len(results))
	}
	return nil
}

// discoverTestSets finds the model file and the sorted test_data_set_*
// directories of dir.
func discoverTestSets(dir string) (string, []string, error) {
	models, err := filepath.Glob(filepath.Join(dir, "*.onnx"))
	if err != nil {
		return "", nil, errors.Wrapf(err, "scan %s", dir)
	}
	switch len(models) {
	case 0:
		if _, statErr := os.Stat(dir); statErr != nil {
			return "", nil, errs.IO(statErr, "model directory %q", dir)
		}
		return "", nil, errors.Errorf("no .onnx model in %s", dir)
	case 1:
	default:
		return "", nil, errors.Errorf("%s holds %d .onnx files, expected one", dir, len(models))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, errs.IO(err, "read %q", dir)
	}
	var sets []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "test_data_set_") {
			sets = append(sets, filepath.Join(dir, e.Name()))
		}
	}
	if len(sets) == 0 {
		return "", nil, errors.Errorf("no test_data_set_* directories in %s", dir)
	}
	slices.SortFunc(sets, compareSetNames)
	return models[0], sets, nil
}

// compareSetNames orders test_data_set_2 before test_data_set_10.
func compareSetNames(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func runTestCase(exec *onnx.Executor, m *onnx.Model, tc testCase, tolerance float64) (res caseResult) {
	res.Case = tc
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	inputs := make(map[string]*tensor.RawTensor)
	for i, name := range m.InputNames() {
		path := filepath.Join(tc.Dir, fmt.Sprintf("input_%d.pb", i))
		if _, err := os.Stat(path); err != nil && i > 0 {
			break // optional trailing inputs
		}
		t, err := onnx.LoadData(path)
		if err != nil {
			res.Err = err
			return res
		}
		inputs[name] = t
	}

	outputs, err := exec.RunNamed(m, inputs)
	if err != nil {
		res.Err = err
		return res
	}

	for i, name := range m.OutputNames() {
		path := filepath.Join(tc.Dir, fmt.Sprintf("output_%d.pb", i))
		want, err := onnx.LoadData(path)
		if err != nil {
			if i > 0 && errs.KindOf(err) == errs.KindIO {
				break
			}
			res.Err = err
			return res
		}
		c, err := compareTensors(outputs[name], want, tolerance)
		if err != nil {
			res.Err = errors.WithMessagef(err, "output %q", name)
			return res
		}
		res.MaxAbsDiff = max(res.MaxAbsDiff, c.MaxAbsDiff)
		if !c.Pass() {
			res.Err = errors.Errorf("output %q: %d of %d elements beyond tolerance %g (max abs diff %.3g)",
				name, c.Mismatched, c.Total, tolerance, c.MaxAbsDiff)
			return res
		}
	}
	return res
}

// renderResults prints one row per test case and returns the number of
// failures.
func renderResults(cmd *cobra.Command, results []caseResult) int {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Model", "Data set", "Max abs diff", "Time", "Result"})
	failed := 0
	for _, r := range results {
		status := "PASS"
		if !r.Pass() {
			failed++
			status = "FAIL: " + r.Err.Error()
		}
		t.AppendRow(table.Row{
			filepath.Base(r.Case.ModelPath),
			filepath.Base(r.Case.Dir),
			fmt.Sprintf("%.3g", r.MaxAbsDiff),
			r.Elapsed.Round(time.Microsecond),
			status,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "passed", fmt.Sprintf("%d/%d", len(results)-failed, len(results))})
	t.Render()
	return failed
}
