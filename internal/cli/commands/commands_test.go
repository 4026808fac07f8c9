package commands

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/config"
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/onnx"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// writeReluModel writes a model computing y = Relu(x) over [1, 4] and one
// test data set into a fresh directory.
func writeReluModel(t *testing.T, expected []float32) string {
	t.Helper()
	dir := t.TempDir()
	info := func(name string) onnx.ValueInfoProto {
		return onnx.ValueInfoProto{
			Name: name,
			Type: &onnx.TypeProto{TensorType: &onnx.TensorTypeProto{
				ElemType: onnx.TensorProtoFloat,
				Shape:    &onnx.TensorShapeProto{Dims: []onnx.DimensionProto{{DimValue: 1}, {DimValue: 4}}},
			}},
		}
	}
	model := &onnx.ModelProto{
		IRVersion:    8,
		ProducerName: "onnxrun-test",
		OpsetImport:  []onnx.OperatorSetID{{Version: 13}},
		Graph: &onnx.GraphProto{
			Name:    "relu",
			Nodes:   []onnx.NodeProto{{Name: "relu", OpType: "Relu", Inputs: []string{"x"}, Outputs: []string{"y"}}},
			Inputs:  []onnx.ValueInfoProto{info("x")},
			Outputs: []onnx.ValueInfoProto{info("y")},
		},
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.onnx"), onnx.Marshal(model), 0o600))

	set := filepath.Join(dir, "test_data_set_0")
	require.NoError(t, os.Mkdir(set, 0o750))
	input := must.M1(tensor.FromValues(tensor.Shape{1, 4}, []float32{-1, 2, -3, 4}))
	want := must.M1(tensor.FromValues(tensor.Shape{1, 4}, expected))
	require.NoError(t, onnx.SaveData(input, filepath.Join(set, "input_0.pb")))
	require.NoError(t, onnx.SaveData(want, filepath.Join(set, "output_0.pb")))
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(WithConfig(context.Background(), &cfg))
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := writeReluModel(t, []float32{0, 2, 0, 4})
	set := filepath.Join(dir, "test_data_set_0")
	saved := filepath.Join(t.TempDir(), "out.pb")

	cfg := config.Defaults()
	cfg.TopK = 2
	out, err := execute(t, NewRunCommand(), cfg,
		"--model", filepath.Join(dir, "model.onnx"),
		"--input", filepath.Join(set, "input_0.pb"),
		"--expected", filepath.Join(set, "output_0.pb"),
		"--save", saved)
	require.NoError(t, err)

	assert.Contains(t, out, "[0 2 0 4]")
	assert.Contains(t, out, "class 3")
	assert.Contains(t, out, "Predicted: 3 (class 3)")
	assert.Contains(t, out, "PASS")

	got, err := onnx.LoadData(saved)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 0, 4}, got.AsFloat32())
}

func TestRunCommandMismatch(t *testing.T) {
	dir := writeReluModel(t, []float32{0, 2, 0, 5})
	set := filepath.Join(dir, "test_data_set_0")

	out, err := execute(t, NewRunCommand(), config.Defaults(),
		"-m", filepath.Join(dir, "model.onnx"),
		"-i", filepath.Join(set, "input_0.pb"),
		"-e", filepath.Join(set, "output_0.pb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 4 elements")
	assert.Contains(t, out, "FAIL")
}

func TestRunCommandMissingModel(t *testing.T) {
	_, err := execute(t, NewRunCommand(), config.Defaults(),
		"-m", filepath.Join(t.TempDir(), "absent.onnx"),
		"-i", filepath.Join(t.TempDir(), "absent.pb"))
	require.Error(t, err)
	assert.Equal(t, errs.KindIO, errs.KindOf(err))
}

func TestRunCommandLabels(t *testing.T) {
	dir := writeReluModel(t, []float32{0, 2, 0, 4})
	cfg := config.Defaults()
	cfg.LabelSet = "mnist"
	cfg.TopK = 1
	out, err := execute(t, NewRunCommand(), cfg,
		"-m", filepath.Join(dir, "model.onnx"),
		"-i", filepath.Join(dir, "test_data_set_0", "input_0.pb"))
	require.NoError(t, err)
	assert.NotContains(t, out, "class 3")
	assert.Contains(t, out, "Label")
	assert.Contains(t, out, "Predicted: 3 (3)")
}

func TestVerifyCommand(t *testing.T) {
	good := writeReluModel(t, []float32{0, 2, 0, 4})
	out, err := execute(t, NewVerifyCommand(), config.Defaults(), good)
	require.NoError(t, err)
	assert.Contains(t, out, "test_data_set_0")
	assert.Contains(t, out, "1/1")

	bad := writeReluModel(t, []float32{0, 2, 0, 5})
	out, err = execute(t, NewVerifyCommand(), config.Defaults(), good, bad, "--jobs", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 test data sets failed")
	assert.Contains(t, out, "FAIL")
}

func TestVerifyCommandLayoutErrors(t *testing.T) {
	_, err := execute(t, NewVerifyCommand(), config.Defaults(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, errs.KindIO, errs.KindOf(err))

	empty := t.TempDir()
	_, err = execute(t, NewVerifyCommand(), config.Defaults(), empty)
	require.ErrorContains(t, err, "no .onnx model")

	dir := writeReluModel(t, []float32{0, 2, 0, 4})
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "test_data_set_0")))
	_, err = execute(t, NewVerifyCommand(), config.Defaults(), dir)
	require.ErrorContains(t, err, "no test_data_set_*")
}

func TestInspectCommand(t *testing.T) {
	dir := writeReluModel(t, []float32{0, 2, 0, 4})
	out, err := execute(t, NewInspectCommand(), config.Defaults(), filepath.Join(dir, "model.onnx"))
	require.NoError(t, err)
	assert.Contains(t, out, "opset 13")
	assert.Contains(t, out, "onnxrun-test")
	assert.Contains(t, out, "Relu")
	assert.Contains(t, out, "[1, 4]")
	assert.Contains(t, out, "All operators are supported.")
}

func TestOpsCommand(t *testing.T) {
	out, err := execute(t, NewOpsCommand(), config.Defaults())
	require.NoError(t, err)
	for _, op := range []string{"Conv", "Gemm", "Softmax", "Relu"} {
		assert.Contains(t, out, op+"\n")
	}
}

func TestCompareTensors(t *testing.T) {
	f := func(v ...float32) *tensor.RawTensor {
		return must.M1(tensor.FromValues(tensor.Shape{len(v)}, v))
	}
	nan := float32(math.NaN())

	c, err := compareTensors(f(1, 2, 3), f(1, 2.00001, 3), 1e-4)
	require.NoError(t, err)
	assert.True(t, c.Pass())
	assert.InDelta(t, 1e-5, c.MaxAbsDiff, 1e-6)

	c, err = compareTensors(f(1, nan), f(1, nan), 0)
	require.NoError(t, err)
	assert.True(t, c.Pass())

	c, err = compareTensors(f(1, nan), f(1, 2), 0)
	require.NoError(t, err)
	assert.False(t, c.Pass())
	assert.Equal(t, 1, c.Mismatched)

	_, err = compareTensors(f(1, 2), f(1, 2, 3), 0)
	assert.Equal(t, errs.KindShapeMismatch, errs.KindOf(err))
}

func TestCompareSetNames(t *testing.T) {
	sets := []string{"test_data_set_10", "test_data_set_2", "test_data_set_0"}
	assert.Negative(t, compareSetNames(sets[1], sets[0]))
	assert.Negative(t, compareSetNames(sets[2], sets[1]))
	assert.Zero(t, compareSetNames(sets[0], sets[0]))
}

func TestConfigFromDefaults(t *testing.T) {
	cfg := ConfigFrom(context.Background())
	assert.Equal(t, config.Defaults(), *cfg)
}
