package cli

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/errs"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "onnxrun", cmd.Use)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"run", "verify", "inspect", "ops", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
	for _, flag := range []string{"config", "verbose", "labels", "labels-file", "top-k", "tolerance", "order", "parallel", "workers", "v"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %q", flag)
	}
}

func TestRootVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "onnxrun v"+Version)
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"ops", "--top-k", "0"})
	assert.ErrorContains(t, cmd.Execute(), "top_k must be positive")

	cmd = NewRootCmd()
	cmd.SetArgs([]string{"ops", "--order", "sideways"})
	assert.ErrorContains(t, cmd.Execute(), "unknown execution order")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("comparison failed"), 1},
		{errs.IO(errors.New("denied"), "open"), 2},
		{errs.Decodef("bad varint"), 3},
		{errs.UnknownOpf("Foo"), 4},
		{&errs.NodeError{Index: 1, OpType: "Add", Err: errs.MissingInputf("x")}, 5},
		{errs.ShapeMismatchf("rank"), 6},
		{errs.Cyclef("loop"), 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}
