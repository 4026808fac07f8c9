package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

func TestSaveLoadData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output_0.pb")
	orig := must.M1(tensor.FromValues(tensor.Shape{2, 2}, []int64{1, -2, 3, 1 << 40}))

	require.NoError(t, SaveData(orig, path))
	got, err := LoadData(path)
	require.NoError(t, err)
	assert.True(t, tensor.Equal(orig, got))

	tp := must.M1(ParseTensor(must.M1(os.ReadFile(path))))
	assert.Equal(t, "output_0", tp.Name)

	entries := must.M1(os.ReadDir(dir))
	assert.Len(t, entries, 1, "no temporary files may remain")
}

func TestSaveDataOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pb")
	require.NoError(t, SaveData(f32(tensor.Shape{1}, 1), path))
	require.NoError(t, SaveData(f32(tensor.Shape{2}, 2, 3), path))
	got := must.M1(LoadData(path))
	assert.Equal(t, []float32{2, 3}, got.AsFloat32())
}

func TestSaveDataMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "absent")
	path := filepath.Join(dir, "out.pb")
	err := SaveData(f32(tensor.Shape{1}, 1), path)
	require.ErrorIs(t, err, errs.ErrIO)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "parent directories are never created")
}

func TestLoadDataErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadData(filepath.Join(dir, "missing.pb"))
	assert.ErrorIs(t, err, errs.ErrIO)

	bad := filepath.Join(dir, "bad.pb")
	require.NoError(t, os.WriteFile(bad, []byte{0x0A, 0x05, 0x01}, 0o600))
	_, err = LoadData(bad)
	assert.ErrorIs(t, err, errs.ErrDecode)

	short := filepath.Join(dir, "short.pb")
	tp := &TensorProto{DataType: TensorProtoFloat, Dims: []int64{4}, RawData: make([]byte, 8)}
	require.NoError(t, os.WriteFile(short, MarshalTensor(tp), 0o600))
	_, err = LoadData(short)
	assert.ErrorIs(t, err, errs.ErrDecode)
}
