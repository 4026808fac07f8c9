package onnx

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// LoadData reads a TensorProto data file (the input_N.pb / output_N.pb
// format of ONNX test sets) and decodes it.
//
//nolint:gosec // G304: data files are named by the caller.
func LoadData(path string) (*tensor.RawTensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO(err, "read data %q", path)
	}
	tp, err := ParseTensor(data)
	if err != nil {
		return nil, err
	}
	return DecodeTensor(tp)
}

// SaveData encodes t as a TensorProto and writes it to path.
//
// The file is written to a temporary sibling, synced and renamed over path,
// so readers never observe a partial file. The parent directory must exist.
func SaveData(t *tensor.RawTensor, path string) error {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	payload := MarshalTensor(EncodeTensor(t, name))

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.IO(err, "save data %q", path)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return errs.IO(err, "write %q", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errs.IO(err, "sync %q", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errs.IO(err, "close %q", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errs.IO(err, "save data %q", path)
	}
	committed = true
	return nil
}
