package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxrun/internal/errs"
)

func TestDigits(t *testing.T) {
	set := Digits()
	assert.Equal(t, "mnist", set.Name())
	assert.Equal(t, 10, set.Len())
	assert.Equal(t, "7", set.Label(7))
	assert.Equal(t, "class 10", set.Label(10))
}

func TestLabelsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synset.txt")
	require.NoError(t, os.WriteFile(path, []byte("tench\ngoldfish\n\n  great white shark \n\n"), 0o600))

	set, err := Labels("imagenet", path)
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())
	assert.Equal(t, "goldfish", set.Label(1))
	assert.Equal(t, "class 2", set.Label(2))
	assert.Equal(t, "great white shark", set.Label(3))

	set, err = Labels("", path)
	require.NoError(t, err)
	assert.Equal(t, "custom", set.Name())
}

func TestLabelsErrors(t *testing.T) {
	_, err := Labels("imagenet", "")
	assert.Error(t, err)
	_, err = Labels("cifar", "")
	assert.Error(t, err)
	_, err = Labels("custom", filepath.Join(t.TempDir(), "absent.txt"))
	assert.ErrorIs(t, err, errs.ErrIO)

	none, err := Labels("", "")
	require.NoError(t, err)
	assert.Equal(t, "class 3", none.Label(3))
}
