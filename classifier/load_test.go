package classifier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	ort "github.com/yalue/onnxruntime_go"
)

func TestLoadMissingModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.onnx")
	_, err := Load(path, Options{})

	var unavailable *ModelUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Equal(t, path, unavailable.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConcreteShape(t *testing.T) {
	assert.Equal(t, ort.NewShape(1), concreteShape(nil, 1))
	assert.Equal(t, ort.NewShape(1), concreteShape(ort.NewShape(-1), 1))
	assert.Equal(t, ort.NewShape(1, 2), concreteShape(ort.NewShape(-1, 2), 1))
}

func TestResolveLibraryPath(t *testing.T) {
	t.Setenv("ONNXRUNTIME_LIB", "")
	t.Setenv("ONNXRUNTIME_ROOT", "")
	t.Setenv("LD_LIBRARY_PATH", "")

	assert.Equal(t, "/opt/custom.so", resolveLibraryPath("/opt/custom.so"))
	assert.Equal(t, "", resolveLibraryPath(""))

	t.Setenv("ONNXRUNTIME_LIB", "/env/lib.so")
	assert.Equal(t, "/env/lib.so", resolveLibraryPath(""))
	t.Setenv("ONNXRUNTIME_LIB", "")

	root := t.TempDir()
	libDir := filepath.Join(root, "lib")
	assert.NoError(t, os.MkdirAll(libDir, 0o755))
	lib := filepath.Join(libDir, libraryName())
	assert.NoError(t, os.WriteFile(lib, nil, 0o644))

	t.Setenv("ONNXRUNTIME_ROOT", root)
	assert.Equal(t, lib, resolveLibraryPath(""))

	t.Setenv("ONNXRUNTIME_ROOT", "")
	t.Setenv("LD_LIBRARY_PATH", "/nonexistent"+string(os.PathListSeparator)+libDir)
	assert.Equal(t, lib, resolveLibraryPath(""))
}

func TestModelErrors(t *testing.T) {
	cause := errors.New("bad")
	err := &ModelUnavailableError{Path: "m.onnx", Cause: cause}
	assert.Equal(t, "model unavailable (m.onnx): bad", err.Error())
	assert.ErrorIs(t, err, cause)

	predErr := &PredictionError{Message: "inference failed", Cause: cause}
	assert.Equal(t, "inference failed: bad", predErr.Error())
	assert.Equal(t, "no output", (&PredictionError{Message: "no output"}).Error())
}
