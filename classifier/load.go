package classifier

import (
	"errors"
	"os"
	"time"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

type Options struct {
	PoolSize       int
	AcquireTimeout time.Duration
	// Threads is the intra-op thread count of each session. Zero keeps the
	// runtime default.
	Threads int
	Logger  *zap.Logger
}

// Load opens the ONNX classifier at path and starts a session pool for it.
// InitRuntime must have succeeded first. Every failure is a
// *ModelUnavailableError.
func Load(path string, opts Options) (*SessionPool, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(path); err != nil {
		return nil, &ModelUnavailableError{Path: path, Cause: err}
	}
	if !ort.IsInitialized() {
		return nil, &ModelUnavailableError{Path: path, Cause: errors.New("ONNX Runtime is not initialized")}
	}

	layout, err := inspectModel(path)
	if err != nil {
		return nil, &ModelUnavailableError{Path: path, Cause: err}
	}
	logger.Info("Loaded model metadata",
		zap.String("path", path),
		zap.String("input", layout.input),
		zap.String("label", layout.label),
		zap.String("probabilities", layout.probabilities),
		zap.Int64("classes", layout.classes))

	factory := func() (Session, error) {
		return newModelSession(path, layout, opts.Threads)
	}
	pool, err := NewSessionPool(factory, PoolConfig{
		Size:           opts.PoolSize,
		AcquireTimeout: opts.AcquireTimeout,
		Probabilities:  layout.hasProbabilities(),
	}, logger)
	if err != nil {
		return nil, &ModelUnavailableError{Path: path, Cause: err}
	}
	return pool, nil
}
