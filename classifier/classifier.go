// Package classifier serves a pretrained binary voice classifier exported to
// ONNX.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tutortoise/voice-screening-service/models"
)

var (
	// ErrProbabilityUnsupported is returned by PredictProbability when the
	// model exposes no probability output.
	ErrProbabilityUnsupported = errors.New("model does not support probability estimates")
	ErrPoolClosed             = errors.New("pool is closed")
	ErrAcquireTimeout         = errors.New("timeout waiting for available session")
)

// Classifier predicts a label code for a feature vector.
type Classifier interface {
	Predict(ctx context.Context, v models.FeatureVector) (int64, error)
}

// ProbabilityEstimator is implemented by classifiers that can report a class
// distribution. Implementations may still return ErrProbabilityUnsupported.
type ProbabilityEstimator interface {
	PredictProbability(ctx context.Context, v models.FeatureVector) ([]float64, error)
}

// Scorer returns the label and, when available, the class distribution from
// a single inference.
type Scorer interface {
	Classify(ctx context.Context, v models.FeatureVector) (Prediction, error)
}

// Prediction is the raw output of one inference.
type Prediction struct {
	Label int64
	// Probabilities is nil when the model has no probability output.
	Probabilities []float64
}

// ModelUnavailableError means the model could not be loaded. The service
// cannot serve without it.
type ModelUnavailableError struct {
	Path  string
	Cause error
}

func (e *ModelUnavailableError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("model unavailable: %v", e.Cause)
	}
	return fmt.Sprintf("model unavailable (%s): %v", e.Path, e.Cause)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Cause
}

// PredictionError wraps failures while running the model.
type PredictionError struct {
	Message string
	Cause   error
}

func (e *PredictionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PredictionError) Unwrap() error {
	return e.Cause
}
