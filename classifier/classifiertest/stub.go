// Package classifiertest provides canned classifiers for tests.
package classifiertest

import (
	"context"
	"sync"

	"github.com/Tutortoise/voice-screening-service/classifier"
	"github.com/Tutortoise/voice-screening-service/models"
)

// Stub returns fixed outputs and records the vectors it was given.
type Stub struct {
	Label         int64
	Probabilities []float64
	Err           error
	// ProbabilityErr overrides the probability result. A nil Probabilities
	// with a nil ProbabilityErr reports ErrProbabilityUnsupported.
	ProbabilityErr error

	mu   sync.Mutex
	seen []models.FeatureVector
}

func (s *Stub) record(v models.FeatureVector) {
	s.mu.Lock()
	s.seen = append(s.seen, v)
	s.mu.Unlock()
}

func (s *Stub) Predict(_ context.Context, v models.FeatureVector) (int64, error) {
	s.record(v)
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Label, nil
}

func (s *Stub) PredictProbability(_ context.Context, v models.FeatureVector) ([]float64, error) {
	s.record(v)
	if s.ProbabilityErr != nil {
		return nil, s.ProbabilityErr
	}
	if s.Probabilities == nil {
		return nil, classifier.ErrProbabilityUnsupported
	}
	return s.Probabilities, nil
}

// Seen returns the vectors passed to the stub so far.
func (s *Stub) Seen() []models.FeatureVector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FeatureVector(nil), s.seen...)
}

// LabelOnly implements only classifier.Classifier.
type LabelOnly struct {
	Label int64
}

func (l LabelOnly) Predict(context.Context, models.FeatureVector) (int64, error) {
	return l.Label, nil
}

// Panicking panics on every prediction.
type Panicking struct{}

func (Panicking) Predict(context.Context, models.FeatureVector) (int64, error) {
	panic("classifier exploded")
}
