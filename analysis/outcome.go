package analysis

import (
	"errors"

	"github.com/Tutortoise/voice-screening-service/audio"
	"github.com/Tutortoise/voice-screening-service/classifier"
	"github.com/Tutortoise/voice-screening-service/features"
	"github.com/Tutortoise/voice-screening-service/models"
)

// Kind classifies a failed analysis.
type Kind string

const (
	KindDecodeError      Kind = "DecodeError"
	KindExtractionError  Kind = "ExtractionError"
	KindModelUnavailable Kind = "ModelUnavailable"
	KindPredictionError  Kind = "PredictionError"
)

type Failure struct {
	Kind    Kind
	Message string
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Outcome holds exactly one of Result and Failure.
type Outcome struct {
	Result  *models.ClassificationResult
	Failure *Failure
	Timings models.ProcessingTimings
}

func (o Outcome) OK() bool {
	return o.Failure == nil
}

// KindOf maps an error chain onto the failure taxonomy. Unrecognised errors
// are prediction errors.
func KindOf(err error) Kind {
	var (
		decodeErr      *audio.DecodeError
		extractionErr  *features.ExtractionError
		unavailableErr *classifier.ModelUnavailableError
	)
	switch {
	case errors.As(err, &decodeErr):
		return KindDecodeError
	case errors.As(err, &extractionErr):
		return KindExtractionError
	case errors.As(err, &unavailableErr):
		return KindModelUnavailable
	default:
		return KindPredictionError
	}
}

func failed(err error) Outcome {
	return Outcome{Failure: &Failure{Kind: KindOf(err), Message: err.Error()}}
}
