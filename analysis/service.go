// Package analysis runs extraction, scaling and classification for one
// recording and reports the result, or the reason there is none, as an
// Outcome.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Tutortoise/voice-screening-service/audio"
	"github.com/Tutortoise/voice-screening-service/classifier"
	"github.com/Tutortoise/voice-screening-service/features"
	"github.com/Tutortoise/voice-screening-service/models"
	"go.uber.org/zap"
)

// DefaultHealthyLabel is the label code the shipped model uses for healthy
// voices.
const DefaultHealthyLabel int64 = 1

type Service struct {
	classifier   classifier.Classifier
	extractor    *features.Extractor
	scaler       *classifier.Scaler
	healthyLabel int64
	targetRate   int
	maxDuration  time.Duration
	logger       *zap.Logger
}

type Option func(*Service)

// WithHealthyLabel sets the label code reported as Healthy. Every other code
// is reported as Parkinson's.
func WithHealthyLabel(label int64) Option {
	return func(s *Service) { s.healthyLabel = label }
}

// WithScaler standardizes vectors before classification. The breakdown in
// the result still reports unscaled values.
func WithScaler(scaler *classifier.Scaler) Option {
	return func(s *Service) { s.scaler = scaler }
}

// WithTargetSampleRate resamples uploads before extraction. Zero keeps the
// native rate.
func WithTargetSampleRate(rate int) Option {
	return func(s *Service) { s.targetRate = rate }
}

// WithMaxDuration rejects decoded uploads longer than d as KindDecodeError
// before any resampling or extraction. Zero disables the limit.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Service) { s.maxDuration = d }
}

func WithExtractor(e *features.Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService builds a Service around c. A nil classifier is allowed: every
// analysis then fails with KindModelUnavailable.
func NewService(c classifier.Classifier, opts ...Option) *Service {
	s := &Service{
		classifier:   c,
		extractor:    features.New(),
		healthyLabel: DefaultHealthyLabel,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeUpload decodes an uploaded file and analyzes it. Decoding problems
// are reported as KindDecodeError.
func (s *Service) AnalyzeUpload(ctx context.Context, data []byte, filename string) Outcome {
	start := time.Now()
	timings := models.ProcessingTimings{RequestID: RequestID(ctx)}

	t := time.Now()
	signal, err := audio.Decode(data, filename)
	timings.Decode = time.Since(t)
	if err == nil {
		err = audio.CheckDuration(signal, s.maxDuration)
	}
	if err != nil {
		out := failed(err)
		out.Timings = timings
		return s.finish(ctx, out, start)
	}

	t = time.Now()
	signal, err = audio.Resample(signal, s.targetRate)
	timings.Resample = time.Since(t)
	if err != nil {
		out := Outcome{Failure: &Failure{Kind: KindDecodeError, Message: err.Error()}, Timings: timings}
		return s.finish(ctx, out, start)
	}

	s.logger.Debug("Decoded upload",
		zap.String("request_id", timings.RequestID),
		zap.String("file", filename),
		zap.Int("sampleRate", signal.SampleRate),
		zap.Duration("duration", signal.Duration()))

	return s.run(ctx, signal, timings, start)
}

// Analyze classifies a decoded signal. It never panics and never returns a
// result for input it could not extract features from.
func (s *Service) Analyze(ctx context.Context, signal models.AudioSignal) Outcome {
	return s.run(ctx, signal, models.ProcessingTimings{RequestID: RequestID(ctx)}, time.Now())
}

func (s *Service) run(ctx context.Context, signal models.AudioSignal, timings models.ProcessingTimings, start time.Time) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Analysis panicked",
				zap.String("request_id", timings.RequestID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			out = Outcome{Failure: &Failure{
				Kind:    KindPredictionError,
				Message: fmt.Sprintf("analysis failed: %v", r),
			}}
		}
		out.Timings = timings
		out = s.finish(ctx, out, start)
	}()

	if s.classifier == nil {
		return Outcome{Failure: &Failure{Kind: KindModelUnavailable, Message: "model unavailable: no classifier loaded"}}
	}
	if err := ctx.Err(); err != nil {
		return failed(fmt.Errorf("analysis cancelled: %w", err))
	}

	t := time.Now()
	vec, err := s.extractor.Extract(signal)
	timings.Extract = time.Since(t)
	if err != nil {
		return failed(err)
	}
	s.logger.Debug("Extracted features",
		zap.String("request_id", timings.RequestID),
		zap.Float64s("features", vec[:]))

	t = time.Now()
	scaled, err := s.scaler.Transform(vec)
	timings.Scale = time.Since(t)
	if err != nil {
		return failed(err)
	}

	t = time.Now()
	label, probability, err := s.classify(ctx, scaled)
	timings.Inference = time.Since(t)
	if err != nil {
		return failed(err)
	}
	s.logger.Debug("Classifier output",
		zap.String("request_id", timings.RequestID),
		zap.Int64("label", label),
		zap.Float64("probability", probability.Value),
		zap.String("source", string(probability.Source)))

	return Outcome{Result: &models.ClassificationResult{
		Prediction:  s.labelName(label),
		Label:       label,
		Probability: probability,
		Features:    models.NewFeatureBreakdown(vec),
	}}
}

func (s *Service) labelName(label int64) string {
	if label == s.healthyLabel {
		return models.LabelHealthy
	}
	return models.LabelAffected
}

func (s *Service) classify(ctx context.Context, v models.FeatureVector) (int64, models.Probability, error) {
	if scorer, ok := s.classifier.(classifier.Scorer); ok {
		pred, err := scorer.Classify(ctx, v)
		if err != nil {
			return 0, models.Probability{}, fmt.Errorf("prediction failed: %w", err)
		}
		if pred.Probabilities == nil {
			return pred.Label, fallbackProbability(pred.Label), nil
		}
		p, err := pickProbability(pred.Probabilities)
		return pred.Label, p, err
	}

	label, err := s.classifier.Predict(ctx, v)
	if err != nil {
		return 0, models.Probability{}, fmt.Errorf("prediction failed: %w", err)
	}

	estimator, ok := s.classifier.(classifier.ProbabilityEstimator)
	if !ok {
		return label, fallbackProbability(label), nil
	}
	probs, err := estimator.PredictProbability(ctx, v)
	if errors.Is(err, classifier.ErrProbabilityUnsupported) {
		return label, fallbackProbability(label), nil
	}
	if err != nil {
		return 0, models.Probability{}, fmt.Errorf("probability estimate failed: %w", err)
	}
	p, err := pickProbability(probs)
	return label, p, err
}

// pickProbability reads the positive-class probability: index 1 of a
// two-class distribution, index 0 of a single-class one.
func pickProbability(probs []float64) (models.Probability, error) {
	var p float64
	switch len(probs) {
	case 0:
		return models.Probability{}, &classifier.PredictionError{Message: "classifier returned an empty probability distribution"}
	case 1:
		p = probs[0]
	case 2:
		p = probs[1]
	default:
		return models.Probability{}, &classifier.PredictionError{
			Message: fmt.Sprintf("expected a binary distribution, got %d classes", len(probs)),
		}
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return models.Probability{}, &classifier.PredictionError{Message: fmt.Sprintf("probability %v is outside [0, 1]", p)}
	}
	return models.Calibrated(models.Round(p, 2)), nil
}

// fallbackProbability derives a value from the label when the model reports
// no distribution. It is not a confidence.
func fallbackProbability(label int64) models.Probability {
	switch label {
	case 0:
		return models.FallbackApproximate(0)
	case 1:
		return models.FallbackApproximate(1)
	default:
		return models.FallbackApproximate(0.5)
	}
}

// finish stamps the total duration, records metrics and logs out.
func (s *Service) finish(ctx context.Context, out Outcome, start time.Time) Outcome {
	out.Timings.Total = time.Since(start)
	observe(out)

	t := out.Timings
	s.logger.Debug("Processing times",
		zap.String("request_id", t.RequestID),
		zap.Duration("decode", t.Decode),
		zap.Duration("resample", t.Resample),
		zap.Duration("extract", t.Extract),
		zap.Duration("scale", t.Scale),
		zap.Duration("inference", t.Inference),
		zap.Duration("total", t.Total))

	if out.Failure != nil {
		s.logger.Warn("Analysis failed",
			zap.String("request_id", t.RequestID),
			zap.String("kind", string(out.Failure.Kind)),
			zap.String("error", out.Failure.Message),
			zap.Bool("cancelled", ctx.Err() != nil))
		return out
	}
	s.logger.Info("Analysis complete",
		zap.String("request_id", t.RequestID),
		zap.String("prediction", out.Result.Prediction),
		zap.Float64("probability", out.Result.Probability.Value),
		zap.String("source", string(out.Result.Probability.Source)),
		zap.Duration("total", t.Total))
	return out
}
