package audio

import (
	"fmt"
	"math"

	"github.com/Tutortoise/voice-screening-service/models"
	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts signal to rate. A non-positive rate, or one equal to the
// signal's own, returns the signal unchanged. The output holds exactly
// ceil(len*rate/source) samples; the filter tail is flushed and then trimmed
// or zero-padded to that length.
func Resample(signal models.AudioSignal, rate int) (models.AudioSignal, error) {
	if rate <= 0 || rate == signal.SampleRate || len(signal.Samples) == 0 {
		return signal, nil
	}
	if signal.SampleRate <= 0 {
		return models.AudioSignal{}, fmt.Errorf("resample from %d Hz: invalid source rate", signal.SampleRate)
	}

	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(signal.SampleRate),
		OutputRate: float64(rate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return models.AudioSignal{}, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := resampler.Process(signal.Samples)
	if err != nil {
		return models.AudioSignal{}, fmt.Errorf("resample error: %w", err)
	}
	tail, err := resampler.Flush()
	if err != nil {
		return models.AudioSignal{}, fmt.Errorf("resample flush error: %w", err)
	}
	out = append(out, tail...)

	return models.AudioSignal{Samples: fixLength(out, ResampledLength(len(signal.Samples), signal.SampleRate, rate)), SampleRate: rate}, nil
}

// ResampledLength is the number of samples n samples at from Hz occupy at to Hz.
func ResampledLength(n, from, to int) int {
	return int(math.Ceil(float64(n) * float64(to) / float64(from)))
}

func fixLength(samples []float64, n int) []float64 {
	if len(samples) >= n {
		return samples[:n]
	}
	return append(samples, make([]float64, n-len(samples))...)
}
