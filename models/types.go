package models

import "time"

// AudioSignal is a decoded mono recording. It is owned by a single request
// and must not be modified after decoding.
type AudioSignal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the signal.
func (s AudioSignal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

type ProcessingTimings struct {
	RequestID string
	Decode    time.Duration
	Resample  time.Duration
	Extract   time.Duration
	Scale     time.Duration
	Inference time.Duration
	Total     time.Duration
}
