package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTuning(t *testing.T) {
	tests := []struct {
		name     string
		freq     float64
		min, max float64
	}{
		{"on grid", 440, -0.05, 0.05},
		{"flat of grid", 233, -0.45, -0.3},
		{"sharp of grid", 247, 0.1, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			power := powerSpectrogram(magnitudeSpectrogram(sineSignal(tt.freq, 22050, 1).Samples))
			got := estimateTuning(power, 22050, 7)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestEstimateTuningBelowPitchRange(t *testing.T) {
	// Nothing between PitchMinHz and PitchMaxHz votes.
	power := powerSpectrogram(magnitudeSpectrogram(sineSignal(100, 8000, 0.5).Samples))
	assert.Equal(t, 0.0, estimateTuning(power, 8000, 7))
}

func TestPitchTuning(t *testing.T) {
	at := func(octaves, offset float64) float64 {
		return 27.5 * math.Pow(2, octaves+offset/7)
	}

	// The most common cell wins, whatever the octave.
	freqs := []float64{at(1, 0.255), at(2, 0.255), at(3, 0.255), at(4, -0.2)}
	assert.InDelta(t, 0.25, pitchTuning(freqs, 7), 1e-9)

	// Offsets past half a bin wrap to the next one down.
	assert.InDelta(t, -0.4, pitchTuning([]float64{at(3, 0.605)}, 7), 1e-9)

	assert.Equal(t, 0.0, pitchTuning(nil, 7))
	assert.Equal(t, 0.0, pitchTuning([]float64{0, -3}, 7))
}

func TestHistogramCell(t *testing.T) {
	edges := []float64{-0.5, -0.25, 0, 0.25, 0.5}

	assert.Equal(t, 0, histogramCell(edges, -0.5))
	assert.Equal(t, 1, histogramCell(edges, -0.25))
	assert.Equal(t, 2, histogramCell(edges, 0.1))
	assert.Equal(t, 3, histogramCell(edges, 0.49))
	assert.Equal(t, 3, histogramCell(edges, 0.5))
}

func TestTuningKey(t *testing.T) {
	assert.Equal(t, -4, tuningKey(-0.03999999999999998))
	assert.Equal(t, 0, tuningKey(0))
	assert.Equal(t, 25, tuningKey(0.25))
}
