package audio

import (
	"fmt"
	"testing"

	"github.com/Tutortoise/voice-screening-service/audio/audiotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResamplePassthrough(t *testing.T) {
	signal := audiotest.Sine(220, 22050, 0.1)

	for _, rate := range []int{0, -1, 22050} {
		out, err := Resample(signal, rate)
		require.NoError(t, err)
		assert.Equal(t, signal.SampleRate, out.SampleRate)
		assert.Len(t, out.Samples, len(signal.Samples))
	}
}

func TestResampleChangesRate(t *testing.T) {
	tests := []struct {
		from, to int
		seconds  float64
	}{
		{44100, 22050, 1},
		{22050, 16000, 3},
		{48000, 16000, 0.5},
		{16000, 22050, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d to %d", tt.from, tt.to), func(t *testing.T) {
			signal := audiotest.Sine(220, tt.from, tt.seconds)

			out, err := Resample(signal, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.to, out.SampleRate)

			want := tt.seconds * float64(tt.to)
			assert.InDelta(t, want, float64(len(out.Samples)), want*0.005)
			assert.Equal(t, ResampledLength(len(signal.Samples), tt.from, tt.to), len(out.Samples))
		})
	}
}

func TestResampleKeepsTail(t *testing.T) {
	signal := audiotest.Sine(220, 44100, 1)

	out, err := Resample(signal, 22050)
	require.NoError(t, err)

	// The last 10 ms must carry the tone, not padding.
	tail := out.Samples[len(out.Samples)-220:]
	var energy float64
	for _, v := range tail {
		energy += v * v
	}
	assert.Greater(t, energy/float64(len(tail)), 0.2)
}

func TestResampledLength(t *testing.T) {
	assert.Equal(t, 22050, ResampledLength(44100, 44100, 22050))
	assert.Equal(t, 8000, ResampledLength(22050, 22050, 8000))
	assert.Equal(t, 3, ResampledLength(5, 44100, 22050))
}
