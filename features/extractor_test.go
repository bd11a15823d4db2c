package features

import (
	"errors"
	"math"
	"testing"

	"github.com/Tutortoise/voice-screening-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSignal(freq float64, sampleRate int, seconds float64) models.AudioSignal {
	n := int(seconds * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return models.AudioSignal{Samples: samples, SampleRate: sampleRate}
}

func TestExtractLengthAndDeterminism(t *testing.T) {
	signal := sineSignal(220, 22050, 1)
	ext := New()

	first, err := ext.Extract(signal)
	require.NoError(t, err)
	second, err := ext.Extract(signal)
	require.NoError(t, err)

	assert.Len(t, first, models.FeatureCount)
	assert.Equal(t, first, second)

	// The shared extractor must agree with a private one.
	shared, err := Extract(signal)
	require.NoError(t, err)
	assert.Equal(t, first, shared)
}

func TestExtractSine(t *testing.T) {
	const freq, sampleRate = 220.0, 22050
	vec, err := Extract(sineSignal(freq, sampleRate, 3))
	require.NoError(t, err)

	for i, x := range vec {
		assert.False(t, math.IsNaN(x) || math.IsInf(x, 0), "slot %d not finite", i)
	}

	assert.InDelta(t, freq, vec.SpectralCentroid(), 10)
	assert.InDelta(t, 2*freq/sampleRate, vec.ZeroCrossingRate(), 0.001)

	// 220 Hz is an A, which lands in the first of the seven bins.
	chroma := vec.Chroma()
	for i, c := range chroma {
		assert.GreaterOrEqual(t, c, 0.0, "chroma %d", i)
		assert.LessOrEqual(t, c, 1.0, "chroma %d", i)
	}
	assert.InDelta(t, 1.0, chroma[0], 0.01)
	for i := 1; i < len(chroma); i++ {
		assert.Less(t, chroma[i], chroma[0], "chroma %d", i)
	}
}

// Reference values for a three-partial tone at 8 kHz, computed with an
// independent implementation of the same front end (Hann STFT, Slaney mel,
// power_to_db with top_db 80, orthonormal DCT-II, tuned 7-bin chroma).
func TestExtractMatchesReference(t *testing.T) {
	const sampleRate = 8000
	samples := make([]float64, sampleRate)
	for i := range samples {
		x := float64(i) / sampleRate
		samples[i] = 0.6*math.Sin(2*math.Pi*233*x) + 0.3*math.Sin(2*math.Pi*466*x) + 0.1*math.Sin(2*math.Pi*1165*x)
	}

	vec, err := New().Extract(models.AudioSignal{Samples: samples, SampleRate: sampleRate})
	require.NoError(t, err)

	wantMFCC := []float64{
		-362.2008877591166, 75.65707348964546, 18.621881014469103, 16.98677168325494,
		11.888632279046403, -22.8571872998686, -45.80029746416476, -22.15319283704143,
		6.268938930107705, -4.585458368559737, -25.402953061029958, -13.998236597621055,
		2.8469031756852567,
	}
	for i, want := range wantMFCC {
		assert.InDelta(t, want, vec.MFCC()[i], 1e-4, "mfcc %d", i)
	}

	wantChroma := []float64{
		0.15469808377322264, 1.0, 0.1439434520350734, 0.0310346885639795,
		0.011185053964289456, 0.000562016045155452, 0.0015308754091091605,
	}
	for i, want := range wantChroma {
		assert.InDelta(t, want, vec.Chroma()[i], 1e-5, "chroma %d", i)
	}
}

func TestExtractOffGridPitch(t *testing.T) {
	// 233 Hz sits about 0.42 of a bin below the A440 7-bin grid. Retuning
	// keeps its energy in one pitch class instead of smearing it over two.
	vec, err := New().Extract(sineSignal(233, 22050, 1))
	require.NoError(t, err)

	chroma := vec.Chroma()
	assert.InDelta(t, 1.0, chroma[1], 0.01)
	for i, c := range chroma {
		if i != 1 {
			assert.Less(t, c, 0.4, "chroma %d", i)
		}
	}
}

func TestExtractCentroidTracksFrequency(t *testing.T) {
	low, err := Extract(sineSignal(440, 16000, 1))
	require.NoError(t, err)
	high, err := Extract(sineSignal(2000, 16000, 1))
	require.NoError(t, err)

	assert.InDelta(t, 440, low.SpectralCentroid(), 25)
	assert.InDelta(t, 2000, high.SpectralCentroid(), 60)
	assert.Greater(t, high.ZeroCrossingRate(), low.ZeroCrossingRate())
}

func TestExtractDurationInvariance(t *testing.T) {
	short, err := Extract(sineSignal(330, 22050, 2))
	require.NoError(t, err)
	long, err := Extract(sineSignal(330, 22050, 4))
	require.NoError(t, err)

	assert.InDelta(t, long.SpectralCentroid(), short.SpectralCentroid(), 5)
	assert.InDelta(t, long.ZeroCrossingRate(), short.ZeroCrossingRate(), 0.001)
}

func TestExtractShortSignal(t *testing.T) {
	// Shorter than one frame: centered padding still yields a single frame.
	vec, err := Extract(sineSignal(440, 22050, 0.01))
	require.NoError(t, err)
	for i, x := range vec {
		assert.False(t, math.IsNaN(x) || math.IsInf(x, 0), "slot %d not finite", i)
	}
}

func TestExtractRejectsDegenerateSignals(t *testing.T) {
	tests := []struct {
		name   string
		signal models.AudioSignal
		cause  error
	}{
		{
			name:   "empty",
			signal: models.AudioSignal{SampleRate: 22050},
			cause:  ErrEmptySignal,
		},
		{
			name:   "silent",
			signal: models.AudioSignal{Samples: make([]float64, 22050), SampleRate: 22050},
			cause:  ErrSilentSignal,
		},
		{
			name:   "below threshold",
			signal: models.AudioSignal{Samples: []float64{1e-12, -1e-12, 0}, SampleRate: 8000},
			cause:  ErrSilentSignal,
		},
		{
			name:   "zero sample rate",
			signal: models.AudioSignal{Samples: []float64{0.5, -0.5}, SampleRate: 0},
			cause:  ErrInvalidSampleRate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.signal)
			var extractionErr *ExtractionError
			require.True(t, errors.As(err, &extractionErr), "got %v", err)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestExtractRejectsNonFiniteSamples(t *testing.T) {
	signal := sineSignal(220, 8000, 0.5)
	signal.Samples[10] = math.NaN()

	_, err := Extract(signal)
	var extractionErr *ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Contains(t, err.Error(), "sample 10")
}

func TestMelSpectrogramDB(t *testing.T) {
	signal := sineSignal(220, 22050, 1)
	db, err := New().MelSpectrogramDB(signal)
	require.NoError(t, err)

	rows, cols := db.Dims()
	assert.Equal(t, NumMels, rows)
	assert.Equal(t, frameCount(len(signal.Samples)), cols)

	peak, floor := math.Inf(-1), math.Inf(1)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			peak = math.Max(peak, db.At(i, j))
			floor = math.Min(floor, db.At(i, j))
		}
	}
	assert.InDelta(t, TopDB, peak-floor, 1e-9)

	_, err = New().MelSpectrogramDB(models.AudioSignal{SampleRate: 22050})
	assert.ErrorIs(t, err, ErrEmptySignal)
}

func TestZeroCrossingRates(t *testing.T) {
	// Alternating signs cross at every sample.
	samples := make([]float64, 4096)
	for i := range samples {
		samples[i] = 1
		if i%2 == 1 {
			samples[i] = -1
		}
	}
	rates := zeroCrossingRates(samples)
	require.Len(t, rates, frameCount(len(samples)))

	// Frames fully inside the signal see FrameLength-1 crossings.
	mid := len(rates) / 2
	assert.InDelta(t, float64(FrameLength-1)/FrameLength, rates[mid], 1e-12)

	// Values under the zero threshold count as positive.
	quiet := []float64{1e-11, -1e-11, 1e-11, -1e-11, 0.5, -0.5}
	quietRates := zeroCrossingRates(quiet)
	assert.InDelta(t, 1.0/FrameLength, quietRates[0], 1e-12)
}
