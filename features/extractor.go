// Package features turns a mono audio signal into the fixed 22 slot feature
// vector consumed by the classifier.
//
// All four feature groups are averaged over centered analysis frames of
// FrameLength samples spaced HopLength apart:
//
//	slots  0-12  MFCC       13 coefficients of the log-mel spectrum (128 Slaney bands)
//	slots 13-19  chroma     7 pitch-class bins, per-frame max normalized, with the
//	                        reference pitch retuned to the recording's peaks
//	slot  20     ZCR        fraction of sign changes per frame
//	slot  21     centroid   magnitude-weighted mean frequency in Hz
package features

import (
	"fmt"
	"math"
	"sync"

	"github.com/Tutortoise/voice-screening-service/models"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// filterBanks holds the matrices that depend on the sample rate.
type filterBanks struct {
	mel   *mat.Dense
	dct   *mat.Dense
	freqs []float64
}

func newFilterBanks(sampleRate int) *filterBanks {
	return &filterBanks{
		mel:   melFilterBank(NumMels, FrameLength, sampleRate, 0, float64(sampleRate)/2),
		dct:   dctMatrix(models.NumMFCC, NumMels),
		freqs: fftFrequencies(sampleRate, FrameLength),
	}
}

type chromaKey struct {
	sampleRate int
	tuning     int
}

// Extractor computes feature vectors. Filter banks are built once per sample
// rate, chroma banks once per sample rate and tuning estimate; an Extractor
// is safe for concurrent use.
type Extractor struct {
	banks  sync.Map // int -> *filterBanks
	chroma sync.Map // chromaKey -> *mat.Dense
}

func New() *Extractor {
	return &Extractor{}
}

var defaultExtractor = New()

// Extract computes the feature vector of signal with a shared Extractor.
func Extract(signal models.AudioSignal) (models.FeatureVector, error) {
	return defaultExtractor.Extract(signal)
}

func (e *Extractor) banksFor(sampleRate int) *filterBanks {
	if b, ok := e.banks.Load(sampleRate); ok {
		return b.(*filterBanks)
	}
	b, _ := e.banks.LoadOrStore(sampleRate, newFilterBanks(sampleRate))
	return b.(*filterBanks)
}

// chromaBank returns the chroma filter bank for power, tuned to the offset
// estimated from its spectral peaks.
func (e *Extractor) chromaBank(power *mat.Dense, sampleRate int) *mat.Dense {
	tuning := estimateTuning(power, sampleRate, models.NumChroma)
	key := chromaKey{sampleRate: sampleRate, tuning: tuningKey(tuning)}
	if b, ok := e.chroma.Load(key); ok {
		return b.(*mat.Dense)
	}
	b, _ := e.chroma.LoadOrStore(key, chromaFilterBank(models.NumChroma, FrameLength, sampleRate, tuning))
	return b.(*mat.Dense)
}

func validate(signal models.AudioSignal) error {
	if len(signal.Samples) == 0 {
		return extractionError("cannot extract features", ErrEmptySignal)
	}
	if signal.SampleRate <= 0 {
		return extractionError(fmt.Sprintf("cannot extract features at %d Hz", signal.SampleRate), ErrInvalidSampleRate)
	}
	for i, x := range signal.Samples {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return extractionError(fmt.Sprintf("sample %d is not finite", i), nil)
		}
	}
	if isSilent(signal.Samples) {
		return extractionError("cannot extract features", ErrSilentSignal)
	}
	return nil
}

// Extract computes the feature vector of signal. It fails with an
// *ExtractionError for empty, silent or otherwise degenerate input and never
// returns a vector containing NaN or Inf.
func (e *Extractor) Extract(signal models.AudioSignal) (models.FeatureVector, error) {
	var vec models.FeatureVector
	if err := validate(signal); err != nil {
		return vec, err
	}
	banks := e.banksFor(signal.SampleRate)

	mag := magnitudeSpectrogram(signal.Samples)
	power := powerSpectrogram(mag)

	var mfcc mat.Dense
	mfcc.Mul(banks.dct, melDB(banks.mel, power))
	chroma := chromagram(e.chromaBank(power, signal.SampleRate), power)

	values := make([]float64, 0, models.FeatureCount)
	values = append(values, rowMeans(&mfcc)...)
	values = append(values, rowMeans(chroma)...)
	values = append(values,
		stat.Mean(zeroCrossingRates(signal.Samples), nil),
		stat.Mean(spectralCentroids(mag, banks.freqs), nil),
	)

	vec, err := models.FeatureVectorFromSlice(values)
	if err != nil {
		return vec, extractionError("invalid feature vector", err)
	}
	for i, x := range vec {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return vec, extractionError(fmt.Sprintf("feature slot %d is not finite", i), nil)
		}
	}
	return vec, nil
}

// MelSpectrogramDB returns the [NumMels x frames] log-mel spectrogram of
// signal in decibels, clipped to TopDB below its peak.
func (e *Extractor) MelSpectrogramDB(signal models.AudioSignal) (*mat.Dense, error) {
	if err := validate(signal); err != nil {
		return nil, err
	}
	banks := e.banksFor(signal.SampleRate)
	return melDB(banks.mel, powerSpectrogram(magnitudeSpectrogram(signal.Samples))), nil
}

func melDB(bank, power *mat.Dense) *mat.Dense {
	var mel mat.Dense
	mel.Mul(bank, power)
	mel.Apply(func(_, _ int, v float64) float64 {
		return 10 * math.Log10(math.Max(AminPower, v))
	}, &mel)

	floor := mat.Max(&mel) - TopDB
	mel.Apply(func(_, _ int, v float64) float64 {
		return math.Max(v, floor)
	}, &mel)
	return &mel
}

func chromagram(bank, power *mat.Dense) *mat.Dense {
	var chroma mat.Dense
	chroma.Mul(bank, power)

	rows, frames := chroma.Dims()
	for t := 0; t < frames; t++ {
		var peak float64
		for c := 0; c < rows; c++ {
			peak = math.Max(peak, math.Abs(chroma.At(c, t)))
		}
		if peak < tiny {
			continue
		}
		for c := 0; c < rows; c++ {
			chroma.Set(c, t, chroma.At(c, t)/peak)
		}
	}
	return &chroma
}

func spectralCentroids(mag *mat.Dense, freqs []float64) []float64 {
	bins, frames := mag.Dims()
	out := make([]float64, frames)
	for t := 0; t < frames; t++ {
		var total, weighted float64
		for k := 0; k < bins; k++ {
			m := mag.At(k, t)
			total += m
			weighted += m * freqs[k]
		}
		if total < tiny {
			continue
		}
		out[t] = weighted / total
	}
	return out
}

func rowMeans(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	means := make([]float64, rows)
	for i := range means {
		means[i] = stat.Mean(m.RawRowView(i), nil)
	}
	return means
}
