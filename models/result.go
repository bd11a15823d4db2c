package models

import "math"

const (
	LabelHealthy  = "Healthy"
	LabelAffected = "Parkinson's"
)

// ProbabilitySource tells whether a probability came from the model or was
// derived from the predicted label.
type ProbabilitySource string

const (
	// ProbabilityCalibrated is a value reported by the classifier itself.
	ProbabilityCalibrated ProbabilitySource = "calibrated"
	// ProbabilityLabelFallback is float(label) for labels 0 and 1, otherwise
	// 0.5. It is not a confidence estimate.
	ProbabilityLabelFallback ProbabilitySource = "label_fallback"
)

type Probability struct {
	Value  float64
	Source ProbabilitySource
}

func Calibrated(p float64) Probability {
	return Probability{Value: p, Source: ProbabilityCalibrated}
}

func FallbackApproximate(p float64) Probability {
	return Probability{Value: p, Source: ProbabilityLabelFallback}
}

func (p Probability) IsCalibrated() bool { return p.Source == ProbabilityCalibrated }

// FeatureBreakdown groups the feature vector by semantic category.
type FeatureBreakdown struct {
	MFCCs            [NumMFCC]float64   `json:"mfccs"`
	Chroma           [NumChroma]float64 `json:"chroma"`
	ZeroCrossingRate float64            `json:"zeroCrossingRate"`
	SpectralCentroid float64            `json:"spectralCentroid"`
}

// NewFeatureBreakdown splits v into its groups, rounding each value to 6
// decimals.
func NewFeatureBreakdown(v FeatureVector) FeatureBreakdown {
	var b FeatureBreakdown
	for i, x := range v.MFCC() {
		b.MFCCs[i] = Round(x, 6)
	}
	for i, x := range v.Chroma() {
		b.Chroma[i] = Round(x, 6)
	}
	b.ZeroCrossingRate = Round(v.ZeroCrossingRate(), 6)
	b.SpectralCentroid = Round(v.SpectralCentroid(), 6)
	return b
}

// Vector reassembles the breakdown into slot order.
func (b FeatureBreakdown) Vector() FeatureVector {
	var v FeatureVector
	copy(v[MFCCOffset:], b.MFCCs[:])
	copy(v[ChromaOffset:], b.Chroma[:])
	v[ZeroCrossingSlot] = b.ZeroCrossingRate
	v[SpectralCentroidSlot] = b.SpectralCentroid
	return v
}

type ClassificationResult struct {
	Prediction  string
	Label       int64
	Probability Probability
	Features    FeatureBreakdown
}

// Round rounds x to the given number of decimals. Exact halves of the scaled
// value go to the even neighbour, as numpy's round does.
func Round(x float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.RoundToEven(x*scale) / scale
}
