package models

import "fmt"

// Slot layout of a FeatureVector. The classifier was trained on exactly this
// order.
const (
	NumMFCC   = 13
	NumChroma = 7

	MFCCOffset           = 0
	ChromaOffset         = MFCCOffset + NumMFCC
	ZeroCrossingSlot     = ChromaOffset + NumChroma
	SpectralCentroidSlot = ZeroCrossingSlot + 1

	FeatureCount = SpectralCentroidSlot + 1
)

// FeatureVector is the fixed 22 slot summary of a recording.
type FeatureVector [FeatureCount]float64

// LengthError reports a feature sequence that does not have FeatureCount values.
type LengthError struct {
	Got int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("feature extraction resulted in %d features, expected %d", e.Got, FeatureCount)
}

// FeatureVectorFromSlice copies values into a FeatureVector. It never pads or
// truncates: any other length is an error.
func FeatureVectorFromSlice(values []float64) (FeatureVector, error) {
	var v FeatureVector
	if len(values) != FeatureCount {
		return v, &LengthError{Got: len(values)}
	}
	copy(v[:], values)
	return v, nil
}

func (v FeatureVector) MFCC() [NumMFCC]float64 {
	var out [NumMFCC]float64
	copy(out[:], v[MFCCOffset:MFCCOffset+NumMFCC])
	return out
}

func (v FeatureVector) Chroma() [NumChroma]float64 {
	var out [NumChroma]float64
	copy(out[:], v[ChromaOffset:ChromaOffset+NumChroma])
	return out
}

func (v FeatureVector) ZeroCrossingRate() float64 { return v[ZeroCrossingSlot] }

func (v FeatureVector) SpectralCentroid() float64 { return v[SpectralCentroidSlot] }

// Float32 converts the vector to the element type expected by ONNX graphs.
func (v FeatureVector) Float32() []float32 {
	out := make([]float32, FeatureCount)
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
