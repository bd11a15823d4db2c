package classifier

import (
	"fmt"
	"math"
	"os"

	"github.com/Tutortoise/voice-screening-service/models"
	"gopkg.in/yaml.v3"
)

// Scaler standardizes feature vectors the way the model's training pipeline
// did: (x - mean) / scale per slot. A zero scale is treated as one.
type Scaler struct {
	Mean  []float64 `yaml:"mean"`
	Scale []float64 `yaml:"scale"`
}

// LoadScaler reads a YAML scaler file with "mean" and "scale" lists of
// FeatureCount values each.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scaler: %w", err)
	}
	return ParseScaler(data)
}

func ParseScaler(data []byte) (*Scaler, error) {
	var s Scaler
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scaler: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scaler) validate() error {
	if len(s.Mean) != models.FeatureCount {
		return fmt.Errorf("scaler mean has %d values, expected %d", len(s.Mean), models.FeatureCount)
	}
	if len(s.Scale) != models.FeatureCount {
		return fmt.Errorf("scaler scale has %d values, expected %d", len(s.Scale), models.FeatureCount)
	}
	for i := 0; i < models.FeatureCount; i++ {
		if !finite(s.Mean[i]) || !finite(s.Scale[i]) {
			return fmt.Errorf("scaler slot %d is not finite", i)
		}
	}
	return nil
}

// Transform returns the standardized copy of v. A nil Scaler is the identity.
func (s *Scaler) Transform(v models.FeatureVector) (models.FeatureVector, error) {
	if s == nil {
		return v, nil
	}
	var out models.FeatureVector
	for i, x := range v {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (x - s.Mean[i]) / scale
		if !finite(out[i]) {
			return out, &PredictionError{Message: fmt.Sprintf("scaled feature slot %d is not finite", i)}
		}
	}
	return out, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
