package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Pitch tracking limits used when estimating tuning.
const (
	PitchMinHz     = 150.0
	PitchMaxHz     = 4000.0
	PitchThreshold = 0.1

	// TuningResolution is the histogram step of the tuning estimate, in
	// fractions of a chroma bin.
	TuningResolution = 0.01
)

// estimateTuning returns the offset, in fractions of a chroma bin within
// [-0.5, 0.5), of the spectrum's peaks from the A440 grid with binsPerOctave
// bins per octave. Peaks are picked per frame by parabolic interpolation and
// only those at least as strong as the median peak vote. No peaks means no
// offset.
func estimateTuning(power *mat.Dense, sampleRate, binsPerOctave int) float64 {
	pitches, mags := pickPeaks(power, sampleRate)
	if len(pitches) == 0 {
		return 0
	}

	sorted := append([]float64(nil), mags...)
	sort.Float64s(sorted)
	threshold := median(sorted)

	strong := make([]float64, 0, len(pitches))
	for i, p := range pitches {
		if mags[i] >= threshold {
			strong = append(strong, p)
		}
	}
	return pitchTuning(strong, binsPerOctave)
}

// pickPeaks returns the interpolated frequency and magnitude of every local
// spectral maximum in [PitchMinHz, PitchMaxHz) that exceeds PitchThreshold
// times its frame's peak.
func pickPeaks(power *mat.Dense, sampleRate int) (pitches, mags []float64) {
	raw := power.RawMatrix()
	bins, frames := raw.Rows, raw.Cols
	if bins < 3 {
		return nil, nil
	}
	nfft := 2 * (bins - 1)
	binHz := float64(sampleRate) / float64(nfft)
	fmax := math.Min(PitchMaxHz, float64(sampleRate)/2)

	at := func(k, t int) float64 { return raw.Data[k*raw.Stride+t] }

	for t := 0; t < frames; t++ {
		var peak float64
		for k := 0; k < bins; k++ {
			peak = math.Max(peak, at(k, t))
		}
		ref := PitchThreshold * peak
		gated := func(k int) float64 {
			if v := at(k, t); v > ref {
				return v
			}
			return 0
		}

		for k := 1; k < bins-1; k++ {
			f := float64(k) * binHz
			if f < PitchMinHz || f >= fmax {
				continue
			}
			prev, cur, next := gated(k-1), gated(k), gated(k+1)
			if !(cur > prev && cur >= next) {
				continue
			}

			s0, s1, s2 := at(k-1, t), at(k, t), at(k+1, t)
			a := s2 + s0 - 2*s1
			b := (s2 - s0) / 2
			var shift float64
			if math.Abs(b) < math.Abs(a) {
				shift = -b / a
			}
			pitches = append(pitches, (float64(k)+shift)*binHz)
			mags = append(mags, s1+0.5*b*shift)
		}
	}
	return pitches, mags
}

// pitchTuning histograms the distance of each frequency from the nearest bin
// of the binsPerOctave grid and returns the lower edge of the fullest
// histogram cell.
func pitchTuning(frequencies []float64, binsPerOctave int) float64 {
	cells := int(math.Ceil(1 / TuningResolution))
	edges := make([]float64, cells+1)
	for i := range edges {
		edges[i] = -0.5 + float64(i)*TuningResolution
	}

	counts := make([]int, cells)
	var voted bool
	for _, f := range frequencies {
		if f <= 0 {
			continue
		}
		residual := floorMod(float64(binsPerOctave)*math.Log2(f/(440.0/16)), 1)
		if residual >= 0.5 {
			residual--
		}
		counts[histogramCell(edges, residual)]++
		voted = true
	}
	if !voted {
		return 0
	}

	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return edges[best]
}

// histogramCell finds the half-open cell [edges[i], edges[i+1]) holding x.
// The last cell also holds its upper edge.
func histogramCell(edges []float64, x float64) int {
	cells := len(edges) - 1
	i := int((x - edges[0]) / (edges[cells] - edges[0]) * float64(cells))
	i = max(0, min(cells-1, i))
	if x < edges[i] && i > 0 {
		i--
	} else if i < cells-1 && x >= edges[i+1] {
		i++
	}
	return i
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// tuningKey identifies a tuning estimate by its histogram cell.
func tuningKey(tuning float64) int {
	return int(math.Round(tuning / TuningResolution))
}
