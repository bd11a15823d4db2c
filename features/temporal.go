package features

import "math"

// zeroCrossingRates returns, per centered frame, the fraction of samples whose
// sign differs from the previous sample. The signal is padded by repeating its
// edge samples so the first and last frames see no artificial crossings.
func zeroCrossingRates(samples []float64) []float64 {
	pad := FrameLength / 2
	n := len(samples)
	padded := make([]float64, n+2*pad)
	for i := range padded {
		j := i - pad
		switch {
		case j < 0:
			j = 0
		case j >= n:
			j = n - 1
		}
		padded[i] = samples[j]
	}

	negative := make([]bool, len(padded))
	for i, x := range padded {
		if math.Abs(x) <= ZeroThreshold {
			continue
		}
		negative[i] = math.Signbit(x)
	}

	frames := frameCount(n)
	rates := make([]float64, frames)
	for t := range rates {
		start := t * HopLength
		var crossings int
		for i := start + 1; i < start+FrameLength; i++ {
			if negative[i] != negative[i-1] {
				crossings++
			}
		}
		rates[t] = float64(crossings) / FrameLength
	}
	return rates
}

func isSilent(samples []float64) bool {
	for _, x := range samples {
		if math.Abs(x) > ZeroThreshold {
			return false
		}
	}
	return true
}
