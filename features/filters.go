package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melLinearStep = 200.0 / 3
	melLogMinHz   = 1000.0
	melLogMin     = melLogMinHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz >= melLogMinHz {
		return melLogMin + math.Log(hz/melLogMinHz)/melLogStep
	}
	return hz / melLinearStep
}

func melToHz(mel float64) float64 {
	if mel >= melLogMin {
		return melLogMinHz * math.Exp(melLogStep*(mel-melLogMin))
	}
	return mel * melLinearStep
}

// fftFrequencies returns the center frequency of each non-negative FFT bin.
func fftFrequencies(sampleRate, nfft int) []float64 {
	bins := nfft/2 + 1
	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(nfft)
	}
	return freqs
}

// melFilterBank builds a [numMels x nfft/2+1] matrix of triangular filters
// with Slaney area normalization.
func melFilterBank(numMels, nfft, sampleRate int, fmin, fmax float64) *mat.Dense {
	fftFreqs := fftFrequencies(sampleRate, nfft)

	minMel := hzToMel(fmin)
	maxMel := hzToMel(fmax)
	melF := make([]float64, numMels+2)
	for i := range melF {
		mel := minMel + float64(i)*(maxMel-minMel)/float64(numMels+1)
		melF[i] = melToHz(mel)
	}

	bank := mat.NewDense(numMels, len(fftFreqs), nil)
	for m := 0; m < numMels; m++ {
		lowerWidth := melF[m+1] - melF[m]
		upperWidth := melF[m+2] - melF[m+1]
		enorm := 2.0 / (melF[m+2] - melF[m])
		for k, f := range fftFreqs {
			lower := (f - melF[m]) / lowerWidth
			upper := (melF[m+2] - f) / upperWidth
			w := math.Max(0, math.Min(lower, upper))
			bank.Set(m, k, w*enorm)
		}
	}
	return bank
}

// chromaFilterBank builds a [numChroma x nfft/2+1] matrix mapping FFT bins to
// pitch classes. Each bin contributes a Gaussian bump centred on its position
// in octave space, columns are L2 normalized and then weighted by a Gaussian
// over octaves centred on ChromaCenterOctave. tuning shifts the reference A
// by that fraction of a chroma bin.
func chromaFilterBank(numChroma, nfft, sampleRate int, tuning float64) *mat.Dense {
	nc := float64(numChroma)
	a440 := 440.0 * math.Pow(2, tuning/nc)

	frqbins := make([]float64, nfft)
	for k := 1; k < nfft; k++ {
		f := float64(k) * float64(sampleRate) / float64(nfft)
		frqbins[k] = nc * math.Log2(f/(a440/16))
	}
	frqbins[0] = frqbins[1] - 1.5*nc

	binWidth := make([]float64, nfft)
	for j := 0; j < nfft-1; j++ {
		binWidth[j] = math.Max(frqbins[j+1]-frqbins[j], 1.0)
	}
	binWidth[nfft-1] = 1

	half := math.RoundToEven(nc / 2)
	wts := make([][]float64, numChroma)
	for c := range wts {
		wts[c] = make([]float64, nfft)
		for j := 0; j < nfft; j++ {
			d := floorMod(frqbins[j]-float64(c)+half+10*nc, nc) - half
			x := 2 * d / binWidth[j]
			wts[c][j] = math.Exp(-0.5 * x * x)
		}
	}

	for j := 0; j < nfft; j++ {
		var norm float64
		for c := range wts {
			norm += wts[c][j] * wts[c][j]
		}
		norm = math.Sqrt(norm)
		if norm < tiny {
			continue
		}
		octave := (frqbins[j]/nc - ChromaCenterOctave) / ChromaOctaveWidth
		weight := math.Exp(-0.5 * octave * octave)
		for c := range wts {
			wts[c][j] = wts[c][j] / norm * weight
		}
	}

	// Rotate so that bin 0 is C. For fewer than 12 bins the shift is zero.
	shift := 3 * (numChroma / 12)

	bins := nfft/2 + 1
	bank := mat.NewDense(numChroma, bins, nil)
	for c := 0; c < numChroma; c++ {
		src := wts[(c+shift)%numChroma]
		for j := 0; j < bins; j++ {
			bank.Set(c, j, src[j])
		}
	}
	return bank
}

// dctMatrix returns the first n rows of an orthonormal DCT-II basis of size
// size.
func dctMatrix(n, size int) *mat.Dense {
	m := mat.NewDense(n, size, nil)
	for k := 0; k < n; k++ {
		scale := math.Sqrt(1 / (2 * float64(size)))
		if k == 0 {
			scale = math.Sqrt(1 / (4 * float64(size)))
		}
		for i := 0; i < size; i++ {
			m.Set(k, i, 2*scale*math.Cos(math.Pi*float64(k)*float64(2*i+1)/float64(2*size)))
		}
	}
	return m
}

// floorMod returns x mod m with the sign of m.
func floorMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// periodicHann returns a Hann window suitable for FFT analysis.
func periodicHann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
