package features

import (
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// Smallest normal float64. Columns whose norm is below it are left as is.
const tiny = 2.2250738585072014e-308

var (
	fftPool = sync.Pool{
		New: func() interface{} {
			return fourier.NewFFT(FrameLength)
		},
	}
	hannWindow = periodicHann(FrameLength)
)

// frameCount is the number of centered frames for a signal of n samples.
func frameCount(n int) int {
	return 1 + n/HopLength
}

// magnitudeSpectrogram computes |STFT| as a [bins x frames] matrix. Frames are
// centered: the signal is padded with FrameLength/2 zeros on each side.
func magnitudeSpectrogram(samples []float64) *mat.Dense {
	pad := FrameLength / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	frames := frameCount(len(samples))
	bins := FrameLength/2 + 1
	mag := mat.NewDense(bins, frames, nil)

	fft := fftPool.Get().(*fourier.FFT)
	defer fftPool.Put(fft)

	buf := make([]float64, FrameLength)
	coeffs := make([]complex128, bins)
	for t := 0; t < frames; t++ {
		start := t * HopLength
		for i := range buf {
			buf[i] = padded[start+i] * hannWindow[i]
		}
		coeffs = fft.Coefficients(coeffs, buf)
		for k := 0; k < bins; k++ {
			mag.Set(k, t, cmplx.Abs(coeffs[k]))
		}
	}
	return mag
}

func powerSpectrogram(mag *mat.Dense) *mat.Dense {
	var power mat.Dense
	power.MulElem(mag, mag)
	return &power
}
