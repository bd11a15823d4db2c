package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestMelConversion(t *testing.T) {
	// Linear region: 200/3 Hz per mel.
	assert.InDelta(t, 3.0, hzToMel(200), 1e-12)
	assert.InDelta(t, 15.0, hzToMel(1000), 1e-12)

	for _, hz := range []float64{0, 60, 440, 1000, 4000, 11025} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-9, "hz %v", hz)
	}
}

func TestMelFilterBank(t *testing.T) {
	bank := melFilterBank(NumMels, FrameLength, 22050, 0, 11025)
	rows, cols := bank.Dims()
	require.Equal(t, NumMels, rows)
	require.Equal(t, FrameLength/2+1, cols)

	for m := 0; m < rows; m++ {
		var nonZero bool
		for k := 0; k < cols; k++ {
			w := bank.At(m, k)
			require.GreaterOrEqual(t, w, 0.0)
			nonZero = nonZero || w > 0
		}
		assert.True(t, nonZero, "filter %d is all zeros", m)
	}
}

func TestChromaFilterBank(t *testing.T) {
	bank := chromaFilterBank(7, FrameLength, 22050, 0)
	rows, cols := bank.Dims()
	require.Equal(t, 7, rows)
	require.Equal(t, FrameLength/2+1, cols)

	for c := 0; c < rows; c++ {
		for k := 0; k < cols; k++ {
			require.GreaterOrEqual(t, bank.At(c, k), 0.0)
		}
	}

	// The bin holding 440 Hz should favour the first pitch class.
	k := int(math.Round(440 * FrameLength / 22050.0))
	col := mat.Col(nil, k, bank)
	best := 0
	for c := range col {
		if col[c] > col[best] {
			best = c
		}
	}
	assert.Equal(t, 0, best)
}

func TestChromaFilterBankTuning(t *testing.T) {
	// Retuning by a full bin moves every filter up one pitch class. The
	// octave weighting moves too, so compare each column's shape.
	base := chromaFilterBank(7, FrameLength, 22050, 0)
	shifted := chromaFilterBank(7, FrameLength, 22050, 1)

	for _, k := range []int{40, 93, 150} {
		b, s := mat.Col(nil, k, base), mat.Col(nil, k, shifted)
		bSum, sSum := floats.Sum(b), floats.Sum(s)
		for c := 0; c < 7; c++ {
			assert.InDelta(t, b[c]/bSum, s[(c+6)%7]/sSum, 1e-9, "bin %d class %d", k, c)
		}
	}
}

func TestDCTMatrixOrthonormal(t *testing.T) {
	const n = 16
	d := dctMatrix(n, n)

	var prod mat.Dense
	prod.Mul(d, d.T())
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, prod.At(i, j), 1e-12, "(%d,%d)", i, j)
		}
	}
}

func TestPeriodicHann(t *testing.T) {
	w := periodicHann(8)
	assert.InDelta(t, 0, w[0], 1e-15)
	assert.InDelta(t, 1, w[4], 1e-15)
	assert.InDelta(t, w[1], w[7], 1e-15)
}

func TestFloorMod(t *testing.T) {
	assert.InDelta(t, 2.0, floorMod(-5, 7), 1e-12)
	assert.InDelta(t, 5.0, floorMod(5, 7), 1e-12)
	assert.InDelta(t, 0.5, floorMod(7.5, 7), 1e-12)
}
