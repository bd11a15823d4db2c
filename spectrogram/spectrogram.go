// Package spectrogram renders log-mel spectrograms of recordings as images.
package spectrogram

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/Tutortoise/voice-screening-service/features"
	"github.com/Tutortoise/voice-screening-service/models"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultWidth  = 512
	DefaultHeight = 256
)

// palette runs from quiet (dark purple) to loud (pale yellow).
var palette = []color.NRGBA{
	{R: 0, G: 0, B: 4, A: 255},
	{R: 81, G: 18, B: 124, A: 255},
	{R: 183, G: 55, B: 121, A: 255},
	{R: 252, G: 137, B: 97, A: 255},
	{R: 252, G: 253, B: 191, A: 255},
}

type Renderer struct {
	extractor *features.Extractor
	width     int
	height    int
}

// NewRenderer returns a Renderer producing width x height images. Non-positive
// sizes fall back to the defaults.
func NewRenderer(extractor *features.Extractor, width, height int) *Renderer {
	if extractor == nil {
		extractor = features.New()
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Renderer{extractor: extractor, width: width, height: height}
}

// Render draws the log-mel spectrogram of signal with low frequencies at the
// bottom and time running left to right.
func (r *Renderer) Render(signal models.AudioSignal) (image.Image, error) {
	db, err := r.extractor.MelSpectrogramDB(signal)
	if err != nil {
		return nil, err
	}
	img := colorize(db)
	img = imaging.FlipV(img)
	return imaging.Resize(img, r.width, r.height, imaging.Lanczos), nil
}

// WritePNG renders signal and encodes it to w.
func (r *Renderer) WritePNG(w io.Writer, signal models.AudioSignal) error {
	img, err := r.Render(signal)
	if err != nil {
		return err
	}
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("encoding spectrogram: %w", err)
	}
	return nil
}

// colorize maps a [bands x frames] dB matrix onto an image with one pixel per
// cell, band 0 in the top row.
func colorize(db *mat.Dense) *image.NRGBA {
	bands, frames := db.Dims()
	img := image.NewNRGBA(image.Rect(0, 0, frames, bands))

	hi, lo := mat.Max(db), mat.Min(db)
	span := hi - lo
	for b := 0; b < bands; b++ {
		for t := 0; t < frames; t++ {
			level := 0.0
			if span > 0 {
				level = (db.At(b, t) - lo) / span
			}
			img.SetNRGBA(t, b, shade(level))
		}
	}
	return img
}

// shade interpolates the palette at level in [0, 1].
func shade(level float64) color.NRGBA {
	if level <= 0 {
		return palette[0]
	}
	if level >= 1 {
		return palette[len(palette)-1]
	}
	pos := level * float64(len(palette)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := palette[i], palette[i+1]
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + frac*(float64(y)-float64(x)) + 0.5)
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}
