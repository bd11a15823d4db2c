// Package audio decodes uploaded recordings into mono sample sequences.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tutortoise/voice-screening-service/models"
)

// Format identifies a supported container.
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// FormatFromFilename maps a file extension to a Format. Matching is case
// insensitive.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch Format(ext) {
	case FormatWAV, FormatMP3:
		return Format(ext), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Allowed reports whether name carries a supported extension.
func Allowed(name string) bool {
	_, err := FormatFromFilename(name)
	return err == nil
}

// Decode decodes data according to the extension of filename. Multi-channel
// audio is averaged down to mono and samples are scaled to [-1, 1]. The native
// sample rate is kept.
func Decode(data []byte, filename string) (models.AudioSignal, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return models.AudioSignal{}, decodeError("cannot decode "+filepath.Base(filename), err)
	}
	return DecodeFormat(data, format)
}

func DecodeFormat(data []byte, format Format) (models.AudioSignal, error) {
	if len(data) == 0 {
		return models.AudioSignal{}, decodeError("cannot decode "+string(format), ErrNoAudio)
	}

	switch format {
	case FormatWAV:
		return decodeWAV(data)
	case FormatMP3:
		return decodeMP3(data)
	default:
		return models.AudioSignal{}, decodeError("cannot decode", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format))
	}
}

// DecodeFile reads and decodes the file at path.
func DecodeFile(path string) (models.AudioSignal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.AudioSignal{}, decodeError("reading "+path, err)
	}
	return Decode(data, path)
}

// downmix averages interleaved integer frames into mono floats.
func downmix(data []int, channels int, scale func(int) float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frames := len(data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += scale(data[i*channels+ch])
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// CheckDuration rejects a signal longer than limit. A non-positive limit
// allows any length.
func CheckDuration(signal models.AudioSignal, limit time.Duration) error {
	if limit <= 0 {
		return nil
	}
	if d := signal.Duration(); d > limit {
		return decodeError("cannot analyze recording",
			fmt.Errorf("%w: %s > %s", ErrTooLong, d.Round(time.Millisecond), limit))
	}
	return nil
}
