package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Tutortoise/voice-screening-service/models"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

func decodeWAV(data []byte) (models.AudioSignal, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return models.AudioSignal{}, decodeError("invalid WAV file", nil)
	}

	encoding := int(decoder.WavAudioFormat)
	if encoding == wavFormatExtensible {
		sub, ok := extensibleSubFormat(data)
		if !ok {
			return models.AudioSignal{}, decodeError("cannot decode WAV",
				fmt.Errorf("%w: extensible header without sub-format", ErrUnsupportedFormat))
		}
		encoding = sub
	}
	if encoding != wavFormatPCM && encoding != wavFormatFloat {
		return models.AudioSignal{}, decodeError("cannot decode WAV",
			fmt.Errorf("%w: encoding %d (only PCM and IEEE float supported)", ErrUnsupportedFormat, encoding))
	}

	bitDepth := int(decoder.BitDepth)
	scale, err := sampleScale(encoding, bitDepth)
	if err != nil {
		return models.AudioSignal{}, decodeError("cannot decode WAV", err)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return models.AudioSignal{}, decodeError("reading WAV samples", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return models.AudioSignal{}, decodeError("cannot decode WAV", ErrNoAudio)
	}

	channels := int(decoder.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}

	return models.AudioSignal{
		Samples:    downmix(buf.Data, channels, scale),
		SampleRate: int(decoder.SampleRate),
	}, nil
}

// sampleScale maps a decoded integer sample to [-1, 1]. 32-bit float samples
// arrive as the int32 reading of their IEEE bits.
func sampleScale(encoding, bitDepth int) (func(int) float64, error) {
	if encoding == wavFormatFloat {
		if bitDepth != 32 {
			return nil, fmt.Errorf("%w: %d-bit float samples", ErrUnsupportedFormat, bitDepth)
		}
		return func(v int) float64 {
			return float64(math.Float32frombits(uint32(int32(v))))
		}, nil
	}

	switch bitDepth {
	case 8:
		return func(v int) float64 { return float64(v-128) / 128.0 }, nil
	case 16, 24, 32:
		full := float64(int64(1) << (bitDepth - 1))
		return func(v int) float64 { return float64(v) / full }, nil
	default:
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bitDepth)
	}
}

// extensibleSubFormat reads the format code from the SubFormat GUID of a
// WAVE_FORMAT_EXTENSIBLE fmt chunk.
func extensibleSubFormat(data []byte) (int, bool) {
	if len(data) < 12 {
		return 0, false
	}
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if id == "fmt " {
			if size < 40 || body+26 > len(data) {
				return 0, false
			}
			return int(binary.LittleEndian.Uint16(data[body+24 : body+26])), true
		}
		pos = body + size + size%2
	}
	return 0, false
}
