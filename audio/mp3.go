package audio

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/Tutortoise/voice-screening-service/models"
	"github.com/hajimehoshi/go-mp3"
)

// The decoder always emits signed 16-bit little-endian stereo.
const (
	mp3Channels      = 2
	mp3BytesPerFrame = 2 * mp3Channels
)

func decodeMP3(data []byte) (models.AudioSignal, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return models.AudioSignal{}, decodeError("creating MP3 decoder", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return models.AudioSignal{}, decodeError("decoding MP3", err)
	}
	if len(pcm) < mp3BytesPerFrame {
		return models.AudioSignal{}, decodeError("decoding MP3", ErrNoAudio)
	}

	ints := make([]int, len(pcm)/2)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	return models.AudioSignal{
		Samples:    downmix(ints, mp3Channels, func(v int) float64 { return float64(v) / 32768.0 }),
		SampleRate: decoder.SampleRate(),
	}, nil
}
