// Package audiotest provides synthetic recordings for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tutortoise/voice-screening-service/models"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Sine returns a unit amplitude sine wave.
func Sine(freq float64, sampleRate int, seconds float64) models.AudioSignal {
	n := int(seconds * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return models.AudioSignal{Samples: samples, SampleRate: sampleRate}
}

// WAV encodes interleaved channels as 16-bit PCM and returns the file bytes.
// Every channel must have the same length.
func WAV(t testing.TB, sampleRate int, channels ...[]float64) []byte {
	t.Helper()
	return encode(t, sampleRate, 16, 1, interleave(t, channels, func(v float64) int {
		return int(math.Round(v * 32767))
	}), len(channels))
}

// FloatWAV encodes a mono signal as 32-bit IEEE float samples.
func FloatWAV(t testing.TB, sampleRate int, samples []float64) []byte {
	t.Helper()
	return encode(t, sampleRate, 32, 3, interleave(t, [][]float64{samples}, func(v float64) int {
		return int(int32(math.Float32bits(float32(v))))
	}), 1)
}

// ExtensibleWAV writes a mono 16-bit PCM file with a WAVE_FORMAT_EXTENSIBLE
// fmt chunk.
func ExtensibleWAV(sampleRate int, samples []float64) []byte {
	var pcm bytes.Buffer
	for _, v := range samples {
		v = math.Max(-1, math.Min(1, v))
		_ = binary.Write(&pcm, binary.LittleEndian, int16(math.Round(v*32767)))
	}

	var out bytes.Buffer
	le := func(v any) { _ = binary.Write(&out, binary.LittleEndian, v) }
	out.WriteString("RIFF")
	le(uint32(4 + 8 + 40 + 8 + pcm.Len()))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	le(uint32(40))
	le(uint16(0xFFFE))
	le(uint16(1))
	le(uint32(sampleRate))
	le(uint32(sampleRate * 2))
	le(uint16(2))
	le(uint16(16))
	le(uint16(22))
	le(uint16(16))
	le(uint32(4))
	// KSDATAFORMAT_SUBTYPE_PCM
	le(uint16(1))
	out.Write([]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71})
	out.WriteString("data")
	le(uint32(pcm.Len()))
	out.Write(pcm.Bytes())
	return out.Bytes()
}

func interleave(t testing.TB, channels [][]float64, quantize func(float64) int) []int {
	t.Helper()
	if len(channels) == 0 {
		t.Fatal("audiotest: no channels")
	}

	frames := len(channels[0])
	data := make([]int, 0, frames*len(channels))
	for i := 0; i < frames; i++ {
		for _, ch := range channels {
			data = append(data, quantize(math.Max(-1, math.Min(1, ch[i]))))
		}
	}
	return data
}

func encode(t testing.TB, sampleRate, bitDepth, audioFormat int, data []int, channels int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("audiotest: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, audioFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("audiotest: writing wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("audiotest: closing wav: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("audiotest: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("audiotest: %v", err)
	}
	return out
}

// SineWAV is WAV of a mono Sine.
func SineWAV(t testing.TB, freq float64, sampleRate int, seconds float64) []byte {
	t.Helper()
	return WAV(t, sampleRate, Sine(freq, sampleRate, seconds).Samples)
}
