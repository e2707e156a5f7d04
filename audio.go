package lingolive

import (
	"encoding/base64"
	"encoding/binary"
	"time"
)

// EncodePCM16 converts normalized float32 samples in [-1, 1] to little-endian
// PCM16 bytes. Over-range input is clamped, not wrapped. Negative samples
// scale by 32768 and positive by 32767 so that -1.0 maps to 0x8000 and 1.0 to
// 0x7FFF. Pure, stateless, deterministic.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodeAudioData reverses the transport encoding of an inbound audio payload
// and returns the raw PCM16LE byte sequence. No resampling is performed.
func DecodeAudioData(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, NewDecodeError(len(b64), 0, err)
	}
	return raw, nil
}

// AudioBuffer is a decoded, playable audio buffer: normalized float32 samples
// per channel at a fixed sample rate.
type AudioBuffer struct {
	Channels   [][]float32
	SampleRate int
}

// Duration returns the playback duration of the buffer.
func (b *AudioBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 || len(b.Channels) == 0 {
		return 0
	}
	return time.Duration(len(b.Channels[0])) * time.Second / time.Duration(b.SampleRate)
}

// DecodePCM16 reinterprets raw PCM16LE bytes as normalized float samples per
// channel and constructs a buffer at the given sample rate. It fails with a
// DecodeError if the byte length is not a whole multiple of the frame size
// (2 bytes x channel count).
func DecodePCM16(data []byte, sampleRate, channels int) (*AudioBuffer, error) {
	if channels <= 0 {
		return nil, NewDecodeError(len(data), channels, nil)
	}
	frameSize := 2 * channels
	if len(data)%frameSize != 0 {
		return nil, NewDecodeError(len(data), channels, nil)
	}

	frames := len(data) / frameSize
	buf := &AudioBuffer{
		Channels:   make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			v := int16(binary.LittleEndian.Uint16(data[f*frameSize+ch*2:]))
			buf.Channels[ch][f] = float32(v) / 32768
		}
	}
	return buf, nil
}

// WAVFromPCM16Mono converts raw PCM16 audio data to a complete WAV file.
// Useful for saving a turn's synthesized audio to disk.
// The input should be 16-bit little-endian PCM data (mono channel).
func WAVFromPCM16Mono(pcm []byte, sampleRate int) []byte {
	blockAlign := uint16(2)
	byteRate := uint32(sampleRate) * uint32(blockAlign)
	dataLen := uint32(len(pcm))
	riffLen := 36 + dataLen
	out := make([]byte, 44+len(pcm))

	// RIFF header
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], riffLen)
	copy(out[8:], []byte("WAVE"))

	// Format chunk
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(out[20:], 1)  // audio format (PCM)
	binary.LittleEndian.PutUint16(out[22:], 1)  // num channels (mono)
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], byteRate)
	binary.LittleEndian.PutUint16(out[32:], blockAlign)
	binary.LittleEndian.PutUint16(out[34:], 16) // bits per sample

	// Data chunk
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], dataLen)
	copy(out[44:], pcm)
	return out
}

// PCM16BytesFor calculates the number of bytes needed for PCM16 mono audio of
// given duration. Formula: (milliseconds * sampleRate * 2 bytes per sample) / 1000
func PCM16BytesFor(ms int, sampleRate int) int { return (ms * sampleRate * 2) / 1000 }
