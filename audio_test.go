package lingolive

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestEncodePCM16(t *testing.T) {
	// Asymmetric scaling: negative full-scale hits 0x8000, positive 0x7FFF,
	// and over-range input clamps instead of wrapping.
	got := EncodePCM16([]float32{0.5, -1.0, 1.5})
	want := []byte{0xFF, 0x3F, 0x00, 0x80, 0xFF, 0x7F}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodePCM16 = % X, want % X", got, want)
	}
}

func TestEncodePCM16_Silence(t *testing.T) {
	got := EncodePCM16([]float32{0, 0, 0})
	if !bytes.Equal(got, []byte{0, 0, 0, 0, 0, 0}) {
		t.Errorf("silence encoded as % X", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.999, -0.999}
	buf, err := DecodePCM16(EncodePCM16(in), PlaybackSampleRate, 1)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if len(buf.Channels) != 1 || len(buf.Channels[0]) != len(in) {
		t.Fatalf("decoded shape %dx%d", len(buf.Channels), len(buf.Channels[0]))
	}
	for i, want := range in {
		got := buf.Channels[0][i]
		if diff := got - want; diff > 0.001 || diff < -0.001 {
			t.Errorf("sample %d: got %f, want %f", i, got, want)
		}
	}
}

func TestDecodePCM16_MisalignedInput(t *testing.T) {
	_, err := DecodePCM16([]byte{0x00, 0x01, 0x02}, PlaybackSampleRate, 1)
	if err == nil {
		t.Fatal("expected error for odd byte length")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %T, want *DecodeError", err)
	}
	if !errors.Is(err, ErrDecode) {
		t.Error("DecodeError does not match ErrDecode")
	}
}

func TestDecodePCM16_Stereo(t *testing.T) {
	// Two frames, interleaved L/R.
	data := EncodePCM16([]float32{0.5, -0.5, 0.25, -0.25})
	buf, err := DecodePCM16(data, 48000, 2)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if len(buf.Channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(buf.Channels))
	}
	if buf.Channels[0][0] <= 0 || buf.Channels[1][0] >= 0 {
		t.Errorf("channels not de-interleaved: L=%v R=%v", buf.Channels[0], buf.Channels[1])
	}
}

func TestAudioBufferDuration(t *testing.T) {
	buf := &AudioBuffer{Channels: [][]float32{make([]float32, 24000)}, SampleRate: 24000}
	if got := buf.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}

	var nilBuf *AudioBuffer
	if nilBuf.Duration() != 0 {
		t.Error("nil buffer has non-zero duration")
	}
	if (&AudioBuffer{SampleRate: 24000}).Duration() != 0 {
		t.Error("empty buffer has non-zero duration")
	}
}

func TestDecodeAudioData(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04}
	got, err := DecodeAudioData(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("DecodeAudioData: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("got % X, want % X", got, raw)
	}

	_, err = DecodeAudioData("not base64!!!")
	if err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if !errors.Is(err, ErrDecode) {
		t.Error("base64 failure does not match ErrDecode")
	}
}

func TestPCM16BytesFor(t *testing.T) {
	tests := []struct {
		name string
		ms   int
		rate int
		want int
	}{
		{"200ms at 24kHz", 200, 24000, 9600},
		{"1s at 16kHz", 1000, 16000, 32000},
		{"zero duration", 0, 24000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PCM16BytesFor(tt.ms, tt.rate); got != tt.want {
				t.Errorf("PCM16BytesFor(%d, %d) = %d, want %d", tt.ms, tt.rate, got, tt.want)
			}
		})
	}
}

func TestWAVFromPCM16Mono(t *testing.T) {
	pcm := []byte{0x00, 0x01, 0xFF, 0xFE} // two LE samples
	wav := WAVFromPCM16Mono(pcm, 24000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	chunks := map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"}
	for off, tag := range chunks {
		if string(wav[off:off+4]) != tag {
			t.Errorf("missing %q chunk at offset %d", tag, off)
		}
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("pcm payload not appended after the header")
	}
	// Mono 16-bit at 24kHz: byte rate field is rate*2.
	if got := uint32(wav[28]) | uint32(wav[29])<<8 | uint32(wav[30])<<16 | uint32(wav[31])<<24; got != 48000 {
		t.Errorf("byte rate = %d, want 48000", got)
	}
}

func TestWAVFromPCM16Mono_EmptyData(t *testing.T) {
	// An empty payload still yields a complete 44-byte header.
	if wav := WAVFromPCM16Mono(nil, 24000); len(wav) != 44 {
		t.Errorf("wav length = %d, want 44", len(wav))
	}
}

func BenchmarkEncodePCM16(b *testing.B) {
	samples := make([]float32, CaptureWindowSize)
	for i := range samples {
		samples[i] = float32(i%200-100) / 100
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = EncodePCM16(samples)
	}
}

func BenchmarkWAVFromPCM16Mono(b *testing.B) {
	pcmData := make([]byte, 9600) // 200ms at 24kHz

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = WAVFromPCM16Mono(pcmData, 24000)
	}
}
