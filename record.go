package lingolive

import (
	"sync"
	"time"
)

// RecordingProvider wraps another DeviceProvider and keeps a PCM16 copy of
// every buffer scheduled for playback, so the partner's side of a practice
// session can be saved and reviewed afterwards. Gaps in the playback timeline
// are padded with silence, preserving the pacing of the conversation. Capture
// passes through untouched.
type RecordingProvider struct {
	inner DeviceProvider

	mu   sync.Mutex
	rate int
	pcm  []byte
}

// NewRecordingProvider wraps the given provider. One recording spans the
// provider's whole lifetime: successive sessions append to the same timeline.
func NewRecordingProvider(inner DeviceProvider) *RecordingProvider {
	return &RecordingProvider{inner: inner}
}

// OpenCapture delegates to the wrapped provider.
func (r *RecordingProvider) OpenCapture(sampleRate, windowSize int) (CaptureSource, error) {
	return r.inner.OpenCapture(sampleRate, windowSize)
}

// OpenPlayback opens the wrapped playback context and tees everything
// scheduled on it into the recording.
func (r *RecordingProvider) OpenPlayback(sampleRate int) (PlaybackContext, error) {
	pb, err := r.inner.OpenPlayback(sampleRate)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.rate = sampleRate
	r.mu.Unlock()
	return &recordingPlayback{inner: pb, rec: r, rate: sampleRate}, nil
}

// WAV returns everything recorded so far as a complete WAV file.
func (r *RecordingProvider) WAV() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	rate := r.rate
	if rate == 0 {
		rate = PlaybackSampleRate
	}
	return WAVFromPCM16Mono(append([]byte(nil), r.pcm...), rate)
}

// Len returns the number of recorded PCM16 bytes, silence padding included.
func (r *RecordingProvider) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pcm)
}

func (r *RecordingProvider) append(b []byte) {
	r.mu.Lock()
	r.pcm = append(r.pcm, b...)
	r.mu.Unlock()
}

// recordingPlayback mirrors one playback context's schedule into the
// recording. end tracks the timeline position of the last recorded byte so
// that schedule-ahead gaps become silence of the same length.
type recordingPlayback struct {
	inner PlaybackContext
	rec   *RecordingProvider
	rate  int

	mu  sync.Mutex
	end time.Duration
}

func (p *recordingPlayback) Now() time.Duration { return p.inner.Now() }

func (p *recordingPlayback) Play(buf *AudioBuffer, at time.Duration, onEnded func()) (PlaybackHandle, error) {
	h, err := p.inner.Play(buf, at, onEnded)
	if err != nil {
		return nil, err
	}
	if buf == nil || len(buf.Channels) == 0 {
		return h, nil
	}
	p.mu.Lock()
	if at > p.end {
		gap := at - p.end
		p.rec.append(make([]byte, PCM16BytesFor(int(gap/time.Millisecond), p.rate)))
		p.end = at
	}
	p.rec.append(EncodePCM16(buf.Channels[0]))
	p.end += buf.Duration()
	p.mu.Unlock()
	return h, nil
}

func (p *recordingPlayback) Close() error { return p.inner.Close() }
