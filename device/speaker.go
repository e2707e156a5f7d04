package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	lingolive "github.com/lingolive/lingolive"
)

// oto permits exactly one context per process, so it is shared across
// successive sessions; each Speaker gets its own player and timeline.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		opts := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			// Small buffer keeps barge-in cutoff snappy at the cost of a
			// little underrun headroom.
			BufferSize: 100 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(opts)
		if otoErr == nil {
			<-ready
		}
		otoRate = sampleRate
	})
	if otoErr != nil {
		return nil, fmt.Errorf("init playback context: %w", otoErr)
	}
	if sampleRate != otoRate {
		return nil, fmt.Errorf("playback context already open at %d Hz, cannot reopen at %d Hz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// Speaker is an oto playback device context. Scheduled buffers are pulled by
// the backend through the segment queue; the queue's read position is the
// context's playback clock.
type Speaker struct {
	ctx       *oto.Context
	player    *oto.Player
	queue     *segmentQueue
	closeOnce sync.Once
}

func openSpeaker(sampleRate int) (*Speaker, error) {
	ctx, err := sharedOtoContext(sampleRate)
	if err != nil {
		return nil, err
	}

	s := &Speaker{ctx: ctx, queue: newSegmentQueue(sampleRate)}
	s.player = ctx.NewPlayer(s.queue)
	s.player.Play()
	return s, nil
}

// Now returns the current position of the playback clock.
func (s *Speaker) Now() time.Duration {
	return s.queue.now()
}

// Play schedules a decoded buffer to start at the given clock position.
// Multi-channel buffers are downmixed to the first channel; the wire protocol
// only carries mono.
func (s *Speaker) Play(buf *lingolive.AudioBuffer, at time.Duration, onEnded func()) (lingolive.PlaybackHandle, error) {
	if buf == nil || len(buf.Channels) == 0 {
		return nil, fmt.Errorf("empty audio buffer")
	}
	pcm := lingolive.EncodePCM16(buf.Channels[0])
	seg := s.queue.enqueueAt(at, pcm, onEnded)
	return &speakerHandle{queue: s.queue, seg: seg}, nil
}

// Close releases the context. Scheduled audio is discarded. Safe to call
// multiple times.
func (s *Speaker) Close() error {
	s.closeOnce.Do(func() {
		s.queue.close()
		if s.player != nil {
			_ = s.player.Close()
		}
	})
	return nil
}

// speakerHandle is one scheduled buffer source.
type speakerHandle struct {
	queue *segmentQueue
	seg   *segment
}

// Stop force-stops the buffer immediately, discarding unplayed audio.
func (h *speakerHandle) Stop() {
	h.queue.cancel(h.seg)
}
