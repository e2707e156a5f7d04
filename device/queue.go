package device

import (
	"io"
	"sync"
	"time"
)

// segment is one scheduled run of PCM16LE bytes in the playback timeline.
type segment struct {
	data      []byte
	off       int
	cancelled bool
	onEnded   func()
}

// segmentQueue is the playback timeline behind a speaker context. It
// implements io.Reader for the audio backend: the backend pulls continuously,
// the queue serves scheduled segments in order and pads with silence when
// nothing is scheduled, so the playback clock keeps running like a real
// device clock. Cancelled segments are skipped without ever rewinding the
// clock.
type segmentQueue struct {
	mu             sync.Mutex
	bytesPerSecond int
	segments       []*segment
	readBytes      int64
	closed         bool
}

func newSegmentQueue(sampleRate int) *segmentQueue {
	return &segmentQueue{bytesPerSecond: sampleRate * 2}
}

// now returns the playback clock: the duration of everything handed to the
// backend so far, silence included.
func (q *segmentQueue) now() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.durationOf(q.readBytes)
}

func (q *segmentQueue) durationOf(n int64) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(q.bytesPerSecond)
}

// bytesAt converts a clock position to a frame-aligned byte offset.
func (q *segmentQueue) bytesAt(at time.Duration) int64 {
	n := int64(at) * int64(q.bytesPerSecond) / int64(time.Second)
	return n - n%2
}

// enqueueAt schedules pcm to start at clock position `at`. If `at` lies
// beyond the end of everything already scheduled, the gap is filled with
// silence; if it lies before, the data is appended immediately after the
// last scheduled segment (the queue never overwrites scheduled audio).
func (q *segmentQueue) enqueueAt(at time.Duration, pcm []byte, onEnded func()) *segment {
	q.mu.Lock()
	defer q.mu.Unlock()

	end := q.readBytes
	for _, s := range q.segments {
		if !s.cancelled {
			end += int64(len(s.data) - s.off)
		}
	}
	if want := q.bytesAt(at); want > end {
		q.segments = append(q.segments, &segment{data: make([]byte, want-end)})
	}

	seg := &segment{data: pcm, onEnded: onEnded}
	q.segments = append(q.segments, seg)
	return seg
}

// cancel force-stops a segment: any unplayed remainder is discarded and its
// onEnded callback will not fire.
func (q *segmentQueue) cancel(seg *segment) {
	q.mu.Lock()
	seg.cancelled = true
	q.mu.Unlock()
}

func (q *segmentQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.segments = nil
	q.mu.Unlock()
}

// Read serves the audio backend. It always fills p completely (padding with
// silence) so the clock advances at a steady rate, and returns io.EOF only
// after close.
func (q *segmentQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, io.EOF
	}

	var ended []func()
	n := 0
	for n < len(p) && len(q.segments) > 0 {
		head := q.segments[0]
		if head.cancelled || head.off >= len(head.data) {
			if !head.cancelled && head.onEnded != nil {
				ended = append(ended, head.onEnded)
			}
			q.segments = q.segments[1:]
			continue
		}
		c := copy(p[n:], head.data[head.off:])
		head.off += c
		n += c
		if head.off >= len(head.data) {
			if head.onEnded != nil {
				ended = append(ended, head.onEnded)
			}
			q.segments = q.segments[1:]
		}
	}
	// Nothing scheduled: keep the clock running on silence.
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	q.readBytes += int64(len(p))
	q.mu.Unlock()

	for _, fn := range ended {
		fn()
	}
	return len(p), nil
}
