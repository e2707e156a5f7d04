package lingolive

import (
	"net/http"
	"time"
)

// Credential represents an authentication method for the dialogue service.
// Implementations must apply the appropriate authentication headers to the
// WebSocket handshake request.
type Credential interface{ apply(h http.Header) }

// APIKey implements Credential using api-key header authentication.
// This is the most common authentication method for the dialogue service.
type APIKey string

// apply adds the API key to the request headers using the "x-api-key" header.
func (k APIKey) apply(h http.Header) {
	if k != "" {
		h.Set("x-api-key", string(k))
	}
}

// Bearer implements Credential using OAuth2 Bearer token authentication.
// Use this when authenticating with short-lived access tokens.
type Bearer string

// apply adds the Bearer token to the Authorization header.
func (b Bearer) apply(h http.Header) {
	if b != "" {
		h.Set("Authorization", "Bearer "+string(b))
	}
}

// Default sample rates for the wire protocol. The service expects input audio
// at 16kHz mono PCM16 and produces output audio at 24kHz mono PCM16.
const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
)

// CaptureWindowSize is the number of samples in one capture processing
// window. Each window is encoded and sent as one outbound audio frame.
const CaptureWindowSize = 4096

// DefaultResumableCloseCodes are the WebSocket close codes treated as a
// server-imposed session-duration limit rather than a genuine failure.
// A close with one of these codes while the session is live maps to
// StatusReconnecting so the caller can immediately reconnect with history.
var DefaultResumableCloseCodes = []int{1001, 1006, 1011}

// Config holds all configuration options for creating a session Manager.
// All fields marked as required must be provided.
type Config struct {
	// Endpoint is the base URL of the dialogue service.
	// Format: https://{host} (https becomes wss, http becomes ws for testing).
	// Required: Yes
	Endpoint string

	// Model is the dialogue model to request for the session.
	// Required: Yes
	Model string

	// Credential provides authentication for the stream handshake.
	// Use APIKey for key-based auth or Bearer for token-based auth.
	// Required: Yes
	Credential Credential

	// Devices opens the audio device contexts for capture and playback.
	// Use device.Provider for real hardware. Required: Yes
	Devices DeviceProvider

	// DialTimeout sets the maximum time to wait for the stream handshake,
	// including the session.ready acknowledgement. If zero, a 15 second
	// default is applied.
	// Required: No
	DialTimeout time.Duration

	// HandshakeHeaders allows adding custom headers to the WebSocket
	// handshake request (proxy auth, tracing headers, etc.).
	// Required: No
	HandshakeHeaders http.Header

	// ResumableCloseCodes overrides the close codes classified as a
	// server-imposed duration limit. If nil, DefaultResumableCloseCodes is
	// used. The heuristic can misclassify genuine network failures, so it is
	// configurable rather than hard-coded.
	// Required: No
	ResumableCloseCodes []int

	// KeepAliveInterval enables the capture-context keep-alive: while the
	// capture device context is suspended by platform power management, a
	// periodic timer resumes it. Zero disables the timer.
	// Required: No
	KeepAliveInterval time.Duration

	// Logger is called for significant events and can be used for debugging
	// and monitoring. Events include: ws_connected, frame_dropped,
	// bad_frame_json, and other operational events.
	// Required: No (if nil, no logging occurs)
	Logger func(event string, fields map[string]any)

	// StructuredLogger provides leveled structured logging. If both Logger
	// and StructuredLogger are provided, StructuredLogger takes precedence.
	// Use NewLogger() or NewLoggerFromEnv() to create one.
	// Required: No
	StructuredLogger *Logger
}

// resumableCodes returns the effective resumable close code whitelist.
func (c Config) resumableCodes() []int {
	if c.ResumableCloseCodes != nil {
		return c.ResumableCloseCodes
	}
	return DefaultResumableCloseCodes
}

// DeviceProvider opens the audio device contexts a session needs. The
// manager opens one capture context at 16kHz and one playback context at
// 24kHz during Connect and closes both during StopAll.
type DeviceProvider interface {
	OpenCapture(sampleRate, windowSize int) (CaptureSource, error)
	OpenPlayback(sampleRate int) (PlaybackContext, error)
}

// CaptureSource is an open microphone context delivering fixed-size windows
// of normalized float32 samples in [-1, 1].
type CaptureSource interface {
	// Start begins capture. onWindow is invoked from the device thread with
	// each full window; it must not block.
	Start(onWindow func(samples []float32)) error
	// Suspended reports whether the platform suspended the context.
	Suspended() bool
	// Resume restarts a suspended context.
	Resume() error
	// Close stops the hardware tracks and releases the context.
	Close() error
}

// PlaybackContext is an open speaker context with a monotonic playback clock.
type PlaybackContext interface {
	// Now returns the current position of the playback clock.
	Now() time.Duration
	// Play schedules a buffer to start at the given clock position and
	// returns a handle for it. onEnded fires once when the buffer finishes
	// playing naturally (not when force-stopped).
	Play(buf *AudioBuffer, at time.Duration, onEnded func()) (PlaybackHandle, error)
	// Close releases the context. Any scheduled audio is discarded.
	Close() error
}

// PlaybackHandle is one scheduled audio buffer source.
type PlaybackHandle interface {
	// Stop force-stops the buffer immediately, discarding unplayed audio.
	Stop()
}
