package lingolive

import (
	"errors"
	"fmt"
	"net/url"
)

// Sentinel errors for errors.Is matching across the typed hierarchy below.
var (
	// ErrClosed is returned when sending on a stream that has been closed.
	// Create a new Manager to resume.
	ErrClosed = errors.New("lingolive: stream is closed")

	// ErrInvalidConfig matches every ConfigError.
	ErrInvalidConfig = errors.New("lingolive: invalid configuration")

	// ErrConnectionFailed matches every ConnectionError.
	ErrConnectionFailed = errors.New("lingolive: connection failed")

	// ErrSendTimeout is the cause of a SendError whose write timed out.
	ErrSendTimeout = errors.New("lingolive: send timeout")

	// ErrDecode matches every DecodeError.
	ErrDecode = errors.New("lingolive: audio decode failed")
)

// ConfigError reports which configuration field failed validation and why.
type ConfigError struct {
	Field   string // the offending field
	Value   string // the offending value, if safe to log
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("lingolive: invalid config field %q (value: %q): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("lingolive: invalid config field %q: %s", e.Field, e.Message)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// ConnectionError wraps a failure to establish or authenticate the stream.
type ConnectionError struct {
	URL       string // the WebSocket URL that failed
	Cause     error
	Operation string // "dial", "auth", "handshake"
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("lingolive: %s failed for %q: %v", e.Operation, e.URL, e.Cause)
	}
	return fmt.Sprintf("lingolive: %s failed for %q", e.Operation, e.URL)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnectionFailed }

// SendError wraps a failure to transmit one outbound frame.
type SendError struct {
	FrameType string // wire tag of the frame being sent
	Cause     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("lingolive: failed to send %s frame: %v", e.FrameType, e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }

// IsTimeout reports whether the send failed on the write timeout.
func (e *SendError) IsTimeout() bool { return errors.Is(e.Cause, ErrSendTimeout) }

// DecodeError reports a malformed or truncated audio payload. A decode
// failure affects only the offending chunk: the session keeps running and the
// chunk is dropped.
type DecodeError struct {
	ByteLen  int   // length of the offending payload
	Channels int   // channel count the payload was decoded against
	Cause    error // nil for alignment failures
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("lingolive: decode audio (%d bytes, %d channel(s)): %v", e.ByteLen, e.Channels, e.Cause)
	}
	return fmt.Sprintf("lingolive: decode audio: %d bytes is not a whole multiple of the %d-channel frame size", e.ByteLen, e.Channels)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NewConfigError creates a configuration validation error.
func NewConfigError(field, value, message string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: message}
}

// NewConnectionError creates a stream connection error.
func NewConnectionError(url, operation string, cause error) *ConnectionError {
	return &ConnectionError{URL: url, Operation: operation, Cause: cause}
}

// NewSendError creates a frame transmission error.
func NewSendError(frameType string, cause error) *SendError {
	return &SendError{FrameType: frameType, Cause: cause}
}

// NewDecodeError creates an audio payload decode error.
func NewDecodeError(byteLen, channels int, cause error) *DecodeError {
	return &DecodeError{ByteLen: byteLen, Channels: channels, Cause: cause}
}

// ValidateConfig checks every required Config field and the ranges of the
// optional ones, returning a ConfigError naming the first offending field.
func ValidateConfig(cfg Config) error {
	if cfg.Endpoint == "" {
		return NewConfigError("Endpoint", "", "cannot be empty")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return NewConfigError("Endpoint", cfg.Endpoint, "invalid URL format")
	}
	if cfg.Model == "" {
		return NewConfigError("Model", "", "cannot be empty")
	}
	if cfg.Credential == nil {
		return NewConfigError("Credential", "", "cannot be nil")
	}
	if cfg.Devices == nil {
		return NewConfigError("Devices", "", "cannot be nil")
	}
	if cfg.DialTimeout < 0 {
		return NewConfigError("DialTimeout", cfg.DialTimeout.String(), "cannot be negative")
	}
	if cfg.KeepAliveInterval < 0 {
		return NewConfigError("KeepAliveInterval", cfg.KeepAliveInterval.String(), "cannot be negative")
	}
	for _, code := range cfg.ResumableCloseCodes {
		if code < 1000 || code > 4999 {
			return NewConfigError("ResumableCloseCodes", fmt.Sprintf("%d", code), "not a valid WebSocket close code")
		}
	}
	return nil
}
