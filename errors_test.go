package lingolive

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("Endpoint", "not-a-url", "invalid URL format")

	if !strings.Contains(err.Error(), "Endpoint") {
		t.Errorf("message missing field name: %s", err)
	}
	if !strings.Contains(err.Error(), "not-a-url") {
		t.Errorf("message missing value: %s", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("ConfigError does not match ErrInvalidConfig")
	}

	// Without a value, the message omits the value clause.
	bare := NewConfigError("Model", "", "cannot be empty")
	if strings.Contains(bare.Error(), "value:") {
		t.Errorf("empty value rendered: %s", bare)
	}
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewConnectionError("wss://example.test/v1/dialogue/live", "dial", cause)

	if !errors.Is(err, ErrConnectionFailed) {
		t.Error("ConnectionError does not match ErrConnectionFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("ConnectionError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "dial") {
		t.Errorf("message missing operation: %s", err)
	}

	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As failed")
	}
	if ce.Operation != "dial" {
		t.Errorf("Operation = %q", ce.Operation)
	}
}

func TestSendError(t *testing.T) {
	err := NewSendError("input_audio.chunk", ErrSendTimeout)

	if !strings.Contains(err.Error(), "input_audio.chunk") {
		t.Errorf("message missing frame type: %s", err)
	}
	if !err.IsTimeout() {
		t.Error("IsTimeout = false for a timeout cause")
	}
	if !errors.Is(err, ErrSendTimeout) {
		t.Error("SendError does not unwrap to ErrSendTimeout")
	}

	other := NewSendError("session.setup", errors.New("broken pipe"))
	if other.IsTimeout() {
		t.Error("IsTimeout = true for a non-timeout cause")
	}
}

func TestDecodeError(t *testing.T) {
	err := NewDecodeError(3, 1, nil)
	if !errors.Is(err, ErrDecode) {
		t.Error("DecodeError does not match ErrDecode")
	}
	if !strings.Contains(err.Error(), "3 bytes") {
		t.Errorf("alignment message missing byte count: %s", err)
	}

	cause := errors.New("illegal base64 data")
	wrapped := NewDecodeError(10, 0, cause)
	if !errors.Is(wrapped, cause) {
		t.Error("DecodeError does not unwrap to its cause")
	}
	if !strings.Contains(wrapped.Error(), "illegal base64") {
		t.Errorf("message missing cause: %s", wrapped)
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrClosed, ErrInvalidConfig, ErrConnectionFailed, ErrSendTimeout, ErrDecode}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v matches %v", a, b)
			}
		}
	}
}
