package lingolive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Stream is the opaque bidirectional handle to the dialogue service. The
// session manager depends on exactly these operations, never on concrete
// transport types, so tests can substitute an in-memory stream.
type Stream interface {
	// Send transmits one outbound frame. Returns ErrClosed once the stream
	// is no longer usable.
	Send(ctx context.Context, frame any) error
	// Close terminates the stream with the given close code. Idempotent.
	Close(code int, reason string) error
	// Usable reports whether frames can still be sent.
	Usable() bool
}

// StreamHandler receives stream events. Frames are delivered strictly in
// arrival order from a single reader goroutine; Closed fires exactly once
// after the last frame, with the close code observed on the wire (1006 when
// the peer vanished without a close frame).
type StreamHandler struct {
	OnFrame  func(frameType string, raw []byte)
	OnClosed func(code int, reason string)
}

// wsStream is the production Stream over a WebSocket connection.
type wsStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex // Protects writes to the WebSocket
	closedCh  chan struct{}
	closeOnce sync.Once
	log       func(event string, fields map[string]any)
	logError  func(event string, fields map[string]any)
}

// streamURL converts the configured HTTP endpoint into the WebSocket dial URL.
func streamURL(cfg Config) (string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", NewConfigError("Endpoint", cfg.Endpoint, "invalid URL format")
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws" // For HTTP (mainly for testing)
	}
	u.Path = "/v1/dialogue/live"
	q := u.Query()
	q.Set("model", cfg.Model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dialStream opens the WebSocket, starts the reader and ping loops, and
// returns a usable Stream. The handler starts receiving frames immediately.
func dialStream(ctx context.Context, cfg Config, handler StreamHandler) (Stream, error) {
	target, err := streamURL(cfg)
	if err != nil {
		return nil, err
	}

	// Prepare authentication and custom headers
	h := http.Header{}
	if cfg.HandshakeHeaders != nil {
		for k, vals := range cfg.HandshakeHeaders {
			for _, v := range vals {
				h.Add(k, v)
			}
		}
	}
	cfg.Credential.apply(h)

	dialCtx := ctx
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, target, &websocket.DialOptions{HTTPHeader: h})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, NewConnectionError(target, "auth", err)
		}
		return nil, NewConnectionError(target, "dial", err)
	}

	s := &wsStream{
		conn:     conn,
		closedCh: make(chan struct{}),
		log:      loggerFor(cfg, false),
		logError: loggerFor(cfg, true),
	}
	s.log("ws_connected", map[string]any{"url": target})

	go s.readLoop(handler)
	go s.pingLoop()
	return s, nil
}

// loggerFor resolves the effective log function for a config.
func loggerFor(cfg Config, isErr bool) func(string, map[string]any) {
	return func(event string, fields map[string]any) {
		if cfg.StructuredLogger != nil {
			if isErr {
				cfg.StructuredLogger.Error(event, fields)
			} else {
				cfg.StructuredLogger.Info(event, fields)
			}
			return
		}
		if cfg.Logger != nil {
			if isErr {
				event = "ERROR: " + event
			}
			cfg.Logger(event, fields)
		}
	}
}

// readLoop continuously reads frames from the WebSocket connection. It runs
// in its own goroutine; each frame triggers one handler invocation before the
// next read, so inbound frames are processed strictly in arrival order.
func (s *wsStream) readLoop(handler StreamHandler) {
	conn := s.conn
	var closeCode int
	var closeReason string

	defer func() {
		s.closeOnce.Do(func() { close(s.closedCh) })
		s.writeMu.Lock()
		if s.conn != nil {
			_ = s.conn.Close(websocket.StatusNormalClosure, "reader_exit")
			s.conn = nil
		}
		s.writeMu.Unlock()
		if handler.OnClosed != nil {
			handler.OnClosed(closeCode, closeReason)
		}
	}()

	for {
		typ, data, err := conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 {
				// No close frame from the peer: the abnormal-closure code,
				// matching what a dropped connection reports.
				closeCode = 1006
				closeReason = err.Error()
			} else {
				closeCode = int(status)
				var ce websocket.CloseError
				if errors.As(err, &ce) {
					closeReason = ce.Reason
				}
			}
			return
		}

		// Only process text messages (JSON frames)
		if typ != websocket.MessageText {
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logError("bad_frame_json", map[string]any{"err": err, "raw_data": string(data)})
			continue
		}

		if handler.OnFrame != nil {
			handler.OnFrame(env.Type, data)
		}
	}
}

// pingLoop keeps the transport alive until the stream closes.
func (s *wsStream) pingLoop() {
	t := time.NewTicker(20 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-s.closedCh:
			return
		case <-t.C:
			s.writeMu.Lock()
			if s.conn != nil {
				_ = s.conn.Ping(context.Background())
			}
			s.writeMu.Unlock()
		}
	}
}

// Send marshals and transmits one frame, applying a send timeout.
func (s *wsStream) Send(ctx context.Context, frame any) error {
	frameType := "unknown"
	if e, ok := frame.(interface{ frameTag() string }); ok {
		frameType = e.frameTag()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}

	b, err := json.Marshal(frame)
	if err != nil {
		return NewSendError(frameType, fmt.Errorf("marshal frame: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := s.conn.Write(ctx, websocket.MessageText, b); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return NewSendError(frameType, ErrSendTimeout)
		}
		return NewSendError(frameType, err)
	}
	return nil
}

// Close terminates the stream. Safe to call multiple times; release failures
// are swallowed so teardown always completes.
func (s *wsStream) Close(code int, reason string) error {
	s.writeMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusCode(code), reason)
		s.conn = nil
	}
	s.writeMu.Unlock()
	s.closeOnce.Do(func() { close(s.closedCh) })
	return nil
}

// Usable reports whether the stream can still carry frames.
func (s *wsStream) Usable() bool {
	select {
	case <-s.closedCh:
		return false
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn != nil
}

// frameTag implementations let Send label errors without reflection.
func (f InputAudioChunk) frameTag() string { return f.Type }
func (f SessionSetup) frameTag() string    { return f.Type }
