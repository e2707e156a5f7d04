package lingolive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Status is a connection lifecycle state reported through OnStatusChange.
type Status string

const (
	// StatusConnecting fires when a connect attempt starts.
	StatusConnecting Status = "connecting"
	// StatusReconnecting fires when the stream closed with a resumable code:
	// the server imposed its session-duration limit, not a real failure. The
	// caller should immediately reconnect with the accumulated history.
	StatusReconnecting Status = "reconnecting"
	// StatusOpen fires once the handshake completes and audio is flowing.
	StatusOpen Status = "open"
	// StatusClosed fires on a clean terminal close.
	StatusClosed Status = "closed"
	// StatusError fires with a human-readable message; the caller decides
	// whether to retry.
	StatusError Status = "error"
)

// Callbacks is the caller-facing callback interface for a session. Callbacks
// are invoked from the session's internal goroutines and must not block.
// After the session goes inactive no callback is ever invoked again.
type Callbacks struct {
	// OnTranscription fires on every inbound transcript delta with the
	// cumulative text-so-far for the current turn, and once more per role
	// with final=true when the turn completes.
	OnTranscription func(role Role, text string, final bool)

	// OnStatusChange fires on connection lifecycle transitions.
	OnStatusChange func(status Status, message string)

	// OnKeyRequired fires when the service rejects the credential.
	OnKeyRequired func()
}

// ConnectRequest is the per-session configuration passed to Connect.
type ConnectRequest struct {
	// Persona describes the conversation partner, including the voice
	// selector the service must recognize.
	Persona PersonaConfig

	// Proficiency is the learner's level, e.g. "Beginner", "Intermediate".
	Proficiency string

	// Mode is the practice focus. Defaults to ModeFreeTalk.
	Mode PracticeMode

	// History is a bounded recent window of prior turns, injected into the
	// setup instructions as prose so a reconnected session resumes without
	// re-greeting. Copied at connect time, never mutated.
	History []ConversationTurn

	// Callbacks receive transcripts and lifecycle transitions.
	Callbacks Callbacks
}

// Manager owns one realtime voice session: the stream lifecycle, the capture
// and playback pipelines, transcript accumulation, and close-code
// classification. At most one live session exists per Manager; callers
// replace the Manager wholesale to reconnect (StopAll the old one first).
type Manager struct {
	cfg Config

	// started guards against a second Connect on the same Manager.
	started atomic.Bool
	// active is the liveness flag: true from connect-attempt start until
	// StopAll or a terminal close. Once false, every late-arriving frame and
	// callback is silently dropped.
	active atomic.Bool

	cb Callbacks

	// resMu guards the handoff of freshly opened resources between Connect
	// and StopAll. Once Connect resolves the three fields are never written
	// again.
	resMu    sync.Mutex
	stream   Stream
	capture  CaptureSource
	playback PlaybackContext

	// captureCh decouples encoding and transmission from the device capture
	// callback. Capacity one window: under sustained delay the pipeline
	// sheds audio instead of buffering latency.
	captureCh chan []float32
	stopCh    chan struct{}
	stopOnce  sync.Once

	readyOnce sync.Once
	readyCh   chan struct{}

	closedOnce sync.Once
	closedCh   chan struct{}
	closeCode  int
	closeText  string

	playMu       sync.Mutex
	cursor       time.Duration
	handles      map[int64]PlaybackHandle
	nextHandleID int64

	ts transcripts

	// logs is swapped atomically once session.ready carries the
	// service-assigned session ID, so every later event is stamped with it.
	logs atomic.Pointer[logFuncs]
}

// logFuncs pairs the info and error log functions so both can be replaced in
// one atomic store.
type logFuncs struct {
	info func(event string, fields map[string]any)
	err  func(event string, fields map[string]any)
}

func (m *Manager) log(event string, fields map[string]any)      { m.logs.Load().info(event, fields) }
func (m *Manager) logError(event string, fields map[string]any) { m.logs.Load().err(event, fields) }

// bindSessionLogger stamps every subsequent log event with the
// service-assigned session ID.
func (m *Manager) bindSessionLogger(id string) {
	if id == "" {
		return
	}
	if sl := m.cfg.StructuredLogger; sl != nil {
		cl := sl.WithContext(map[string]any{"session_id": id})
		m.logs.Store(&logFuncs{info: cl.Info, err: cl.Error})
		return
	}
	base := m.logs.Load()
	tag := func(fn func(string, map[string]any)) func(string, map[string]any) {
		return func(event string, fields map[string]any) {
			merged := map[string]any{"session_id": id}
			for k, v := range fields {
				merged[k] = v
			}
			fn(event, merged)
		}
	}
	m.logs.Store(&logFuncs{info: tag(base.info), err: tag(base.err)})
}

// New creates a session Manager from a validated configuration.
func New(cfg Config) (*Manager, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:       cfg,
		captureCh: make(chan []float32, 1),
		stopCh:    make(chan struct{}),
		readyCh:   make(chan struct{}),
		closedCh:  make(chan struct{}),
		handles:   make(map[int64]PlaybackHandle),
	}
	m.logs.Store(&logFuncs{info: loggerFor(cfg, false), err: loggerFor(cfg, true)})
	return m, nil
}

// errSessionStopped reports that StopAll ran while Connect was still opening
// resources.
var errSessionStopped = errors.New("lingolive: session stopped during connect")

// adopt publishes a resource Connect just opened unless StopAll already ran,
// in which case the caller must release the resource itself.
func (m *Manager) adopt(assign func()) bool {
	m.resMu.Lock()
	defer m.resMu.Unlock()
	if !m.active.Load() {
		return false
	}
	assign()
	return true
}

// Connect opens both audio device contexts, dials the stream, sends the setup
// frame, and resolves once the service acknowledges with session.ready. On
// any setup failure it emits StatusError, tears everything down, and returns
// the error: no partial session is left running.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("lingolive: manager already used; create a new one to reconnect")
	}
	if err := ValidateConnectRequest(req); err != nil {
		return NewConfigError("ConnectRequest", "", err.Error())
	}
	instructions, err := buildInstructions(req)
	if err != nil {
		return NewConfigError("ConnectRequest", "", err.Error())
	}

	m.cb = req.Callbacks
	m.active.Store(true)
	m.emitStatus(StatusConnecting, "")

	fail := func(err error, context string) error {
		m.emitStatus(StatusError, context+": "+err.Error())
		m.StopAll()
		return err
	}

	// Capture context at the protocol's expected input rate; requesting the
	// device is the step that needs microphone permission.
	capture, err := m.cfg.Devices.OpenCapture(CaptureSampleRate, CaptureWindowSize)
	if err != nil {
		return fail(err, "opening capture device")
	}
	if !m.adopt(func() { m.capture = capture }) {
		_ = capture.Close()
		return fail(errSessionStopped, "opening capture device")
	}
	playback, err := m.cfg.Devices.OpenPlayback(PlaybackSampleRate)
	if err != nil {
		return fail(err, "opening playback device")
	}
	if !m.adopt(func() { m.playback = playback }) {
		_ = playback.Close()
		return fail(errSessionStopped, "opening playback device")
	}

	stream, err := dialStream(ctx, m.cfg, StreamHandler{
		OnFrame:  m.handleFrame,
		OnClosed: m.handleClosed,
	})
	if err != nil {
		var ce *ConnectionError
		if errors.As(err, &ce) && ce.Operation == "auth" {
			m.emitKeyRequired()
		}
		return fail(err, "opening stream")
	}
	if !m.adopt(func() { m.stream = stream }) {
		_ = stream.Close(1000, "client stop")
		return fail(errSessionStopped, "opening stream")
	}

	setup := SessionSetup{Type: frameSessionSetup}
	setup.Setup.Model = m.cfg.Model
	setup.Setup.Modalities = []string{"audio"}
	setup.Setup.Voice = req.Persona.Voice
	setup.Setup.Instructions = instructions
	setup.Setup.InputTranscription = true
	setup.Setup.OutputTranscription = true
	if err := m.stream.Send(ctx, setup); err != nil {
		return fail(err, "sending setup")
	}

	timeout := m.cfg.DialTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	handshake := time.NewTimer(timeout)
	defer handshake.Stop()
	select {
	case <-m.readyCh:
	case <-m.stopCh:
		return fail(errSessionStopped, "handshake")
	case <-m.closedCh:
		return fail(fmt.Errorf("stream closed during handshake (code %d): %s", m.closeCode, m.closeText), "handshake")
	case <-handshake.C:
		return fail(errors.New("timed out waiting for session.ready"), "handshake")
	case <-ctx.Done():
		return fail(ctx.Err(), "handshake")
	}

	go m.captureSender()
	if err := m.capture.Start(m.onCaptureWindow); err != nil {
		return fail(err, "starting capture")
	}
	if m.cfg.KeepAliveInterval > 0 {
		go m.keepAliveLoop()
	}

	m.emitStatus(StatusOpen, "")
	return nil
}

// StopAll tears the session down: keep-alive timer, playback handles, capture
// pipeline, stream, and both device contexts. Idempotent and safe to call
// while Connect is still opening resources: every call releases whatever is
// open at the time, and Connect re-checks liveness after each setup step so a
// resource opened after the stop is released on the spot. Individual release
// failures are swallowed so releasing one resource never prevents releasing
// the rest.
func (m *Manager) StopAll() {
	m.active.Store(false)
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.log("session_stopped", nil)
	})

	m.playMu.Lock()
	for id, h := range m.handles {
		h.Stop()
		delete(m.handles, id)
	}
	m.cursor = 0
	m.playMu.Unlock()

	m.resMu.Lock()
	capture, stream, playback := m.capture, m.stream, m.playback
	m.resMu.Unlock()
	if capture != nil {
		_ = capture.Close()
	}
	if stream != nil {
		_ = stream.Close(1000, "client stop")
	}
	if playback != nil {
		_ = playback.Close()
	}
}

// Active reports whether the session is still live.
func (m *Manager) Active() bool { return m.active.Load() }

// onCaptureWindow runs on the device thread for every full capture window.
// It must not block capture of the next window, so it hands the window to the
// sender through the one-slot channel and sheds it when the sender is behind.
func (m *Manager) onCaptureWindow(samples []float32) {
	if !m.active.Load() {
		return
	}
	select {
	case m.captureCh <- samples:
	default:
		// Sender still busy with the previous window: shed this one rather
		// than grow latency while the network is already struggling.
		m.log("capture_window_shed", map[string]any{"samples": len(samples)})
	}
}

// captureSender encodes and transmits capture windows, decoupled from the
// device callback. Frames are best-effort: if the session went inactive the
// window is dropped silently, never queued.
func (m *Manager) captureSender() {
	for {
		select {
		case <-m.stopCh:
			return
		case samples := <-m.captureCh:
			if !m.active.Load() {
				continue
			}
			chunk := InputAudioChunk{
				Type:  frameInputAudioChunk,
				Audio: base64.StdEncoding.EncodeToString(EncodePCM16(samples)),
			}
			if m.stream == nil || !m.stream.Usable() {
				continue
			}
			if err := m.stream.Send(context.Background(), chunk); err != nil {
				m.log("capture_frame_dropped", map[string]any{"err": err})
			}
		}
	}
}

// keepAliveLoop periodically resumes the capture context while platform power
// management keeps suspending it. A workaround, not a protocol requirement.
func (m *Manager) keepAliveLoop() {
	t := time.NewTicker(m.cfg.KeepAliveInterval)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			if m.capture != nil && m.capture.Suspended() {
				if err := m.capture.Resume(); err != nil {
					m.logError("capture_resume_failed", map[string]any{"err": err})
				}
			}
		}
	}
}

// handleFrame dispatches one inbound frame. Runs on the stream's reader
// goroutine, so frames are handled strictly in arrival order. Frames arriving
// after the session went inactive are silently dropped.
func (m *Manager) handleFrame(frameType string, raw []byte) {
	if !m.active.Load() {
		return
	}

	switch frameType {
	case frameSessionReady:
		var f SessionReady
		if err := json.Unmarshal(raw, &f); err != nil {
			m.logError("bad_frame_json", map[string]any{"type": frameType, "err": err})
		} else {
			m.bindSessionLogger(f.Session.ID)
		}
		// A mangled payload still completes the handshake: the type tag
		// matched and stalling Connect for the full timeout helps nobody.
		m.readyOnce.Do(func() { close(m.readyCh) })

	case frameInputTranscriptDelta:
		var f InputTranscriptDelta
		if err := json.Unmarshal(raw, &f); err != nil {
			m.logError("bad_frame_json", map[string]any{"type": frameType, "err": err})
			return
		}
		m.emitTranscription(RoleUser, m.ts.append(RoleUser, f.Delta), false)

	case frameOutputTranscriptDelta:
		var f OutputTranscriptDelta
		if err := json.Unmarshal(raw, &f); err != nil {
			m.logError("bad_frame_json", map[string]any{"type": frameType, "err": err})
			return
		}
		m.emitTranscription(RoleModel, m.ts.append(RoleModel, f.Delta), false)

	case frameTurnComplete:
		// A turn boundary synchronizes both roles even when only one of them
		// produced text this turn.
		user, model := m.ts.finalize()
		m.emitTranscription(RoleUser, user, true)
		m.emitTranscription(RoleModel, model, true)

	case frameAudioChunk:
		var f AudioChunk
		if err := json.Unmarshal(raw, &f); err != nil {
			m.logError("bad_frame_json", map[string]any{"type": frameType, "err": err})
			return
		}
		m.scheduleAudio(f.Data)

	case frameInterrupted:
		m.interruptPlayback()

	case frameError:
		var f ErrorFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			m.logError("bad_frame_json", map[string]any{"type": frameType, "err": err})
			return
		}
		if credentialErrorCodes[f.Error.Code] {
			m.emitKeyRequired()
		}
		m.emitStatus(StatusError, f.Error.Message)

	default:
		m.log("unknown_frame", map[string]any{"type": frameType})
	}
}

// scheduleAudio decodes one inbound audio chunk and schedules it at
// max(cursor, playback clock), then advances the cursor by the buffer's
// duration. Sequential chunks therefore play gaplessly in order regardless of
// arrival jitter. A malformed chunk is dropped; the session keeps running.
func (m *Manager) scheduleAudio(b64 string) {
	raw, err := DecodeAudioData(b64)
	if err != nil {
		m.logError("audio_decode_failed", map[string]any{"err": err})
		return
	}
	buf, err := DecodePCM16(raw, PlaybackSampleRate, 1)
	if err != nil {
		m.logError("audio_decode_failed", map[string]any{"err": err})
		return
	}

	m.playMu.Lock()
	defer m.playMu.Unlock()

	at := m.cursor
	if now := m.playback.Now(); now > at {
		at = now
	}
	id := m.nextHandleID
	m.nextHandleID++
	h, err := m.playback.Play(buf, at, func() {
		m.playMu.Lock()
		delete(m.handles, id)
		m.playMu.Unlock()
	})
	if err != nil {
		m.logError("playback_schedule_failed", map[string]any{"err": err})
		return
	}
	m.handles[id] = h
	m.cursor = at + buf.Duration()
}

// interruptPlayback implements barge-in: force-stop every scheduled source,
// clear the active set, and reset the cursor so the next chunk starts as soon
// as the device is ready. The only place the cursor ever moves backward.
func (m *Manager) interruptPlayback() {
	m.playMu.Lock()
	defer m.playMu.Unlock()
	for id, h := range m.handles {
		h.Stop()
		delete(m.handles, id)
	}
	m.cursor = 0
}

// handleClosed classifies the stream closure. Fires at most once, after the
// last inbound frame. If the caller already tore the session down, nothing is
// reported: a stale session must never race a fresh session's callbacks.
func (m *Manager) handleClosed(code int, reason string) {
	m.closedOnce.Do(func() {
		m.closeCode = code
		m.closeText = reason
		close(m.closedCh)
	})

	if !m.active.Load() {
		return
	}

	// Until session.ready arrives, Connect owns failure reporting: its
	// handshake wait observes closedCh and surfaces the setup error itself,
	// so a close landing mid-handshake is never classified as a reconnect.
	select {
	case <-m.readyCh:
	default:
		if code == closeCodeUnauthorized {
			m.emitKeyRequired()
		}
		return
	}

	switch {
	case code == 1000:
		m.emitStatus(StatusClosed, reason)
		m.active.Store(false)
	case code == closeCodeUnauthorized:
		m.emitKeyRequired()
		m.emitStatus(StatusError, fmt.Sprintf("stream closed (code %d): credential rejected", code))
		m.active.Store(false)
	case m.isResumable(code):
		// The service enforces a hard session-duration cap and reports it as
		// an abnormal closure. Tell the caller to reconnect with history
		// instead of surfacing a failure.
		m.emitStatus(StatusReconnecting, fmt.Sprintf("stream closed (code %d), session limit reached", code))
	default:
		m.emitStatus(StatusError, fmt.Sprintf("stream closed (code %d): %s", code, reason))
		m.active.Store(false)
	}
}

func (m *Manager) isResumable(code int) bool {
	for _, c := range m.cfg.resumableCodes() {
		if c == code {
			return true
		}
	}
	return false
}

func (m *Manager) emitTranscription(role Role, text string, final bool) {
	if !m.active.Load() {
		return
	}
	if m.cb.OnTranscription != nil {
		m.cb.OnTranscription(role, text, final)
	}
}

func (m *Manager) emitStatus(status Status, message string) {
	if !m.active.Load() {
		return
	}
	m.log("status_change", map[string]any{"status": string(status), "message": message})
	if m.cb.OnStatusChange != nil {
		m.cb.OnStatusChange(status, message)
	}
}

func (m *Manager) emitKeyRequired() {
	if !m.active.Load() {
		return
	}
	if m.cb.OnKeyRequired != nil {
		m.cb.OnKeyRequired()
	}
}
