package lingolive

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"nhooyr.io/websocket"
)

// mockServer simulates the dialogue service over a real WebSocket. After the
// client's session.setup it sends session.ready, then any scripted frames,
// then either waits for the client to hang up or closes with a configured
// status code.
type mockServer struct {
	server  *httptest.Server
	t       *testing.T
	scripts []any

	closeCode        websocket.StatusCode
	closeReason      string
	closeBeforeReady bool
	holdReady        bool

	mu     sync.Mutex
	setups []SessionSetup
	audio  []InputAudioChunk
}

func newMockServer(t *testing.T) *mockServer {
	ms := &mockServer{t: t}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handle))
	t.Cleanup(ms.server.Close)
	return ms
}

// Endpoint returns the http:// base URL; streamURL handles the ws rewrite.
func (ms *mockServer) Endpoint() string {
	return ms.server.URL
}

// Script queues a frame to send right after session.ready.
func (ms *mockServer) Script(frame any) {
	ms.scripts = append(ms.scripts, frame)
}

// CloseWith makes the server close the socket with the given status once
// the scripted frames have been delivered.
func (ms *mockServer) CloseWith(code websocket.StatusCode, reason string) {
	ms.closeCode = code
	ms.closeReason = reason
}

// CloseBeforeReady makes the server close with the given status right after
// the client's session.setup, without ever acknowledging it.
func (ms *mockServer) CloseBeforeReady(code websocket.StatusCode, reason string) {
	ms.closeCode = code
	ms.closeReason = reason
	ms.closeBeforeReady = true
}

// HoldReady makes the server accept the setup but never answer it, leaving
// the client stuck in the handshake.
func (ms *mockServer) HoldReady() {
	ms.holdReady = true
}

// Setups returns the session.setup frames received so far.
func (ms *mockServer) Setups() []SessionSetup {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]SessionSetup(nil), ms.setups...)
}

// AudioChunks returns the input_audio.chunk frames received so far.
func (ms *mockServer) AudioChunks() []InputAudioChunk {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]InputAudioChunk(nil), ms.audio...)
}

func (ms *mockServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-api-key") == "" && r.Header.Get("Authorization") == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		ms.t.Errorf("accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	send := func(frame any) bool {
		data, err := json.Marshal(frame)
		if err != nil {
			ms.t.Errorf("marshal script frame: %v", err)
			return false
		}
		if err := conn.Write(r.Context(), websocket.MessageText, data); err != nil {
			return false
		}
		return true
	}

	// Wait for the setup before declaring the session ready.
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type == frameSessionSetup {
			var setup SessionSetup
			if err := json.Unmarshal(data, &setup); err != nil {
				ms.t.Errorf("unmarshal setup: %v", err)
				return
			}
			ms.mu.Lock()
			ms.setups = append(ms.setups, setup)
			ms.mu.Unlock()
			break
		}
	}

	if ms.closeBeforeReady {
		conn.Close(ms.closeCode, ms.closeReason)
		return
	}
	if ms.holdReady {
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}

	ready := SessionReady{Type: frameSessionReady}
	ready.Session.ID = "sess_mock_1"
	ready.Session.Model = "dialogue-native-audio"
	ready.Session.Voice = "juniper"
	if !send(ready) {
		return
	}

	for _, frame := range ms.scripts {
		if !send(frame) {
			return
		}
	}

	if ms.closeCode != 0 {
		// Wait for one client frame first so the test controls when the close
		// lands relative to the handshake.
		_, _, _ = conn.Read(r.Context())
		conn.Close(ms.closeCode, ms.closeReason)
		return
	}

	// Collect client frames until it hangs up.
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type == frameInputAudioChunk {
			var chunk InputAudioChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				continue
			}
			ms.mu.Lock()
			ms.audio = append(ms.audio, chunk)
			ms.mu.Unlock()
		}
	}
}

// mockConfig returns a valid config pointing at the mock server, with fake
// devices so no audio hardware is touched.
func mockConfig(ms *mockServer) Config {
	return Config{
		Endpoint:   ms.Endpoint(),
		Model:      "dialogue-native-audio",
		Credential: APIKey("test-key"),
		Devices:    &fakeDevices{},
	}
}
