// Package lingolive provides a realtime voice client for cloud speech-dialogue
// services used in conversational language practice.
//
// The library opens a bidirectional WebSocket stream to the dialogue service,
// streams microphone audio up as PCM16 at 16kHz, plays synthesized audio down
// at 24kHz, and delivers incremental transcripts for both sides of the
// conversation. It handles the session lifecycle end to end: device context
// setup, capture and playback pipelines, barge-in interruption, transcript
// accumulation, and classification of server-imposed duration-limit closures
// so callers can reconnect with conversation continuity.
//
// Key Features:
//   - WebSocket session manager with strict teardown semantics (StopAll)
//   - Gapless time-ordered audio playback with immediate barge-in cutoff
//   - Lossy-under-load capture pipeline (sheds audio instead of queueing)
//   - Per-turn transcript accumulation for user and model roles
//   - Resumable-close-code detection for continuity-preserving reconnects
//   - Retry and circuit breaker utilities for caller-side policy
//
// Basic Usage:
//
//	cfg := lingolive.Config{
//		Endpoint:   "https://dialogue.example.com",
//		Model:      "dialogue-native-audio",
//		Credential: lingolive.APIKey(os.Getenv("LINGOLIVE_API_KEY")),
//		Devices:    device.Provider{},
//	}
//	mgr, err := lingolive.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = mgr.Connect(ctx, lingolive.ConnectRequest{
//		Persona:     persona,
//		Proficiency: "Intermediate",
//		Mode:        lingolive.ModeFreeTalk,
//		Callbacks: lingolive.Callbacks{
//			OnTranscription: render,
//			OnStatusChange:  observe,
//		},
//	})
//	defer mgr.StopAll()
//
// All stream lifecycle problems after a successful Connect are reported
// exclusively through OnStatusChange; the manager never retries internally.
// Retry and backoff policy belongs to the caller, typically built from
// WithRetry and RetryConfig.
package lingolive
