package lingolive

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEnvelopeDispatch(t *testing.T) {
	raw := `{"type":"transcript.output.delta","delta":"bonjour"}`

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != frameOutputTranscriptDelta {
		t.Errorf("type = %q", env.Type)
	}

	var f OutputTranscriptDelta
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if f.Delta != "bonjour" {
		t.Errorf("delta = %q", f.Delta)
	}
}

func TestSessionReadyParsing(t *testing.T) {
	raw := `{
		"type": "session.ready",
		"session": {
			"id": "sess_01",
			"model": "dialogue-native-audio",
			"voice": "cedar",
			"expires_at": 1756200000
		}
	}`

	var f SessionReady
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Session.ID != "sess_01" || f.Session.Voice != "cedar" {
		t.Errorf("session = %+v", f.Session)
	}
	if f.Session.ExpiresAt != 1756200000 {
		t.Errorf("expires_at = %d", f.Session.ExpiresAt)
	}
}

func TestSessionSetupSerialization(t *testing.T) {
	setup := SessionSetup{Type: frameSessionSetup}
	setup.Setup.Model = "dialogue-native-audio"
	setup.Setup.Modalities = []string{"audio"}
	setup.Setup.Voice = "wren"
	setup.Setup.Instructions = "You are a patient tutor."
	setup.Setup.InputTranscription = true
	setup.Setup.OutputTranscription = true

	data, err := json.Marshal(setup)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"type":"session.setup"`,
		`"modalities":["audio"]`,
		`"voice":"wren"`,
		`"input_transcription":true`,
		`"output_transcription":true`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("setup JSON missing %s:\n%s", want, s)
		}
	}
}

func TestErrorFrameParsing(t *testing.T) {
	raw := `{"type":"error","error":{"code":"expired_credential","message":"key expired"}}`

	var f ErrorFrame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !credentialErrorCodes[f.Error.Code] {
		t.Errorf("code %q not classified as a credential error", f.Error.Code)
	}
	if f.Error.Message != "key expired" {
		t.Errorf("message = %q", f.Error.Message)
	}

	if credentialErrorCodes["rate_limited"] {
		t.Error("rate_limited misclassified as a credential error")
	}
}

func TestFrameTags(t *testing.T) {
	chunk := InputAudioChunk{Type: frameInputAudioChunk}
	if chunk.frameTag() != "input_audio.chunk" {
		t.Errorf("frameTag = %q", chunk.frameTag())
	}
	setup := SessionSetup{Type: frameSessionSetup}
	if setup.frameTag() != "session.setup" {
		t.Errorf("frameTag = %q", setup.frameTag())
	}
}
