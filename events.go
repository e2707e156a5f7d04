package lingolive

// envelope is used for initial JSON parsing to determine the frame type
// before unmarshaling into the specific frame struct.
type envelope struct {
	Type string `json:"type"`
}

// Frame type tags used on the wire. Inbound frames are consumed immediately
// by the session manager; outbound frames are sent as soon as produced.
const (
	frameSessionSetup          = "session.setup"
	frameInputAudioChunk       = "input_audio.chunk"
	frameSessionReady          = "session.ready"
	frameInputTranscriptDelta  = "transcript.input.delta"
	frameOutputTranscriptDelta = "transcript.output.delta"
	frameTurnComplete          = "turn.complete"
	frameAudioChunk            = "audio.chunk"
	frameInterrupted           = "interrupted"
	frameError                 = "error"
)

// SessionSetup is the first outbound frame on a new stream. It configures the
// session: requested response modality, voice selector, free-text system
// instructions (persona, proficiency, practice focus, optional prior-turn
// summary), and flags requesting input- and output-side transcription.
type SessionSetup struct {
	Type  string `json:"type"` // Always "session.setup"
	Setup struct {
		Model               string   `json:"model"`                // Dialogue model to use
		Modalities          []string `json:"modalities"`           // Requested response modalities, ["audio"]
		Voice               string   `json:"voice"`                // Voice selector for synthesized audio
		Instructions        string   `json:"instructions"`         // System instruction string
		InputTranscription  bool     `json:"input_transcription"`  // Request transcription of user audio
		OutputTranscription bool     `json:"output_transcription"` // Request transcription of model audio
	} `json:"setup"`
}

// InputAudioChunk carries one capture window of base64-encoded PCM16LE audio
// at 16kHz mono. Sent best-effort: dropped rather than queued when the
// session has become inactive.
type InputAudioChunk struct {
	Type  string `json:"type"`  // Always "input_audio.chunk"
	Audio string `json:"audio"` // Base64-encoded PCM16LE @16kHz mono
}

// SessionReady acknowledges the setup frame and completes the handshake.
// Connect does not resolve until this frame arrives.
type SessionReady struct {
	Type    string `json:"type"` // Always "session.ready"
	Session struct {
		ID        string `json:"id"`                   // Unique session identifier
		Model     string `json:"model"`                // Model serving the session
		Voice     string `json:"voice,omitempty"`      // Voice in effect
		ExpiresAt int64  `json:"expires_at,omitempty"` // Session expiration timestamp (Unix)
	} `json:"session"`
}

// InputTranscriptDelta carries an incremental fragment of the user-side
// transcription for the current turn.
type InputTranscriptDelta struct {
	Type  string `json:"type"`  // Always "transcript.input.delta"
	Delta string `json:"delta"` // Incremental transcript text
}

// OutputTranscriptDelta carries an incremental fragment of the model-side
// transcription for the current turn.
type OutputTranscriptDelta struct {
	Type  string `json:"type"`  // Always "transcript.output.delta"
	Delta string `json:"delta"` // Incremental transcript text
}

// TurnComplete marks the end of a conversational turn. It is a
// synchronization point across both roles: whatever has accumulated for each
// role is finalized, then both accumulation buffers reset.
type TurnComplete struct {
	Type string `json:"type"` // Always "turn.complete"
}

// AudioChunk carries one chunk of synthesized audio as base64-encoded PCM16LE
// at 24kHz mono. Chunks arrive in playback order.
type AudioChunk struct {
	Type string `json:"type"` // Always "audio.chunk"
	Data string `json:"data"` // Base64-encoded PCM16LE @24kHz mono
}

// Interrupted signals barge-in: the user began speaking while model audio was
// still playing. All scheduled playback must be cut off immediately.
type Interrupted struct {
	Type string `json:"type"` // Always "interrupted"
}

// ErrorFrame represents an error received from the dialogue service.
type ErrorFrame struct {
	Type  string `json:"type"` // Always "error"
	Error struct {
		Code    string `json:"code,omitempty"`    // Error category (e.g., "invalid_credential")
		Message string `json:"message,omitempty"` // Human-readable error description
	} `json:"error"`
}

// credentialErrorCodes are service error codes meaning the supplied API key
// was rejected. They trigger the OnKeyRequired callback.
var credentialErrorCodes = map[string]bool{
	"invalid_credential": true,
	"expired_credential": true,
}

// closeCodeUnauthorized is the application close code the service uses when
// it rejects the credential after the handshake.
const closeCodeUnauthorized = 4401
