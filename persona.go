package lingolive

import (
	"errors"
	"fmt"
	"strings"
)

// PersonaConfig describes the conversation partner the session should embody.
// Voice must be a display voice identifier recognized by the dialogue service.
type PersonaConfig struct {
	// Name is the partner's display name, woven into the instructions.
	Name string

	// Voice selects the synthesized voice for audio responses.
	// Available voices: "aster", "brook", "cedar", "juniper", "marlowe", "wren"
	Voice string

	// Description is free text about who the partner is (background,
	// temperament, speaking style).
	Description string
}

// PracticeMode is the conversational focus for a session.
type PracticeMode string

const (
	ModeFreeTalk      PracticeMode = "free_talk"
	ModeRolePlay      PracticeMode = "role_play"
	ModePronunciation PracticeMode = "pronunciation"
	ModeInterview     PracticeMode = "interview"
)

// modeFocus maps each practice mode to the instruction text describing it.
var modeFocus = map[PracticeMode]string{
	ModeFreeTalk:      "Have a relaxed, open-ended conversation about whatever the learner brings up.",
	ModeRolePlay:      "Act out everyday scenarios (ordering food, asking directions, job errands) in character.",
	ModePronunciation: "Focus on pronunciation: gently repeat back mispronounced words and have the learner try again.",
	ModeInterview:     "Conduct a friendly mock interview, asking follow-up questions about the learner's answers.",
}

// validVoices are the display voice identifiers the dialogue service accepts.
var validVoices = []string{"aster", "brook", "cedar", "juniper", "marlowe", "wren"}

// maxInstructionsLen caps the generated system instruction string.
const maxInstructionsLen = 10000

// ValidatePersona checks a persona against the service's constraints.
func ValidatePersona(p PersonaConfig) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("persona name cannot be empty")
	}
	valid := false
	for _, v := range validVoices {
		if p.Voice == v {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid voice %q, must be one of: %v", p.Voice, validVoices)
	}
	return nil
}

// ValidateConnectRequest validates the full per-session configuration.
func ValidateConnectRequest(req ConnectRequest) error {
	if err := ValidatePersona(req.Persona); err != nil {
		return err
	}
	if strings.TrimSpace(req.Proficiency) == "" {
		return errors.New("proficiency level cannot be empty")
	}
	if req.Mode != "" {
		if _, ok := modeFocus[req.Mode]; !ok {
			return fmt.Errorf("invalid practice mode %q", req.Mode)
		}
	}
	if len(req.History) > 0 {
		for i, turn := range req.History {
			if turn.Role != RoleUser && turn.Role != RoleModel {
				return fmt.Errorf("history turn %d has invalid role %q", i, turn.Role)
			}
		}
	}
	return nil
}

// buildInstructions assembles the free-text system instruction for the setup
// frame: persona, proficiency level, practice focus, and an optional
// prior-turn summary for continuity. The history is prose context for the
// model only; it is never replayed through the wire protocol's state.
func buildInstructions(req ConnectRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a conversation partner helping someone practice speaking.", req.Persona.Name)
	if desc := strings.TrimSpace(req.Persona.Description); desc != "" {
		b.WriteString(" ")
		b.WriteString(desc)
	}
	fmt.Fprintf(&b, "\nThe learner's level is %s: match your vocabulary and pace to it.", req.Proficiency)

	mode := req.Mode
	if mode == "" {
		mode = ModeFreeTalk
	}
	b.WriteString("\n")
	b.WriteString(modeFocus[mode])
	b.WriteString("\nKeep replies short and conversational. Speak, do not lecture.")

	if ctx := formatHistoryContext(req.History); ctx != "" {
		b.WriteString("\n\n")
		b.WriteString(ctx)
	}

	s := b.String()
	if len(s) > maxInstructionsLen {
		return "", fmt.Errorf("instructions too long (%d characters), maximum is %d", len(s), maxInstructionsLen)
	}
	return s, nil
}
