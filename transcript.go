package lingolive

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Role identifies which side of the conversation produced a transcript or
// turn: the human learner or the dialogue model.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ConversationTurn is one complete utterance by either role. Immutable once
// finalized. Turns are owned by the caller; the session manager only reads a
// bounded recent window of them to seed continuity context for a new session.
type ConversationTurn struct {
	Role      Role
	Text      string
	CreatedAt time.Time
}

// historyWindow is the number of recent turns injected into the setup
// instructions of a new session as a memory aid for the model.
const historyWindow = 4

// formatHistoryContext renders the most recent turns as prose for the setup
// instructions. It is context for the model, not part of the structured wire
// state. Returns "" when there is no usable history.
func formatHistoryContext(history []ConversationTurn) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var b strings.Builder
	for _, turn := range history {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		speaker := "Learner"
		if turn.Role == RoleModel {
			speaker = "You"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, text)
	}
	if b.Len() == 0 {
		return ""
	}
	return "The conversation so far, in case you were cut off (do not greet again, pick up where you left off):\n" + b.String()
}

// transcripts holds the two per-turn accumulation buffers, one per role.
// Each inbound delta appends to its role's buffer; a turn-complete signal
// finalizes and resets both buffers at once, even if only one role produced
// text in that turn.
type transcripts struct {
	mu    sync.Mutex
	user  strings.Builder
	model strings.Builder
}

// append adds a delta to the role's buffer and returns the cumulative
// text-so-far for the current turn.
func (t *transcripts) append(role Role, delta string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.builder(role)
	b.WriteString(delta)
	return b.String()
}

// finalize returns whatever has accumulated for both roles (possibly empty)
// and resets both buffers. Called exactly once per completed turn.
func (t *transcripts) finalize() (user, model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	user = t.user.String()
	model = t.model.String()
	t.user.Reset()
	t.model.Reset()
	return user, model
}

func (t *transcripts) builder(role Role) *strings.Builder {
	if role == RoleModel {
		return &t.model
	}
	return &t.user
}
