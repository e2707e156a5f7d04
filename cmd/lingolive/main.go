// Command lingolive runs a realtime voice practice session from the
// terminal. It owns the orchestration policy the library leaves to callers:
// conversation history, reconnect-on-duration-limit, and bounded retry with
// a fixed backoff on genuine errors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	lingolive "github.com/lingolive/lingolive"
	"github.com/lingolive/lingolive/device"
)

const (
	maxErrorRetries = 3
	retryBackoff    = 2 * time.Second
)

// personas is the built-in partner roster. The full avatar catalog lives in
// the app layer; these are enough to drive the CLI.
var personas = map[string]lingolive.PersonaConfig{
	"mira": {
		Name:        "Mira",
		Voice:       "juniper",
		Description: "A cheerful barista from Lisbon who loves travel stories and asks lots of questions.",
	},
	"tomas": {
		Name:        "Tomas",
		Voice:       "cedar",
		Description: "A patient retired teacher who speaks slowly and rephrases when the learner struggles.",
	},
	"aya": {
		Name:        "Aya",
		Voice:       "wren",
		Description: "A fast-talking radio host who keeps the energy up and teases politely.",
	},
}

func main() {
	var (
		endpoint = flag.String("endpoint", envOr("LINGOLIVE_ENDPOINT", "https://dialogue.lingolive.dev"), "dialogue service endpoint")
		model    = flag.String("model", envOr("LINGOLIVE_MODEL", "dialogue-native-audio"), "dialogue model")
		persona  = flag.String("persona", "mira", "conversation partner: mira, tomas or aya")
		level    = flag.String("level", "Intermediate", "proficiency level")
		mode     = flag.String("mode", string(lingolive.ModeFreeTalk), "practice mode: free_talk, role_play, pronunciation or interview")
		saveWAV  = flag.String("save-audio", "", "write the partner's synthesized audio to this WAV file on exit")
	)
	flag.Parse()

	p, ok := personas[strings.ToLower(*persona)]
	if !ok {
		log.Fatalf("unknown persona %q", *persona)
	}

	key, err := apiKey()
	if err != nil {
		log.Fatalf("api key: %v", err)
	}

	var devices lingolive.DeviceProvider = device.Provider{}
	var recorder *lingolive.RecordingProvider
	if *saveWAV != "" {
		recorder = lingolive.NewRecordingProvider(devices)
		devices = recorder
	}

	cfg := lingolive.Config{
		Endpoint:          *endpoint,
		Model:             *model,
		Credential:        lingolive.APIKey(key),
		Devices:           devices,
		KeepAliveInterval: 10 * time.Second,
		StructuredLogger:  lingolive.NewLoggerFromEnv(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	o := &orchestrator{cfg: cfg, persona: p, level: *level, mode: lingolive.PracticeMode(*mode)}
	runErr := o.run(ctx)

	if recorder != nil && recorder.Len() > 0 {
		if err := os.WriteFile(*saveWAV, recorder.WAV(), 0o644); err != nil {
			log.Printf("save audio: %v", err)
		} else {
			fmt.Printf("saved %s's audio to %s\n", p.Name, *saveWAV)
		}
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}

// sessionEvent is one status transition observed from the live session.
type sessionEvent struct {
	status  lingolive.Status
	message string
}

// orchestrator holds one manager at a time and replaces it wholesale on
// every reconnect, carrying the accumulated history forward.
type orchestrator struct {
	cfg     lingolive.Config
	persona lingolive.PersonaConfig
	level   string
	mode    lingolive.PracticeMode

	history []lingolive.ConversationTurn
}

func (o *orchestrator) run(ctx context.Context) error {
	fmt.Printf("Talking to %s (%s, %s). Ctrl-C to hang up.\n", o.persona.Name, o.level, o.mode)

	retries := 0
	for {
		events := make(chan sessionEvent, 16)
		mgr, err := o.connect(ctx, events)
		if err != nil {
			retries++
			if retries > maxErrorRetries {
				return fmt.Errorf("giving up after %d attempts: %w", retries, err)
			}
			fmt.Printf("connection failed (%v), retrying in %v...\n", err, retryBackoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryBackoff):
			}
			continue
		}
		retries = 0

		next, err := o.observe(ctx, events)
		mgr.StopAll()
		if err != nil || !next {
			return err
		}
	}
}

// connect builds a fresh manager and opens a session seeded with the
// accumulated history.
func (o *orchestrator) connect(ctx context.Context, events chan<- sessionEvent) (*lingolive.Manager, error) {
	mgr, err := lingolive.New(o.cfg)
	if err != nil {
		return nil, err
	}
	err = mgr.Connect(ctx, lingolive.ConnectRequest{
		Persona:     o.persona,
		Proficiency: o.level,
		Mode:        o.mode,
		History:     o.history,
		Callbacks: lingolive.Callbacks{
			OnTranscription: o.onTranscription,
			OnStatusChange: func(status lingolive.Status, message string) {
				events <- sessionEvent{status, message}
			},
			OnKeyRequired: func() {
				fmt.Println("\nThe service rejected the API key. Set LINGOLIVE_API_KEY and restart.")
			},
		},
	})
	if err != nil {
		mgr.StopAll()
		return nil, err
	}
	return mgr, nil
}

// observe consumes status events until the session ends. It returns true
// when the caller should immediately reconnect with history.
func (o *orchestrator) observe(ctx context.Context, events <-chan sessionEvent) (reconnect bool, err error) {
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case ev := <-events:
			switch ev.status {
			case lingolive.StatusOpen:
				fmt.Println("-- connected, start talking --")
			case lingolive.StatusReconnecting:
				// Session-duration limit, not a failure: resume seamlessly.
				return true, nil
			case lingolive.StatusClosed:
				fmt.Println("-- session ended --")
				return false, nil
			case lingolive.StatusError:
				return false, fmt.Errorf("session error: %s", ev.message)
			}
		}
	}
}

// onTranscription renders partial transcripts in place and records finalized
// turns into the history window used for continuity.
func (o *orchestrator) onTranscription(role lingolive.Role, text string, final bool) {
	label := "you"
	if role == lingolive.RoleModel {
		label = o.persona.Name
	}
	if !final {
		fmt.Printf("\r[%s] %s", label, text)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Printf("\r[%s] %s\n", label, text)
	o.history = append(o.history, lingolive.ConversationTurn{
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	})
}

// apiKey resolves the credential: environment first, interactive hidden
// prompt as the fallback.
func apiKey() (string, error) {
	if key := os.Getenv("LINGOLIVE_API_KEY"); key != "" {
		return key, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("LINGOLIVE_API_KEY is not set and stdin is not a terminal")
	}
	fmt.Print("API key: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	return key, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
