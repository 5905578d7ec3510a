package agent

import (
	"context"

	"github.com/raorajnish/Fillora-Kaizen/internal/backend"
	"github.com/raorajnish/Fillora-Kaizen/internal/command"
)

// Transcriber is the minimal interface for live speech input. The listening
// flag is owned by the speech engine; the session only mirrors it. Each time
// listening stops with accumulated text, one finalized utterance is emitted.
type Transcriber interface {
	Connect() error
	StartListening() error
	StopListening()
	Listening() bool
	// Transcripts emits live, possibly-partial text for display.
	Transcripts() <-chan string
	// Finalized emits one complete utterance per listening stop.
	Finalized() <-chan string
	Close() error
}

// Speaker renders text to audible speech. Speaking a new message must cancel
// any in-flight utterance first; only the most recent message is ever
// audible. Cancel stops playback immediately.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Cancel()
}

// PageCapture is the snapshot produced in the target page's context.
type PageCapture struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// PageBridge executes the capture and fill functions inside the active tab.
// Fill is best-effort per field: elements that do not resolve are skipped.
type PageBridge interface {
	Capture(ctx context.Context) (PageCapture, error)
	Fill(ctx context.Context, fields []command.FormField) error
}

// Backend is the slice of the Fillora API the session drives.
type Backend interface {
	Analyze(ctx context.Context, pageURL, html string, history []backend.ChatTurn) ([]command.FormField, string, error)
	Chat(ctx context.Context, message, pageURL string) (string, error)
	SaveChat(ctx context.Context, role, message, pageURL string) error
	ChatHistory(ctx context.Context, limit int) ([]backend.ChatTurn, error)
	RecordFill(ctx context.Context, form command.FormData) error
}

// CredentialClearer wipes the locally persisted token and user on logout.
type CredentialClearer interface {
	Clear() error
}

// Status is the session's conversation stage.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusListening  Status = "listening"
	StatusProcessing Status = "processing"
	StatusEditing    Status = "editing"
	StatusFilling    Status = "filling"
	StatusDone       Status = "done"
)

// EditingMode says which field-edit sub-dialog, if any, is pending input.
type EditingMode string

const (
	ModeNone   EditingMode = "none"
	ModeUpdate EditingMode = "update"
	ModeCreate EditingMode = "create"
)

// State is a snapshot of the session. Invariants: AwaitingFieldInput implies
// EditingMode != ModeNone, and StatusEditing implies CurrentForm != nil.
type State struct {
	Status             Status            `json:"status"`
	EditingMode        EditingMode       `json:"editing_mode"`
	AwaitingFieldInput bool              `json:"awaiting_field_input"`
	CurrentForm        *command.FormData `json:"current_form,omitempty"`
}
