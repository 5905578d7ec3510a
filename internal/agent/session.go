// Package agent owns the conversation: it turns finalized utterances into
// intents, drives the idle/listening/processing/editing/filling cycle, and
// dispatches to the page bridge and the Fillora backend.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/raorajnish/Fillora-Kaizen/internal/backend"
	"github.com/raorajnish/Fillora-Kaizen/internal/command"
)

const (
	// doneResetDelay is the pause on the done screen before the session
	// returns to idle and the form data is discarded.
	doneResetDelay = 2 * time.Second
	// endConversationDelay lets the goodbye message land before reset.
	endConversationDelay = 1500 * time.Millisecond

	chatHistoryLimit = 50

	welcomeMessage = "Hello! I'm your voice assistant. How can I help you today?"
)

// Session orchestrates one popup lifetime: exactly one instance owns the
// SessionState, and every mutation goes through it.
type Session struct {
	transcriber  Transcriber
	speaker      Speaker
	bridge       PageBridge
	api          Backend
	creds        CredentialClearer
	onMessage    func(role, text string)
	onTranscript func(text string)

	doneDelay time.Duration
	endDelay  time.Duration

	runCtx context.Context

	mu    sync.Mutex
	state State
	// epoch is bumped on every full reset (logout, end-conversation). An
	// asynchronous step that finishes after the epoch moved on discards its
	// result instead of re-applying it to a fresh session.
	epoch   int
	micOK   bool
	history []backend.ChatTurn
}

// NewSession constructs a Session. speaker may be nil when the platform has
// no speech output; messages are then only displayed.
func NewSession(t Transcriber, sp Speaker, br PageBridge, api Backend, creds CredentialClearer,
	onMessage func(role, text string), onTranscript func(text string)) *Session {
	if sp == nil {
		sp = nopSpeaker{}
	}
	return &Session{
		transcriber:  t,
		speaker:      sp,
		bridge:       br,
		api:          api,
		creds:        creds,
		onMessage:    onMessage,
		onTranscript: onTranscript,
		doneDelay:    doneResetDelay,
		endDelay:     endConversationDelay,
		state:        State{Status: StatusIdle, EditingMode: ModeNone},
	}
}

// Start connects the transcriber, loads chat history, and begins processing
// utterances. It returns a stop function.
func (s *Session) Start(ctx context.Context) (func(), error) {
	s.runCtx = ctx

	if err := s.transcriber.Connect(); err != nil {
		// Voice input is disabled but the text path keeps working.
		log.Printf("speech input unavailable: %v", err)
	} else {
		s.mu.Lock()
		s.micOK = true
		s.mu.Unlock()
	}

	if turns, err := s.api.ChatHistory(ctx, chatHistoryLimit); err != nil {
		log.Printf("load chat history: %v", err)
	} else {
		s.mu.Lock()
		s.history = turns
		s.mu.Unlock()
		for _, t := range turns {
			s.render(t.Role, t.Message)
		}
	}

	s.announce(welcomeMessage)

	// Live partial transcripts, for display only.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-s.transcriber.Transcripts():
				if !ok {
					return
				}
				if s.onTranscript != nil && t != "" {
					s.onTranscript(t)
				}
			}
		}
	}()

	// Finalized utterances drive the state machine, in arrival order.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case utterance, ok := <-s.transcriber.Finalized():
				if !ok {
					return
				}
				s.mu.Lock()
				if s.state.Status == StatusListening {
					// Listening ended; the handlers below decide what comes next.
					s.state.Status = StatusIdle
				}
				s.mu.Unlock()
				s.HandleUtterance(ctx, utterance)
			}
		}
	}()

	stop := func() {
		s.speaker.Cancel()
		_ = s.transcriber.Close()
	}
	return stop, nil
}

// StartListening turns the microphone on. The session mirrors the
// transcriber's listening flag rather than running timers of its own.
func (s *Session) StartListening() error {
	s.mu.Lock()
	micOK := s.micOK
	s.mu.Unlock()
	if !micOK {
		return ErrSpeechUnsupported
	}
	if err := s.transcriber.StartListening(); err != nil {
		return fmt.Errorf("%w: %v", ErrSpeechUnsupported, err)
	}
	s.mu.Lock()
	if s.state.Status == StatusIdle {
		s.state.Status = StatusListening
	}
	s.mu.Unlock()
	return nil
}

// StopListening turns the microphone off. It cancels a pending field-input
// sub-dialog and any in-flight speech, but not backend requests already sent.
func (s *Session) StopListening() {
	s.transcriber.StopListening()
	s.speaker.Cancel()
	s.mu.Lock()
	s.state.AwaitingFieldInput = false
	s.state.EditingMode = ModeNone
	if s.state.Status == StatusListening {
		s.state.Status = StatusIdle
	}
	s.mu.Unlock()
}

// Listening reports the transcriber's flag.
func (s *Session) Listening() bool { return s.transcriber.Listening() }

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if s.state.CurrentForm != nil {
		form := *s.state.CurrentForm
		form.Fields = append([]command.FormField(nil), s.state.CurrentForm.Fields...)
		st.CurrentForm = &form
	}
	return st
}

// HandleUtterance routes one finalized utterance (or typed message) through
// the parser and into the matching handler. It is the single entry point for
// both the voice and the text input path.
func (s *Session) HandleUtterance(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	epoch := s.epoch
	if s.state.AwaitingFieldInput {
		mode := s.state.EditingMode
		s.mu.Unlock()
		// Logout escapes the sub-dialog: it must work from any state.
		if command.Parse(text, command.Context{}).Intent == command.IntentLogout {
			s.render("user", text)
			s.Logout()
			return
		}
		s.handleFieldInput(epoch, mode, text)
		return
	}
	pctx := command.Context{
		InEditMode:         s.state.EditingMode != ModeNone,
		FieldEditorVisible: s.state.CurrentForm != nil,
	}
	s.mu.Unlock()

	cmd := command.Parse(text, pctx)
	if cmd.Intent == command.IntentNoop {
		return
	}
	s.render("user", text)

	switch cmd.Intent {
	case command.IntentAnalyzePage:
		s.handleAnalyze(ctx, epoch)
	case command.IntentUpdateField:
		s.beginFieldEdit(epoch, ModeUpdate)
	case command.IntentCreateField:
		s.beginFieldEdit(epoch, ModeCreate)
	case command.IntentFillForm:
		s.handleFill(ctx, epoch)
	case command.IntentLogout:
		s.Logout()
	case command.IntentEndConversation:
		s.handleEndConversation(epoch)
	case command.IntentGeneralChat:
		s.handleChat(ctx, epoch, text)
	}
}

// Analyze runs the capture-and-analyze flow, the same path the analyze-page
// intent takes. Exposed for the popup's scrape button.
func (s *Session) Analyze(ctx context.Context) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	s.handleAnalyze(ctx, epoch)
}

// Fill runs the form-fill flow, the same path the fill-form intent takes.
func (s *Session) Fill(ctx context.Context) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	s.handleFill(ctx, epoch)
}

func (s *Session) handleAnalyze(ctx context.Context, epoch int) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.state.Status = StatusProcessing
	history := append([]backend.ChatTurn(nil), s.history...)
	s.mu.Unlock()

	s.announce("Scraping page and analyzing with AI...")

	capture, err := s.bridge.Capture(ctx)
	if err != nil {
		log.Printf("page capture: %v", fmt.Errorf("%w: %v", ErrAnalyzeFailed, err))
		s.failToIdle(epoch, "Error scraping page. Please try again.")
		return
	}

	fields, _, err := s.api.Analyze(ctx, capture.URL, capture.HTML, history)
	if err != nil {
		log.Printf("analyze: %v", fmt.Errorf("%w: %v", ErrAnalyzeFailed, err))
		s.failToIdle(epoch, "Error analyzing page. Please try again.")
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		log.Printf("analyze result discarded: session was reset while the request was in flight")
		return
	}
	if len(fields) == 0 {
		s.state.Status = StatusIdle
		s.mu.Unlock()
		s.announceAndSave(ctx, "No form fields detected on this page.", capture.URL)
		return
	}
	s.state.Status = StatusEditing
	s.state.CurrentForm = &command.FormData{URL: capture.URL, Fields: fields}
	s.mu.Unlock()

	s.announceAndSave(ctx, fieldSummary(fields), capture.URL)
}

func fieldSummary(fields []command.FormField) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d form fields:", len(fields))
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = "N/A"
		}
		fmt.Fprintf(&b, "\n- %s: %s", f.Name, value)
	}
	b.WriteString("\nSay update, create, or fill it when you are ready.")
	return b.String()
}

func (s *Session) beginFieldEdit(epoch int, mode EditingMode) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if s.state.CurrentForm == nil {
		// Field edits are only actionable with an analyzed form in hand.
		s.mu.Unlock()
		s.announce("Analyze a page first, then we can edit its fields.")
		return
	}
	s.state.Status = StatusEditing
	s.state.EditingMode = mode
	s.state.AwaitingFieldInput = true
	s.mu.Unlock()

	if mode == ModeUpdate {
		s.announce("Which field should I update, and to what value? For example: update email to john@example.com.")
	} else {
		s.announce("What field should I add, and with what value? For example: add company as Acme.")
	}
}

func (s *Session) handleFieldInput(epoch int, mode EditingMode, text string) {
	s.render("user", text)

	in, err := command.ExtractFieldInput(text)
	if err != nil {
		// Re-prompt and keep the sub-dialog open; the utterance is not
		// silently discarded and the next one is routed here again.
		s.announce("Sorry, I didn't catch the field and value. Please try again, for example: update email to john@example.com.")
		return
	}

	op := in.Op
	if op == command.OpAuto {
		if mode == ModeCreate {
			op = command.OpCreate
		} else {
			op = command.OpUpdate
		}
	}

	s.mu.Lock()
	if s.epoch != epoch || s.state.CurrentForm == nil {
		s.mu.Unlock()
		return
	}
	form := s.state.CurrentForm
	var msg string
	switch op {
	case command.OpUpdate:
		if err := form.UpdateField(in.Name, in.Value); err != nil {
			s.state.AwaitingFieldInput = false
			s.state.EditingMode = ModeNone
			s.mu.Unlock()
			s.announce(fmt.Sprintf("I couldn't find a field named %s on this form.", in.Name))
			return
		}
		msg = fmt.Sprintf("Updated %s to %s.", in.Name, in.Value)
	case command.OpCreate:
		form.CreateField(in.Name, in.Value)
		msg = fmt.Sprintf("Added %s with value %s.", in.Name, in.Value)
	}
	s.state.AwaitingFieldInput = false
	s.state.EditingMode = ModeNone
	s.mu.Unlock()

	s.announce(msg + " Anything else, or should I fill the form?")
}

func (s *Session) handleFill(ctx context.Context, epoch int) {
	s.mu.Lock()
	if s.epoch != epoch || s.state.CurrentForm == nil {
		s.mu.Unlock()
		return
	}
	form := *s.state.CurrentForm
	form.Fields = append([]command.FormField(nil), s.state.CurrentForm.Fields...)
	s.state.Status = StatusFilling
	s.mu.Unlock()

	s.announce("Filling form...")

	if err := s.bridge.Fill(ctx, form.Fields); err != nil {
		log.Printf("fill: %v", fmt.Errorf("%w: %v", ErrFillFailed, err))
		s.failToEditing(epoch, "Error filling form. Please try again.")
		return
	}
	if err := s.api.RecordFill(ctx, form); err != nil {
		log.Printf("record fill: %v", fmt.Errorf("%w: %v", ErrFillFailed, err))
		s.failToEditing(epoch, "The form was filled but saving it failed. Say fill it to retry.")
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.state.Status = StatusDone
	s.mu.Unlock()

	s.announceAndSave(ctx, "Form filled successfully!", form.URL)

	time.AfterFunc(s.doneDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.state.Status != StatusDone {
			return
		}
		s.state.Status = StatusIdle
		s.state.CurrentForm = nil
	})
}

func (s *Session) handleChat(ctx context.Context, epoch int, text string) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	prev := s.state.Status
	s.state.Status = StatusProcessing
	s.history = append(s.history, backend.ChatTurn{Role: "user", Message: text})
	s.mu.Unlock()

	// Best-effort page context for chat persistence.
	pageURL := ""
	if capture, err := s.bridge.Capture(ctx); err == nil {
		pageURL = capture.URL
	}

	reply, err := s.api.Chat(ctx, text, pageURL)

	s.mu.Lock()
	if s.epoch == epoch && s.state.Status == StatusProcessing {
		s.state.Status = prev
	}
	stale := s.epoch != epoch
	if err == nil && !stale {
		s.history = append(s.history, backend.ChatTurn{Role: "assistant", Message: reply})
	}
	s.mu.Unlock()

	if stale {
		return
	}
	if err != nil {
		log.Printf("chat: %v", fmt.Errorf("%w: %v", ErrNetwork, err))
		s.announce("Sorry, I encountered an error. Please try again.")
		return
	}
	s.announce(reply)
}

func (s *Session) handleEndConversation(epoch int) {
	s.announce("Okay! Let me know if you need anything else. Goodbye!")
	time.AfterFunc(s.endDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch {
			return
		}
		s.resetLocked()
	})
}

// Logout resets the session from any state and wipes stored credentials.
func (s *Session) Logout() {
	s.speaker.Cancel()
	s.mu.Lock()
	s.resetLocked()
	s.history = nil
	s.mu.Unlock()
	if err := s.creds.Clear(); err != nil {
		log.Printf("clear credentials: %v", err)
	}
	s.render("assistant", "Signed out.")
}

// resetLocked returns the state to {idle, none, false, nil} and invalidates
// every in-flight asynchronous step. Callers hold s.mu.
func (s *Session) resetLocked() {
	s.epoch++
	s.state = State{Status: StatusIdle, EditingMode: ModeNone}
}

func (s *Session) failToIdle(epoch int, msg string) {
	s.mu.Lock()
	if s.epoch == epoch {
		s.state.Status = StatusIdle
	}
	s.mu.Unlock()
	s.announce(msg)
}

// failToEditing keeps the form so the user can say "fill it" again.
func (s *Session) failToEditing(epoch int, msg string) {
	s.mu.Lock()
	if s.epoch == epoch && s.state.CurrentForm != nil {
		s.state.Status = StatusEditing
	} else if s.epoch == epoch {
		s.state.Status = StatusIdle
	}
	s.mu.Unlock()
	s.announce(msg)
}

// announce shows and speaks one assistant message. Speech runs on the
// session's own lifetime so an intent finishing does not cut audio short;
// the speaker itself cancels any prior unfinished utterance.
func (s *Session) announce(text string) {
	s.render("assistant", text)
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		if err := s.speaker.Speak(ctx, text); err != nil && ctx.Err() == nil {
			log.Printf("speech output: %v", err)
		}
	}()
}

// announceAndSave additionally appends the message to the stored chat
// history, best effort.
func (s *Session) announceAndSave(ctx context.Context, text, pageURL string) {
	s.announce(text)
	s.mu.Lock()
	s.history = append(s.history, backend.ChatTurn{Role: "assistant", Message: text})
	s.mu.Unlock()
	if err := s.api.SaveChat(ctx, "assistant", text, pageURL); err != nil {
		log.Printf("save chat message: %v", err)
	}
}

func (s *Session) render(role, text string) {
	if s.onMessage != nil {
		s.onMessage(role, text)
	}
}

type nopSpeaker struct{}

func (nopSpeaker) Speak(context.Context, string) error { return nil }
func (nopSpeaker) Cancel()                             {}
