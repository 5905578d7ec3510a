package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raorajnish/Fillora-Kaizen/internal/agent"
	"github.com/raorajnish/Fillora-Kaizen/internal/backend"
	"github.com/raorajnish/Fillora-Kaizen/internal/command"
	"github.com/raorajnish/Fillora-Kaizen/internal/store"
)

type fakeSession struct {
	state      agent.State
	listening  bool
	startErr   error
	utterances []string
	analyzed   int
	filled     int
	logouts    int
}

func (f *fakeSession) Snapshot() agent.State { return f.state }
func (f *fakeSession) HandleUtterance(_ context.Context, text string) {
	f.utterances = append(f.utterances, text)
}
func (f *fakeSession) Analyze(context.Context) { f.analyzed++ }
func (f *fakeSession) Fill(context.Context)    { f.filled++ }
func (f *fakeSession) StartListening() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.listening = true
	return nil
}
func (f *fakeSession) StopListening()  { f.listening = false }
func (f *fakeSession) Listening() bool { return f.listening }
func (f *fakeSession) Logout()         { f.logouts++ }

type fakeBackend struct {
	loginErr   error
	historyErr error
	selected   string
	profile    map[string]string
}

func (f *fakeBackend) SocialLogin(_ context.Context, accessToken string, info backend.UserInfo) (string, backend.User, error) {
	if f.loginErr != nil {
		return "", backend.User{}, f.loginErr
	}
	return "tok-" + accessToken, backend.User{ID: 7, Email: info.Email, Name: info.Name}, nil
}
func (f *fakeBackend) History(context.Context) ([]backend.Submission, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return []backend.Submission{{ID: 1, Website: "example.com", Fields: []command.FormField{{Name: "email"}}}}, nil
}
func (f *fakeBackend) ChatHistory(_ context.Context, limit int) ([]backend.ChatTurn, error) {
	return []backend.ChatTurn{{Role: "assistant", Message: "hi"}}, nil
}
func (f *fakeBackend) Profile(context.Context) (map[string]string, error) { return f.profile, nil }
func (f *fakeBackend) UpdateProfile(_ context.Context, data map[string]string) error {
	f.profile = data
	return nil
}
func (f *fakeBackend) Models(context.Context) (backend.ModelSettings, error) {
	return backend.ModelSettings{CurrentModel: "gemini"}, nil
}
func (f *fakeBackend) SelectModel(_ context.Context, name string) error {
	f.selected = name
	return nil
}

type fakeSaver struct {
	saved []store.Credentials
	err   error
}

func (f *fakeSaver) Save(creds store.Credentials) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, creds)
	return nil
}

func newTestServer(sess *fakeSession, api *fakeBackend, saver *fakeSaver) *Server {
	if sess == nil {
		sess = &fakeSession{state: agent.State{Status: agent.StatusIdle, EditingMode: agent.ModeNone}}
	}
	if api == nil {
		api = &fakeBackend{}
	}
	if saver == nil {
		saver = &fakeSaver{}
	}
	return New(sess, api, saver, NewHub())
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Echo.ServeHTTP(w, r)
	return w
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	w := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestState_ReportsSessionSnapshot(t *testing.T) {
	sess := &fakeSession{state: agent.State{Status: agent.StatusEditing, EditingMode: agent.ModeUpdate}, listening: true}
	srv := newTestServer(sess, nil, nil)
	w := doJSON(t, srv, http.MethodGet, "/api/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp stateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State.Status != agent.StatusEditing || !resp.Listening {
		t.Fatalf("unexpected state response: %+v", resp)
	}
}

func TestMessage_RequiresText(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	if w := doJSON(t, srv, http.MethodPost, "/api/message", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := doJSON(t, srv, http.MethodPost, "/api/message", `not-json`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", w.Code)
	}
}

func TestMessage_RoutesToSession(t *testing.T) {
	sess := &fakeSession{}
	srv := newTestServer(sess, nil, nil)
	w := doJSON(t, srv, http.MethodPost, "/api/message", `{"text":"analyze this page"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(sess.utterances) != 1 || sess.utterances[0] != "analyze this page" {
		t.Fatalf("utterances = %v", sess.utterances)
	}
}

func TestMicStart_UnavailableWhenTranscriberDown(t *testing.T) {
	sess := &fakeSession{startErr: errors.New("no mic")}
	srv := newTestServer(sess, nil, nil)
	if w := doJSON(t, srv, http.MethodPost, "/api/mic/start", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestMicStartStop_TogglesListening(t *testing.T) {
	sess := &fakeSession{}
	srv := newTestServer(sess, nil, nil)
	doJSON(t, srv, http.MethodPost, "/api/mic/start", "")
	if !sess.listening {
		t.Fatalf("expected listening after start")
	}
	doJSON(t, srv, http.MethodPost, "/api/mic/stop", "")
	if sess.listening {
		t.Fatalf("expected not listening after stop")
	}
}

func TestAnalyzeAndFill_DriveSession(t *testing.T) {
	sess := &fakeSession{}
	srv := newTestServer(sess, nil, nil)
	doJSON(t, srv, http.MethodPost, "/api/analyze", "")
	doJSON(t, srv, http.MethodPost, "/api/fill", "")
	if sess.analyzed != 1 || sess.filled != 1 {
		t.Fatalf("analyzed=%d filled=%d", sess.analyzed, sess.filled)
	}
}

func TestLogin_PersistsCredentials(t *testing.T) {
	saver := &fakeSaver{}
	srv := newTestServer(nil, &fakeBackend{}, saver)
	body := `{"access_token":"google-token","user_info":{"email":"a@b.c","name":"Alice"}}`
	w := doJSON(t, srv, http.MethodPost, "/api/login", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token != "tok-google-token" || resp.User.Email != "a@b.c" {
		t.Fatalf("unexpected login response: %+v", resp)
	}
	if len(saver.saved) != 1 || saver.saved[0].AuthToken != "tok-google-token" {
		t.Fatalf("credentials not persisted: %+v", saver.saved)
	}
}

func TestLogin_RejectsMissingToken(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	if w := doJSON(t, srv, http.MethodPost, "/api/login", `{"user_info":{}}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLogin_UnauthorizedOnBackendReject(t *testing.T) {
	srv := newTestServer(nil, &fakeBackend{loginErr: errors.New("bad token")}, nil)
	body := `{"access_token":"nope"}`
	if w := doJSON(t, srv, http.MethodPost, "/api/login", body); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLogout_ResetsSession(t *testing.T) {
	sess := &fakeSession{}
	srv := newTestServer(sess, nil, nil)
	if w := doJSON(t, srv, http.MethodPost, "/api/logout", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if sess.logouts != 1 {
		t.Fatalf("logouts = %d", sess.logouts)
	}
}

func TestHistory_BadGatewayOnBackendError(t *testing.T) {
	srv := newTestServer(nil, &fakeBackend{historyErr: errors.New("down")}, nil)
	if w := doJSON(t, srv, http.MethodGet, "/api/history", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestChat_RejectsInvalidLimit(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	if w := doJSON(t, srv, http.MethodGet, "/api/chat?limit=zero", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := doJSON(t, srv, http.MethodGet, "/api/chat?limit=10", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSelectModel_Validated(t *testing.T) {
	api := &fakeBackend{}
	srv := newTestServer(nil, api, nil)
	if w := doJSON(t, srv, http.MethodPost, "/api/models", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := doJSON(t, srv, http.MethodPost, "/api/models", `{"model_name":"gpt"}`); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if api.selected != "gpt" {
		t.Fatalf("selected = %q", api.selected)
	}
}

func TestProfile_RoundTrip(t *testing.T) {
	api := &fakeBackend{profile: map[string]string{"full_name": "Alice"}}
	srv := newTestServer(nil, api, nil)
	w := doJSON(t, srv, http.MethodGet, "/api/profile", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doJSON(t, srv, http.MethodPut, "/api/profile", `{"full_name":"Bob"}`); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if api.profile["full_name"] != "Bob" {
		t.Fatalf("profile = %v", api.profile)
	}
}
