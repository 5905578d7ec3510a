// Package backend is the HTTP client for the Fillora API: auth, chat, page
// analysis, history, profile and model settings. Every authenticated call
// carries the bearer token captured at login.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raorajnish/Fillora-Kaizen/internal/command"
)

type Client struct {
	HTTPClient *http.Client
	baseURL    string

	mu    sync.RWMutex
	token string
	user  User
}

func NewClient(baseURL string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// SetCredentials installs the session token and user used on subsequent
// authenticated calls.
func (c *Client) SetCredentials(token string, user User) {
	c.mu.Lock()
	c.token = token
	c.user = user
	c.mu.Unlock()
}

// ClearCredentials drops the session token, returning the client to the
// unauthenticated state.
func (c *Client) ClearCredentials() {
	c.mu.Lock()
	c.token = ""
	c.user = User{}
	c.mu.Unlock()
}

func (c *Client) credentials() (string, User) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.user
}

// SocialLogin exchanges a Google access token plus profile info for an
// application session token and user record, and installs them on the client.
func (c *Client) SocialLogin(ctx context.Context, accessToken string, info UserInfo) (string, User, error) {
	var out socialLoginResponse
	err := c.do(ctx, http.MethodPost, "/api/social-login/", socialLoginRequest{
		AccessToken: accessToken,
		UserInfo:    info,
	}, &out)
	if err != nil {
		return "", User{}, err
	}
	c.SetCredentials(out.Token, out.User)
	return out.Token, out.User, nil
}

// Analyze sends the captured page and recent chat turns for AI field
// extraction.
func (c *Client) Analyze(ctx context.Context, pageURL, html string, history []ChatTurn) ([]command.FormField, string, error) {
	var out analyzeResponse
	err := c.do(ctx, http.MethodPost, "/api/analyze/", analyzeRequest{
		URL:         pageURL,
		HTML:        html,
		ChatHistory: history,
	}, &out)
	if err != nil {
		return nil, "", err
	}
	return out.Fields, out.Message, nil
}

// Chat appends a user message and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, message, pageURL string) (string, error) {
	var out chatResponse
	err := c.do(ctx, http.MethodPost, "/api/chat/", chatRequest{Message: message, URL: pageURL}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// SaveChat appends one turn to the stored chat history without requesting a
// reply.
func (c *Client) SaveChat(ctx context.Context, role, message, pageURL string) error {
	return c.do(ctx, http.MethodPost, "/api/chat/", chatRequest{Role: role, Message: message, URL: pageURL}, nil)
}

// ChatHistory lists up to limit past turns, oldest first.
func (c *Client) ChatHistory(ctx context.Context, limit int) ([]ChatTurn, error) {
	var out chatHistoryResponse
	path := "/api/chat/?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// RecordFill persists a completed form fill. The website column is the
// hostname of the filled page.
func (c *Client) RecordFill(ctx context.Context, form command.FormData) error {
	_, user := c.credentials()
	website := form.URL
	if u, err := url.Parse(form.URL); err == nil && u.Host != "" {
		website = u.Host
	}
	return c.do(ctx, http.MethodPost, "/api/fill-form/", fillFormRequest{
		URL:     form.URL,
		Website: website,
		Fields:  form.Fields,
		UserID:  user.ID,
	}, nil)
}

// History lists past form submissions for the signed-in user.
func (c *Client) History(ctx context.Context) ([]Submission, error) {
	_, user := c.credentials()
	var out historyResponse
	path := "/api/history/?user_id=" + strconv.Itoa(user.ID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	subs := make([]Submission, 0, len(out.Results))
	for _, r := range out.Results {
		s := Submission{ID: r.ID, Website: r.Website, URL: r.URL, CreatedAt: r.CreatedAt}
		if s.Website == "" {
			s.Website = r.URL
		}
		for _, f := range r.Fields {
			name := f.Name
			if name == "" {
				name = f.Field
			}
			s.Fields = append(s.Fields, command.FormField{Name: name, Value: f.Value})
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// Profile fetches the arbitrary key-value profile fields.
func (c *Client) Profile(ctx context.Context) (map[string]string, error) {
	var out profileResponse
	if err := c.do(ctx, http.MethodGet, "/api/profile/", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// UpdateProfile replaces the profile fields.
func (c *Client) UpdateProfile(ctx context.Context, data map[string]string) error {
	return c.do(ctx, http.MethodPut, "/api/profile/", map[string]map[string]string{"data": data}, nil)
}

// Models lists selectable AI backends and the current preference.
func (c *Client) Models(ctx context.Context) (ModelSettings, error) {
	var out ModelSettings
	err := c.do(ctx, http.MethodGet, "/api/model/", nil, &out)
	return out, err
}

// SelectModel updates the preferred AI backend.
func (c *Client) SelectModel(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/model/", modelSelectRequest{ModelName: name}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, _ := c.credentials(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("fillora api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("fillora api: %s %s: status=%d body=%s", method, path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fillora api: %s %s: decode: %w", method, path, err)
	}
	return nil
}
