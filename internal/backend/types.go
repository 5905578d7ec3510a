package backend

import "github.com/raorajnish/Fillora-Kaizen/internal/command"

// User is the application user record returned by social login.
type User struct {
	ID               int    `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Username         string `json:"username"`
	ProfilePicture   string `json:"profile_picture,omitempty"`
	PreferredAIModel string `json:"preferred_ai_model,omitempty"`
}

// UserInfo is the OAuth profile forwarded alongside the access token.
type UserInfo struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Picture    string `json:"picture,omitempty"`
}

// ChatTurn is one chat message, oldest first in history listings.
type ChatTurn struct {
	Role      string `json:"role"`
	Message   string `json:"message"`
	URL       string `json:"url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Submission is one recorded form fill.
type Submission struct {
	ID        int                 `json:"id"`
	Website   string              `json:"website"`
	URL       string              `json:"url"`
	Fields    []command.FormField `json:"fields"`
	CreatedAt string              `json:"created_at"`
}

// AIModel is one selectable analysis backend.
type AIModel struct {
	ModelName string `json:"model_name"`
	IsActive  bool   `json:"is_active"`
}

// ModelSettings is the model listing plus the user's current choice.
type ModelSettings struct {
	AvailableModels []AIModel `json:"available_models"`
	CurrentModel    string    `json:"current_model"`
}

type socialLoginRequest struct {
	AccessToken string   `json:"access_token"`
	UserInfo    UserInfo `json:"user_info"`
}

type socialLoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type analyzeRequest struct {
	URL         string     `json:"url"`
	HTML        string     `json:"html"`
	ChatHistory []ChatTurn `json:"chat_history"`
}

type analyzeResponse struct {
	URL     string              `json:"url"`
	Fields  []command.FormField `json:"fields"`
	Message string              `json:"message"`
}

type chatRequest struct {
	Role    string `json:"role,omitempty"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

type chatResponse struct {
	Message string `json:"message"`
}

type chatHistoryResponse struct {
	History []ChatTurn `json:"history"`
}

type fillFormRequest struct {
	URL     string              `json:"url"`
	Website string              `json:"website"`
	Fields  []command.FormField `json:"fields"`
	UserID  int                 `json:"user_id"`
}

type historyResponse struct {
	Results []submissionRecord `json:"results"`
}

// submissionRecord tolerates both key spellings the API has used over time
// (website|url at the submission level, name|field inside each field).
type submissionRecord struct {
	ID        int               `json:"id"`
	Website   string            `json:"website"`
	URL       string            `json:"url"`
	Fields    []submissionField `json:"fields"`
	CreatedAt string            `json:"created_at"`
}

type submissionField struct {
	Name  string `json:"name"`
	Field string `json:"field"`
	Value string `json:"value"`
}

type profileResponse struct {
	Data map[string]string `json:"data"`
}

type modelSelectRequest struct {
	ModelName string `json:"model_name"`
}
