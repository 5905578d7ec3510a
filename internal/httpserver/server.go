// Package httpserver exposes the control-plane API the popup UI drives:
// session state, typed commands, mic control, auth and account surfaces.
package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/raorajnish/Fillora-Kaizen/internal/agent"
	"github.com/raorajnish/Fillora-Kaizen/internal/backend"
	"github.com/raorajnish/Fillora-Kaizen/internal/store"
)

// SessionAPI is the slice of the voice session the handlers drive.
type SessionAPI interface {
	Snapshot() agent.State
	HandleUtterance(ctx context.Context, text string)
	Analyze(ctx context.Context)
	Fill(ctx context.Context)
	StartListening() error
	StopListening()
	Listening() bool
	Logout()
}

// BackendAPI is the slice of the Fillora client surfaced to the popup.
type BackendAPI interface {
	SocialLogin(ctx context.Context, accessToken string, info backend.UserInfo) (string, backend.User, error)
	History(ctx context.Context) ([]backend.Submission, error)
	ChatHistory(ctx context.Context, limit int) ([]backend.ChatTurn, error)
	Profile(ctx context.Context) (map[string]string, error)
	UpdateProfile(ctx context.Context, data map[string]string) error
	Models(ctx context.Context) (backend.ModelSettings, error)
	SelectModel(ctx context.Context, name string) error
}

// CredentialSaver persists a fresh login.
type CredentialSaver interface {
	Save(creds store.Credentials) error
}

type customValidator struct {
	validator *validator.Validate
}

func (cv *customValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Server bundles the router and its dependencies.
type Server struct {
	Echo    *echo.Echo
	session SessionAPI
	api     BackendAPI
	creds   CredentialSaver
	hub     *Hub
}

// New constructs the HTTP server with routes.
func New(sess SessionAPI, api BackendAPI, creds CredentialSaver, hub *Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &customValidator{validator: validator.New()}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	s := &Server{Echo: e, session: sess, api: api, creds: creds, hub: hub}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	g := e.Group("/api")
	g.GET("/state", s.handleState)
	g.POST("/message", s.handleMessage)
	g.POST("/mic/start", s.handleMicStart)
	g.POST("/mic/stop", s.handleMicStop)
	g.POST("/analyze", s.handleAnalyze)
	g.POST("/fill", s.handleFill)
	g.POST("/login", s.handleLogin)
	g.POST("/logout", s.handleLogout)
	g.GET("/history", s.handleHistory)
	g.GET("/chat", s.handleChat)
	g.GET("/profile", s.handleProfile)
	g.PUT("/profile", s.handleUpdateProfile)
	g.GET("/models", s.handleModels)
	g.POST("/models", s.handleSelectModel)

	e.GET("/ws", s.handleWS)

	return s
}

// Start begins serving on addr and blocks.
func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

type stateResponse struct {
	State     agent.State `json:"state"`
	Listening bool        `json:"listening"`
}

func (s *Server) stateNow() stateResponse {
	return stateResponse{State: s.session.Snapshot(), Listening: s.session.Listening()}
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.stateNow())
}

type messageRequest struct {
	Text string `json:"text" validate:"required"`
}

func (s *Server) handleMessage(c echo.Context) error {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	s.session.HandleUtterance(c.Request().Context(), req.Text)
	return c.JSON(http.StatusOK, s.stateNow())
}

func (s *Server) handleMicStart(c echo.Context) error {
	if err := s.session.StartListening(); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, s.stateNow())
}

func (s *Server) handleMicStop(c echo.Context) error {
	s.session.StopListening()
	return c.JSON(http.StatusOK, s.stateNow())
}

func (s *Server) handleAnalyze(c echo.Context) error {
	s.session.Analyze(c.Request().Context())
	return c.JSON(http.StatusOK, s.stateNow())
}

func (s *Server) handleFill(c echo.Context) error {
	s.session.Fill(c.Request().Context())
	return c.JSON(http.StatusOK, s.stateNow())
}

type loginRequest struct {
	AccessToken string           `json:"access_token" validate:"required"`
	UserInfo    backend.UserInfo `json:"user_info"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  backend.User `json:"user"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	token, user, err := s.api.SocialLogin(c.Request().Context(), req.AccessToken, req.UserInfo)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if err := s.creds.Save(store.Credentials{AuthToken: token, User: user}); err != nil {
		c.Logger().Errorf("persist credentials: %v", err)
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleLogout(c echo.Context) error {
	s.session.Logout()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleHistory(c echo.Context) error {
	subs, err := s.api.History(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, subs)
}

func (s *Server) handleChat(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	turns, err := s.api.ChatHistory(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, turns)
}

func (s *Server) handleProfile(c echo.Context) error {
	profile, err := s.api.Profile(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	var data map[string]string
	if err := c.Bind(&data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := s.api.UpdateProfile(c.Request().Context(), data); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleModels(c echo.Context) error {
	settings, err := s.api.Models(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}

type selectModelRequest struct {
	ModelName string `json:"model_name" validate:"required"`
}

func (s *Server) handleSelectModel(c echo.Context) error {
	var req selectModelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := s.api.SelectModel(c.Request().Context(), req.ModelName); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleWS(c echo.Context) error {
	return s.hub.Serve(c.Response(), c.Request())
}
