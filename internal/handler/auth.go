package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/krisefikser/internal/model"
	"github.com/iliyamo/krisefikser/internal/service"
	"github.com/iliyamo/krisefikser/internal/token"
)

// Sessions is the part of service.SessionService the HTTP layer uses.
type Sessions interface {
	Register(ctx context.Context, in service.RegisterInput) (service.Tokens, error)
	RegisterAdmin(ctx context.Context, in service.RegisterInput) (service.Tokens, error)
	Login(ctx context.Context, email, password, captchaToken string) (service.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (service.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
	UpdatePassword(ctx context.Context, current, next string) error
	CurrentIdentity(ctx context.Context) (model.UserProfile, error)
	LoadIdentity(ctx context.Context, email string) (model.UserProfile, error)
	RevokeAllSessions(ctx context.Context, email string) (int64, error)
}

// AuthHandler serves the /api/auth and /api/admin endpoints.
type AuthHandler struct {
	Sessions Sessions
	Logger   *slog.Logger
	Timeout  time.Duration
}

func NewAuthHandler(s Sessions, logger *slog.Logger) *AuthHandler {
	if s == nil {
		panic("nil session service passed to NewAuthHandler")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthHandler{Sessions: s, Logger: logger, Timeout: 5 * time.Second}
}

type registerReq struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	CaptchaToken string `json:"captchaToken"`
}

func (r registerReq) input() service.RegisterInput {
	return service.RegisterInput{
		Email:        r.Email,
		Password:     r.Password,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		CaptchaToken: r.CaptchaToken,
	}
}

type loginReq struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type passwordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type tokenResp struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func newTokenResp(t service.Tokens) tokenResp {
	return tokenResp{
		AccessToken:      t.AccessToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshToken:     t.RefreshToken,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// Register creates a USER account and returns its first token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	tok, err := h.Sessions.Register(ctx, req.input())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, newTokenResp(tok))
}

// RegisterAdmin creates an ADMIN account.  Mounted behind RequireRole(SUPER_ADMIN).
func (h *AuthHandler) RegisterAdmin(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	tok, err := h.Sessions.RegisterAdmin(ctx, req.input())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, newTokenResp(tok))
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	tok, err := h.Sessions.Login(ctx, req.Email, req.Password, req.CaptchaToken)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, newTokenResp(tok))
}

// Refresh rotates a refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	tok, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, newTokenResp(tok))
}

// Logout deletes the presented refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Sessions.Logout(ctx, req.RefreshToken); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdatePassword changes the caller's password and signs out all of the
// caller's sessions.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	var req passwordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CurrentPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currentPassword required"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Sessions.UpdatePassword(ctx, req.CurrentPassword, req.NewPassword); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated caller.
func (h *AuthHandler) Me(c echo.Context) error {
	p, err := h.Sessions.CurrentIdentity(c.Request().Context())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// LookupUser returns the profile of the user named by :email.
func (h *AuthHandler) LookupUser(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	p, err := h.Sessions.LoadIdentity(ctx, c.Param("email"))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// RevokeSessions deletes every refresh token of the user named by :email.
func (h *AuthHandler) RevokeSessions(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	n, err := h.Sessions.RevokeAllSessions(ctx, c.Param("email"))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

// httpError is the single mapping from session errors to responses.
// Token failures are reported with one generic body so clients cannot tell
// which check failed.
func (h *AuthHandler) httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, token.ErrMalformedToken),
		errors.Is(err, token.ErrInvalidSignature),
		errors.Is(err, token.ErrExpiredToken),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrRefreshTokenNotFound),
		errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrEmailAlreadyExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, service.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, service.ErrCaptchaFailed):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "captcha verification failed"})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		h.Logger.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
