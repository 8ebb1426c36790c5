package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/krisefikser/internal/model"
	"github.com/iliyamo/krisefikser/internal/service"
	"github.com/iliyamo/krisefikser/internal/token"
)

// IdentityLoader returns the live profile for an e-mail.  It must return
// service.ErrUserNotFound when no such user exists.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, email string) (model.UserProfile, error)
}

// Authenticate binds the caller's identity to the request when it carries a
// valid access token.  It never rejects a request for lacking one; route
// guards decide that.  Roles come from the store, not from the token.
func Authenticate(codec *token.Codec, users IdentityLoader, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c.Request())
			if !ok {
				return next(c)
			}
			if _, bound := IdentityOf(c); bound {
				return next(c)
			}

			email, ok := codec.ExtractSubject(raw)
			if !ok || !codec.IsAccessToken(raw) {
				return next(c)
			}

			ctx := c.Request().Context()
			p, err := users.LoadIdentity(ctx, email)
			if errors.Is(err, service.ErrUserNotFound) {
				return next(c)
			}
			if err != nil {
				logger.ErrorContext(ctx, "load identity", "error", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}

			claims, err := codec.Parse(raw)
			if err != nil || claims.Subject != p.Email {
				return next(c)
			}

			c.Set(identityKey, p)
			c.SetRequest(c.Request().WithContext(service.WithIdentity(ctx, p)))
			return next(c)
		}
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return raw, raw != ""
}
