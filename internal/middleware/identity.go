package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/krisefikser/internal/model"
)

const identityKey = "identity"

// IdentityOf returns the profile bound by Authenticate, if any.
func IdentityOf(c echo.Context) (model.UserProfile, bool) {
	p, ok := c.Get(identityKey).(model.UserProfile)
	return p, ok
}

// rateSubject keys rate limit buckets by e-mail for authenticated callers.
func rateSubject(c echo.Context) string {
	if p, ok := IdentityOf(c); ok {
		return p.Email
	}
	return "anon"
}
