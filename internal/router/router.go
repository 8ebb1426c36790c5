package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/krisefikser/internal/handler"
	"github.com/iliyamo/krisefikser/internal/middleware"
	"github.com/iliyamo/krisefikser/internal/model"
)

// RegisterRoutes registers routes that never require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth mounts the session endpoints.  authn must be the
// Authenticate middleware; limit guards the credential endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth", authn)
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	g.POST("/logout", a.Logout, limit)
	g.GET("/me", a.Me, middleware.RequireAuth())
	g.PUT("/password", a.UpdatePassword, middleware.RequireAuth(), limit)
	g.POST("/register/admin", a.RegisterAdmin, middleware.RequireRole(model.RoleSuperAdmin))

	admin := e.Group("/api/admin", authn)
	admin.GET("/users/:email", a.LookupUser, middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin))
	admin.DELETE("/users/:email/sessions", a.RevokeSessions, middleware.RequireRole(model.RoleSuperAdmin))
}
