package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"subsplit_app_echo/internal/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct{}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me reports who the bearer token belongs to
func (h *AuthHandler) Me(c echo.Context) error {
	subject := getStringFromContext(c, middleware.ContextSubject)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"subject": subject,
		"email":   getStringFromContext(c, middleware.ContextEmail),
		"service": subject == middleware.ServiceSubject,
	})
}
