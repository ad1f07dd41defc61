package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"subsplit_app_echo/internal/apperr"
)

// Context keys set by RequireBearer.
const (
	ContextSubject = "authSubject"
	ContextEmail   = "userEmail"
)

// ServiceSubject marks requests authenticated with the service key.
const ServiceSubject = "service"

// TokenVerifier checks a Firebase ID token. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer" header
// before any handler runs. The token is accepted if it equals serviceKey or,
// when verifier is set, is a valid Firebase ID token.
func RequireBearer(serviceKey string, verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return apperr.New(apperr.CodeUnauthorized, "No authorization header")
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				return apperr.New(apperr.CodeUnauthorized, "Malformed authorization header")
			}

			if serviceKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(serviceKey)) == 1 {
				c.Set(ContextSubject, ServiceSubject)
				return next(c)
			}

			if verifier == nil {
				return apperr.New(apperr.CodeUnauthorized, "Invalid token")
			}
			decoded, err := verifier.VerifyIDToken(c.Request().Context(), token)
			if err != nil {
				return apperr.Wrap(err, apperr.CodeUnauthorized, "Invalid token")
			}

			c.Set(ContextSubject, decoded.UID)
			if email, ok := decoded.Claims["email"].(string); ok {
				c.Set(ContextEmail, email)
			}
			return next(c)
		}
	}
}
