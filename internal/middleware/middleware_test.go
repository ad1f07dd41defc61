package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsplit_app_echo/internal/apperr"
)

type stubVerifier struct{}

func (stubVerifier) VerifyIDToken(_ context.Context, token string) (*auth.Token, error) {
	if token != "firebase-ok" {
		return nil, errors.New("token expired")
	}
	return &auth.Token{UID: "uid-1", Claims: map[string]interface{}{"email": "admin@example.com"}}, nil
}

func newServer(verifier TokenVerifier) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(zerolog.Nop())
	e.GET("/private", func(c echo.Context) error {
		email, _ := c.Get(ContextEmail).(string)
		return c.JSON(http.StatusOK, map[string]string{
			"subject": c.Get(ContextSubject).(string),
			"email":   email,
		})
	}, RequireBearer("secret", verifier))
	return e
}

func doRequest(e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireBearer(t *testing.T) {
	e := newServer(stubVerifier{})

	t.Run("missing header", func(t *testing.T) {
		rec := doRequest(e, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "No authorization header", body.Error)
		assert.Equal(t, apperr.CodeUnauthorized, body.Code)
	})

	t.Run("not bearer", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doRequest(e, "Basic abc").Code)
	})

	t.Run("service key", func(t *testing.T) {
		rec := doRequest(e, "Bearer secret")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"subject":"service"`)
	})

	t.Run("firebase token", func(t *testing.T) {
		rec := doRequest(e, "Bearer firebase-ok")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"subject":"uid-1"`)
		assert.Contains(t, rec.Body.String(), `"email":"admin@example.com"`)
	})

	t.Run("invalid token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doRequest(e, "Bearer nope").Code)
	})

	t.Run("no verifier", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doRequest(newServer(nil), "Bearer firebase-ok").Code)
	})
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(zerolog.Nop())
	e.GET("/capacity", func(c echo.Context) error {
		return apperr.New(apperr.CodeCapacity, "Netflix has 2 slots")
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("db down")
	})
	e.GET("/bad", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad json")
	})

	cases := []struct {
		path   string
		status int
		code   apperr.Code
		msg    string
	}{
		{"/capacity", http.StatusUnprocessableEntity, apperr.CodeCapacity, "Netflix has 2 slots"},
		{"/boom", http.StatusInternalServerError, apperr.CodeInternal, "Something went wrong. Please try again later."},
		{"/bad", http.StatusBadRequest, apperr.CodeValidation, "bad json"},
		{"/missing", http.StatusNotFound, apperr.CodeNotFound, "Not Found"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.msg, body.Error)
		})
	}
}
