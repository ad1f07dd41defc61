package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"subsplit_app_echo/internal/apperr"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code"`
}

// NewErrorHandler maps application and echo errors to JSON responses.
func NewErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := ErrorResponse{Error: "Something went wrong. Please try again later.", Code: apperr.CodeInternal}

		var appErr *apperr.Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = appErr.HTTPStatus()
			body = ErrorResponse{Error: appErr.Message(), Code: appErr.Code()}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = ErrorResponse{Error: http.StatusText(status), Code: codeForStatus(status)}
			if msg, ok := httpErr.Message.(string); ok && msg != "" {
				body.Error = msg
			} else if httpErr.Message != nil {
				body.Error = fmt.Sprint(httpErr.Message)
			}
		}

		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", status).
			Msg("request failed")

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error().Err(err).Msg("writing error response")
		}
	}
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.CodeValidation
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.CodeNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.CodeUnauthorized
	case http.StatusConflict:
		return apperr.CodeConflict
	default:
		return apperr.CodeInternal
	}
}
