package httpx

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Envelope is the uniform response body for every REST endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK writes a success envelope with the given status, message, and data.
func OK(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// OKCount writes a success envelope for list responses, including the
// element count. The collection is nested under key so the payload reads
// {success, count, data: {beds: [...]}}.
func OKCount(c echo.Context, count int, key string, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{
		Success: true,
		Count:   &count,
		Data:    map[string]interface{}{key: data},
	})
}

// ErrorHandler returns a custom Echo error handler that renders every error
// as a failure envelope. Underlying detail (Error.Cause) is included only
// when dev is true; production callers see just the message.
func ErrorHandler(logger zerolog.Logger, dev bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"
		detail := ""

		var apiErr *Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
			status = apiErr.Status
			message = apiErr.Message
			if apiErr.Cause != nil {
				detail = apiErr.Cause.Error()
			}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			if msg, ok := httpErr.Message.(string); ok {
				message = msg
			}
		default:
			detail = err.Error()
		}

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		env := Envelope{Success: false, Message: message}
		if dev {
			env.Error = detail
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, env)
	}
}
