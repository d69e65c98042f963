package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

const (
	// SessionIDKey is the echo context key holding the resolved listing session.
	SessionIDKey = "session_id"

	// HeaderViewportWidth lets API and socket clients report their width
	// without a form post.
	HeaderViewportWidth = "X-Viewport-Width"
)

// Logger is the subset of the named ct-go logger used by the HTTP layer.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

type Response struct {
	Status       int         `json:"-"`
	Success      bool        `json:"success"`
	Data         interface{} `json:"data,omitempty"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	ErrorData    interface{} `json:"error_data,omitempty"`
}

type ResponseError struct {
	Status       int         `json:"-"`
	Err          error       `json:"-"`
	Success      bool        `json:"success"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	ErrorData    interface{} `json:"error_data,omitempty"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("status: %d, code: %s; message: %+v", e.Status, e.ErrorCode, e.Err)
}

// skipPaths returns a predicate matching requests whose route or path is one of paths.
func skipPaths(paths ...string) func(c echo.Context) bool {
	return func(c echo.Context) bool {
		route, path := c.Path(), c.Request().URL.Path
		for _, p := range paths {
			if route == p || path == p {
				return true
			}
		}
		return false
	}
}
