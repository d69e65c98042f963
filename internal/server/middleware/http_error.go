package middleware

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/storefront/internal/models"
)

// StatusClientClosedRequest is reported when the caller went away before the
// handler finished.
const StatusClientClosedRequest = 499

// ErrorHandler writes handler errors as the JSON Response envelope, or as a
// small HTML page for browsers outside /api.
func ErrorHandler(log Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if err == nil || c.Response().Committed {
			return
		}

		resp := toResponseError(err, c)
		if resp.Status >= http.StatusInternalServerError {
			log.Errorw("request failed", "status", resp.Status, "path", c.Request().URL.Path, "error", err)
		}

		var writeErr error
		if wantsHTML(c) {
			writeErr = c.HTML(resp.Status, errorPage(resp))
		} else {
			writeErr = c.JSON(resp.Status, resp)
		}
		if writeErr != nil {
			log.Errorw("could not write error response", "code", resp.Status, "error", writeErr)
		}
	}
}

func toResponseError(err error, c echo.Context) *ResponseError {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr
	}

	resp := &ResponseError{Status: http.StatusInternalServerError, Err: err}
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		resp.Status = httpErr.Code
		resp.ErrorMessage = fmt.Sprint(httpErr.Message)
		if httpErr.Code == http.StatusNotFound && isNotFoundHandler(c.Handler()) {
			resp.ErrorMessage = "no route matched"
		}
	case errors.Is(err, context.Canceled) && c.Request().Context().Err() != nil:
		resp.Status = StatusClientClosedRequest
	case errors.Is(err, models.ErrNotFound):
		resp.Status = http.StatusNotFound
		resp.ErrorMessage = err.Error()
	default:
		resp.ErrorMessage = http.StatusText(http.StatusInternalServerError)
	}
	return resp
}

func wantsHTML(c echo.Context) bool {
	req := c.Request()
	if strings.HasPrefix(req.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

func errorPage(resp *ResponseError) string {
	msg := resp.ErrorMessage
	if msg == "" {
		msg = http.StatusText(resp.Status)
	}
	return fmt.Sprintf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%d | Jt Stores</title></head>`+
		`<body><h1>%d</h1><p>%s</p><a href="/">Back to products</a></body></html>`,
		resp.Status, resp.Status, html.EscapeString(msg))
}
