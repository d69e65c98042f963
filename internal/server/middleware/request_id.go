package middleware

import (
	"context"

	httpclient "github.com/carousell/ct-go/pkg/httpclient"
	"github.com/labstack/echo/v4"
)

const (
	XRequestID     = "x-request-id"
	XCorrelationID = "x-correlation-id"
)

// GetRequestID returns the id assigned by RequestID, or the inbound header
// when the middleware did not run.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(XRequestID).(string); ok && id != "" {
		return id
	}
	if id := RequestIDFromContext(c.Request().Context()); id != "" {
		return id
	}
	h := c.Request().Header
	if id := h.Get(XRequestID); id != "" {
		return id
	}
	return h.Get(XCorrelationID)
}

// RequestIDFromContext reads the id stored by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	for _, key := range []string{XCorrelationID, XRequestID} {
		if id, ok := ctx.Value(key).(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// RequestID reuses the caller's request or correlation id, or generates one,
// and exposes it on the context, the echo context and the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := GetRequestID(c)
			if reqID == "" {
				reqID = httpclient.GenerateCorrelationID()
			}

			ctx := c.Request().Context()
			//lint:ignore SA1029 we want to expose this key
			ctx = context.WithValue(ctx, XRequestID, reqID)
			//lint:ignore SA1029 we want to expose this key
			ctx = context.WithValue(ctx, XCorrelationID, reqID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(XRequestID, reqID)

			c.Response().Header().Set(XRequestID, reqID)
			return next(c)
		}
	}
}
