package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error {
		assert.Equal(t, GetRequestID(c), RequestIDFromContext(c.Request().Context()))
		return c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("reuses inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(XRequestID, "custom-request-id")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "custom-request-id", rec.Body.String())
		assert.Equal(t, "custom-request-id", rec.Header().Get(XRequestID))
	})

	t.Run("reuses correlation id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(XCorrelationID, "upstream-id")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-id", rec.Header().Get(XRequestID))
	})

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(XRequestID)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, rec.Body.String())
	})
}
