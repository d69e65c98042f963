package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchRequest struct {
	Query string `json:"query" validate:"required"`
}

type searchResponse struct {
	Echo string `json:"echo"`
}

func newWrapTestServer() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(nopLogger{})
	e.PUT("/search", WrapHandler(func(c echo.Context, req searchRequest) (*searchResponse, error) {
		if req.Query == "fail" {
			return nil, errors.New("boom")
		}
		return &searchResponse{Echo: req.Query}, nil
	}))
	e.DELETE("/search", WrapNoContent(func(c echo.Context, req struct{}) error {
		return nil
	}))
	return e
}

func TestWrapHandler(t *testing.T) {
	e := newWrapTestServer()

	do := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/search", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	t.Run("success envelope", func(t *testing.T) {
		rec := do(http.MethodPut, `{"query":"phone"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Success bool           `json:"success"`
			Data    searchResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, "phone", body.Data.Echo)
	})

	t.Run("validation error", func(t *testing.T) {
		rec := do(http.MethodPut, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("handler error", func(t *testing.T) {
		rec := do(http.MethodPut, `{"query":"fail"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("no content", func(t *testing.T) {
		rec := do(http.MethodDelete, ``)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
