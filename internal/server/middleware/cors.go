package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	corsAllowHeaders = strings.Join([]string{
		echo.HeaderContentType,
		echo.HeaderAccept,
		HeaderViewportWidth,
		XRequestID,
	}, ", ")
	corsAllowMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ", ")
)

// CORS allows origins matching pattern to call the listing API with the
// session cookie attached.
func CORS(pattern *regexp.Regexp) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			respHeader := c.Response().Header()
			respHeader.Add(echo.HeaderVary, echo.HeaderOrigin)
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin == "" || !pattern.MatchString(origin) {
				return next(c)
			}
			respHeader.Set(echo.HeaderAccessControlAllowOrigin, origin)
			respHeader.Set(echo.HeaderAccessControlAllowCredentials, "true")
			respHeader.Set(echo.HeaderAccessControlExposeHeaders, XRequestID)
			if c.Request().Method == http.MethodOptions {
				respHeader.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)
				respHeader.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)
				return c.NoContent(http.StatusNoContent)
			}

			return next(c)
		}
	}
}
