package middleware

import (
	"strings"

	"github.com/carousell/ct-go/pkg/httputils"
	"github.com/labstack/echo/v4"
)

// APIVersioning routes unversioned requests under prefix to the version named
// in the Accept header, e.g. GET /api/listing with "version=1" is served by
// /api/v1/listing. Paths outside prefix are left as they are.
func APIVersioning(e *echo.Echo, prefix string, args ...httputils.AutoVersioningOption) {
	prefix = "/" + strings.Trim(prefix, "/")
	versioning := httputils.NewAutoVersioning(args...)

	e.Pre(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rest, ok := strings.CutPrefix(req.URL.Path, prefix)
			if !ok || (rest != "" && rest[0] != '/') {
				return next(c)
			}

			req.URL.Path = rest
			versioning.Handle(c.Response().Writer, req)
			req.URL.Path = prefix + req.URL.Path
			req.URL.RawPath = ""
			return next(c)
		}
	})
}
