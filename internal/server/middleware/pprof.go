package middleware

import (
	"net/http"
	"net/http/pprof"

	"github.com/labstack/echo/v4"
)

// Pprof mounts the runtime profiles under prefix + /debug/pprof.
func Pprof(e *echo.Echo, prefix string) {
	g := e.Group(prefix + "/debug/pprof")
	g.GET("/", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	g.GET("/cmdline", echo.WrapHandler(http.HandlerFunc(pprof.Cmdline)))
	g.GET("/profile", echo.WrapHandler(http.HandlerFunc(pprof.Profile)))
	g.GET("/symbol", echo.WrapHandler(http.HandlerFunc(pprof.Symbol)))
	g.GET("/trace", echo.WrapHandler(http.HandlerFunc(pprof.Trace)))
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		g.GET("/"+name, echo.WrapHandler(pprof.Handler(name)))
	}
}
