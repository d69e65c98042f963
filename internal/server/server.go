package server

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/carousell/ct-go/pkg/httputils"
	"github.com/carousell/ct-go/pkg/logger"
	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	pkgmdw "github.com/nguyentranbao-ct/storefront/internal/server/middleware"
)

// NewEcho builds the HTTP handler with every route and middleware attached.
func NewEcho(conf *config.Config, handler Controller) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = pkgmdw.NewValidator()
	e.HTTPErrorHandler = pkgmdw.ErrorHandler(logger.MustNamed("http_error"))

	pkgmdw.APIVersioning(e, "/api", httputils.WithFallbackVersion("1"))
	e.Use(pkgmdw.Metrics(pkgmdw.WithoutRoutes("/ws")))
	e.Use(pkgmdw.RequestID())
	e.Use(pkgmdw.LogRequest(pkgmdw.LogRequestConfig{
		Logger: logger.MustNamed("http"),
		Skip: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/health" || path == pkgmdw.MetricsPath
		},
		ResponseBody: func(c echo.Context) bool {
			return c.Path() != "/ws"
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Errorw(c.Request().Context(), "PANIC RECOVER", "error", err, "stack", string(stack))
			return nil
		},
	}))
	if conf.Server.CORSOrigins != "" {
		e.Use(pkgmdw.CORS(regexp.MustCompile(conf.Server.CORSOrigins)))
	}
	if conf.Server.EnablePprof {
		pkgmdw.Pprof(e, conf.Server.PprofPrefix)
	}

	e.GET("/health", handler.Health)

	e.GET("/", handler.Index)
	e.POST("/viewport", handler.Viewport)
	e.POST("/page/next", handler.Next)
	e.POST("/page/previous", handler.Previous)
	e.POST("/page/:number", handler.GoTo)
	e.POST("/retry", handler.Retry)
	e.GET("/products/:id", handler.Product)
	e.GET("/ws", handler.Socket)

	api := e.Group("/api/v1")
	api.GET("/listing", pkgmdw.WrapHandler(handler.GetListing))
	api.PUT("/search", pkgmdw.WrapHandler(handler.PutSearch))
	api.DELETE("/search", pkgmdw.WrapNoContent(handler.DeleteSearch))

	return e
}

func StartServer(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	conf *config.Config,
	handler Controller,
	hub *Hub,
) {
	e := NewEcho(conf, handler)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Infow(ctx, "starting HTTP server", "addr", conf.Server.Addr)
				if err := e.Start(conf.Server.Addr); !errors.Is(err, http.ErrServerClosed) {
					log.Errorw(context.Background(), "HTTP server stopped", "error", err)
					_ = sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hub.Close()
			return e.Shutdown(ctx)
		},
	})
}
