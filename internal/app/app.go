package app

import (
	"github.com/carousell/ct-go/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/nguyentranbao-ct/storefront/internal/catalog"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/kafka"
	"github.com/nguyentranbao-ct/storefront/internal/render"
	"github.com/nguyentranbao-ct/storefront/internal/server"
)

func Invoke(funcs ...any) *fx.App {
	log := logger.MustNamed("app")
	conf := config.MustLoad()
	log.Debugw("config loaded", log.Reflect("config", conf))
	return fx.New(Options(conf, funcs...),
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Unwrap().Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
	)
}

// Options is the full dependency graph for conf, followed by funcs as invokes.
func Options(conf *config.Config, funcs ...any) fx.Option {
	return fx.Options(
		fx.Provide(
			catalog.NewClient,
			catalog.NewLoader,
			asSource,
			asProductLookup,
			asPrimer,

			render.NewRenderer,
			kafka.NewOrigin,
			newKafkaConfig,

			newCatalogStore,
			newSearchStore,
			newSessionRegistry,
			kafka.NewConsumer,

			server.NewHub,
			server.NewHandler,
		),
		fx.Supply(conf),
		fx.Invoke(funcs...),
	)
}
