package middleware

import (
	"reflect"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nguyentranbao-ct/storefront/pkg/util"
)

const (
	MetricsPath          = "/metrics"
	httpRequestsDuration = "storefront_http_request_duration_seconds"
	httpRequestsHelp     = "HTTP request latency by status, method and route"
	notFoundRoute        = "/not-found"
)

type metricsOptions struct {
	skip func(c echo.Context) bool
}

type MetricsOption func(*metricsOptions)

// WithoutRoutes excludes routes from the latency histogram. Long lived
// routes such as the websocket belong here.
func WithoutRoutes(routes ...string) MetricsOption {
	return func(o *metricsOptions) {
		o.skip = skipPaths(routes...)
	}
}

// Metrics records request latency per status, method and route template,
// and serves the Prometheus registry on /metrics.
func Metrics(opts ...MetricsOption) echo.MiddlewareFunc {
	o := metricsOptions{skip: func(echo.Context) bool { return false }}
	for _, opt := range opts {
		opt(&o)
	}

	histogram, err := util.HistogramVec(httpRequestsDuration, httpRequestsHelp, "code", "method", "route")
	if err != nil {
		panic(err)
	}
	promHandler := echo.WrapHandler(promhttp.Handler())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == MetricsPath {
				return promHandler(c)
			}
			if o.skip(c) {
				return next(c)
			}

			// unmatched paths share one series
			route := c.Path()
			if isNotFoundHandler(c.Handler()) {
				route = notFoundRoute
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			code := strconv.Itoa(c.Response().Status)
			histogram.WithLabelValues(code, c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func isNotFoundHandler(handler echo.HandlerFunc) bool {
	return reflect.ValueOf(handler).Pointer() == reflect.ValueOf(echo.NotFoundHandler).Pointer()
}
