package util

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// latencyBuckets spans 0.5ms to 30s.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.002, 0.005,
	0.01, 0.02, 0.05,
	0.1, 0.2, 0.5,
	1, 2, 5, 10, 30,
}

// HistogramVec registers a latency histogram on the default registry. A
// second call with the same name returns the collector registered first.
func HistogramVec(name, help string, labels ...string) (*prometheus.HistogramVec, error) {
	metrics := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: latencyBuckets,
	}, labels)
	if err := prometheus.Register(metrics); err != nil {
		var registered prometheus.AlreadyRegisteredError
		if errors.As(err, &registered) {
			if existing, ok := registered.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return metrics, nil
}
