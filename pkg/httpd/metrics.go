package httpd

import (
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type serverMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	objects  *prometheus.CounterVec
}

func newServerMetrics(registry *prometheus.Registry) (*serverMetrics, error) {
	m := &serverMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irmin",
			Subsystem: "httpd",
			Name:      "requests_total",
			Help:      "Requests served, by route and status code",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "irmin",
			Subsystem: "httpd",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests, by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		objects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irmin",
			Subsystem: "httpd",
			Name:      "objects_received_total",
			Help:      "Objects stored on behalf of remotes, by kind",
		}, []string{"kind"}),
	}

	goCollector := collectors.NewGoCollector()
	if err := register(registry, &goCollector); err != nil {
		return nil, err
	}
	if err := register(registry, &m.requests); err != nil {
		return nil, err
	}
	if err := register(registry, &m.duration); err != nil {
		return nil, err
	}
	if err := register(registry, &m.objects); err != nil {
		return nil, err
	}
	return m, nil
}

// register a collector, reusing the one already registered on a shared registry
func register[T prometheus.Collector](registry *prometheus.Registry, c *T) error {
	err := registry.Register(*c)
	if err == nil {
		return nil
	}
	var exists prometheus.AlreadyRegisteredError
	if !errors.As(err, &exists) {
		return err
	}
	if existing, ok := exists.ExistingCollector.(T); ok {
		*c = existing
	}
	return nil
}
