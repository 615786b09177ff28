package metrics

import (
	"time"

	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

// Option defines some options to the metrics initialization
type Option func(*settings)

// WithBasePath defines the root for the registered metrics tree
func WithBasePath(location string) Option {
	return func(m *settings) {
		m.basePath = location
	}
}

// WithExporter configures the exporter to convey metrics to some backend collector
func WithExporter(exporter view.Exporter) Option {
	return func(m *settings) {
		if exporter != nil {
			m.exporter = flusher(exporter)
		}
	}
}

// WithReportingPeriod configures how often the exporter is going to upload metrics.
// Durations under 1 sec do not have any effect. The default is 10s.
func WithReportingPeriod(d time.Duration) Option {
	return func(m *settings) {
		m.period = d
	}
}

// WithLogger sets the logger used by the default exporter
func WithLogger(l *zap.Logger) Option {
	return func(m *settings) {
		if l != nil {
			m.logger = l
		}
	}
}
