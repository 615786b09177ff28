package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

// Init global settings for metrics collection, such as the exporter.
//
// Init may be called multiple times: only the first time matters. Metrics registered
// before Init are recorded, but only exported once Init has been called.
func Init(opts ...Option) {
	initOnce.Do(func() {
		s := newSettings(opts...)
		mp.exclusive.Lock()
		defer mp.exclusive.Unlock()
		s.modules, s.allMetrics, s.allViews = mp.modules, mp.allMetrics, mp.allViews
		mp = s
	})
}

// Flush all collected metrics to the exporter
func Flush() {
	mp.Flush()
}

// EnsureMetrics registers a pointer to a struct declaring metrics, at some location.
//
// It may safely be called several times: only the first registration for a given location
// is retained, and returned. Registering another type at the same location panics.
func EnsureMetrics(location string, m interface{}) interface{} {
	return mp.EnsureMetrics(location, m)
}

// Inc increments a counter-like metric
func Inc(counter *stats.Int64Measure, tags ...map[string]string) {
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), counter.M(1))
}

// Int64 records a value to a measure
func Int64(measure *stats.Int64Measure, value int64, tags ...map[string]string) {
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), measure.M(value))
}

// Since records the milliseconds elapsed since some start time
func Since(start time.Time, measure *stats.Float64Measure, tags ...map[string]string) {
	ms := float64(time.Since(start).Nanoseconds()) / 1e6
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), measure.M(ms))
}

func mergeTags(extras []map[string]string) []tag.Mutator {
	var mutators []tag.Mutator
	for _, extra := range extras {
		for k, v := range extra {
			mutators = append(mutators, tag.Upsert(tag.MustNewKey(k), v))
		}
	}
	return mutators
}

// Enable equips a type with metrics collection, toggled at run time.
//
// Sample usage:
//
//	type Store struct {
//	  metrics.Enable
//	  m *M
//	}
//
//	func New() *Store {
//	  s := &Store{}
//	  s.EnableMetrics(true)
//	  s.m = s.EnsureMetrics("store", &M{}).(*M)
//	  return s
//	}
type Enable struct {
	metricsEnabled bool
}

// MetricsEnabled tells whether metrics are enabled or not
func (e Enable) MetricsEnabled() bool {
	return e.metricsEnabled
}

// EnableMetrics toggles metrics collection
func (e *Enable) EnableMetrics(enabled bool) {
	e.metricsEnabled = enabled
}

// EnsureMetrics registers a type describing metrics to the global metrics collection.
//
// NOTE: EnsureMetrics panics if not called with a pointer to a struct.
func (e *Enable) EnsureMetrics(location string, m interface{}) interface{} {
	return EnsureMetrics(location, m)
}
