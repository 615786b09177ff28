package metrics

import (
	"path"
	"reflect"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/oneconcern/irmin/pkg/metrics/exporters/logexporter"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

const (
	unitCount        = "count"
	unitBytes        = "bytes"
	unitSumBytes     = "sumbytes"
	unitMilliseconds = "milliseconds"
)

var (
	// global settings for metrics
	mp       = defaultSettings()
	initOnce sync.Once
)

type settings struct {
	basePath string
	exporter FlushExporter
	logger   *zap.Logger
	period   time.Duration

	allMetrics []stats.Measure
	allViews   []*view.View

	// registered modules, by location
	modules   map[string]interface{}
	exclusive sync.Mutex
}

func defaultSettings() *settings {
	return &settings{
		modules: make(map[string]interface{}),
		logger:  zap.NewNop(),
	}
}

// DefaultExporter returns a metrics exporter which logs views at debug level
func DefaultExporter(l *zap.Logger) view.Exporter {
	return logexporter.New(l)
}

func newSettings(opts ...Option) *settings {
	s := defaultSettings()
	for _, apply := range opts {
		apply(s)
	}
	if s.exporter == nil {
		s.exporter = flusher(DefaultExporter(s.logger))
	}

	view.RegisterExporter(s.exporter)
	if s.period >= time.Second {
		view.SetReportingPeriod(s.period)
	}
	return s
}

func (s *settings) EnsureMetrics(location string, m interface{}) interface{} {
	s.exclusive.Lock()
	defer s.exclusive.Unlock()
	location = path.Join(s.basePath, location)

	if existing, ok := s.modules[location]; ok {
		if !sameType(existing, m) {
			panic("trying to re-register existing metrics module with a different type")
		}
		return existing
	}
	scanStruct(location, s.addMetric, m)
	s.modules[location] = m
	return m
}

// Flush exports the current data of all registered views
func (s *settings) Flush() {
	if s.exporter == nil {
		return
	}
	now := time.Now()
	for _, v := range s.allViews {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			continue
		}
		s.exporter.Flush(&view.Data{View: v, Start: now, End: now, Rows: rows})
	}
}

// addMetric creates a measure and its views.
//
// The default view depends on the unit: counters get a count, bytes and timings get a distribution
// and sumbytes get a sum.
func (s *settings) addMetric(location string, spec fieldSpec, measureType reflect.Type) stats.Measure {
	name := path.Join(location, spec.name)
	description := spec.description
	if description == "" {
		description = describe(name, spec.unit)
	}
	unit, aggregation := unitAndAggregation(spec.unit)

	var measure stats.Measure
	switch measureType {
	case int64MeasureType:
		measure = stats.Int64(name, description, unit)
	case float64MeasureType:
		measure = stats.Float64(name, description, unit)
	default:
		return nil
	}
	s.allMetrics = append(s.allMetrics, measure)
	s.addView(name, description, measure, aggregation, spec)

	for _, extra := range spec.views {
		var agg *view.Aggregation
		switch extra {
		case unitCount:
			agg = view.Count()
		case "sum":
			agg = view.Sum()
		case "lastvalue":
			agg = view.LastValue()
		default:
			s.logger.Warn("unsupported metrics view", zap.String("metric", name), zap.String("view", extra))
			continue
		}
		s.addView(withAggregation(name, agg), description, measure, agg, spec)
	}
	return measure
}

func (s *settings) addView(name, description string, measure stats.Measure, agg *view.Aggregation, spec fieldSpec) {
	v := &view.View{
		Name:        name,
		Description: withAggregation(description, agg),
		Measure:     measure,
		Aggregation: agg,
		TagKeys:     spec.keys,
	}
	if err := view.Register(v); err != nil {
		s.logger.Warn("registering metrics view", zap.String("view", name), zap.Error(err))
		return
	}
	s.allViews = append(s.allViews, v)
}

func durationDistribution() *view.Aggregation {
	// milliseconds: object reads are sub-millisecond, contended branch updates may take seconds
	return view.Distribution(
		0.05, 0.1, 0.5, 1, 2, 5,
		10, 25, 50, 100, 250, 500,
		1000, 2500, 5000, 10000, 30000,
	)
}

func bytesDistribution() *view.Aggregation {
	// stored objects are mostly small nodes and commits
	return view.Distribution(
		64, 128, 256, 512,
		1*units.KiB, 4*units.KiB, 16*units.KiB, 64*units.KiB,
		256*units.KiB, 1*units.MiB, 4*units.MiB, 16*units.MiB,
		64*units.MiB,
	)
}

func unitAndAggregation(unit string) (string, *view.Aggregation) {
	switch unit {
	case unitMilliseconds:
		return stats.UnitMilliseconds, durationDistribution()
	case unitBytes:
		return stats.UnitBytes, bytesDistribution()
	case unitSumBytes:
		return stats.UnitBytes, view.Sum()
	default:
		return stats.UnitDimensionless, view.Count()
	}
}

func describe(name, unit string) string {
	switch unit {
	case unitSumBytes:
		return name + " cumulated bytes"
	case "", unitCount:
		return name + " counter"
	default:
		return name + " in " + unit
	}
}

func withAggregation(desc string, agg *view.Aggregation) string {
	switch agg.Type {
	case view.AggTypeCount:
		return desc + " [count]"
	case view.AggTypeSum:
		return desc + " [cumulated]"
	case view.AggTypeDistribution:
		return desc + " [distribution]"
	case view.AggTypeLastValue:
		return desc + " [last]"
	default:
		return desc
	}
}

// FlushExporter is a view exporter that may export views on demand,
// concurrently with the background exporter of opencensus.
type FlushExporter interface {
	view.Exporter
	Flush(*view.Data)
}

func flusher(e view.Exporter) FlushExporter {
	if f, ok := e.(FlushExporter); ok {
		return f
	}
	return &simpleFlusher{e: e}
}

type simpleFlusher struct {
	e view.Exporter
	m sync.RWMutex
}

func (f *simpleFlusher) ExportView(viewData *view.Data) {
	f.m.RLock()
	defer f.m.RUnlock()
	f.e.ExportView(viewData)
}

func (f *simpleFlusher) Flush(viewData *view.Data) {
	f.m.Lock()
	defer f.m.Unlock()
	f.e.ExportView(viewData)
}
