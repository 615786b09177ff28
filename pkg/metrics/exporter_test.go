package metrics

import (
	"github.com/oneconcern/irmin/pkg/metrics/exporters/logexporter"
	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

// testExporter logs metrics in development mode
func testExporter(tags map[string]string) view.Exporter {
	l, _ := zap.NewDevelopment()
	fields := make([]zap.Field, 0, len(tags))
	for k, v := range tags {
		fields = append(fields, zap.String(k, v))
	}
	return logexporter.New(l.With(fields...))
}
