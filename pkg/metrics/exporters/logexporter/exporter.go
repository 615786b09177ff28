// Package logexporter exports opencensus views to a zap logger.
//
// It is the default exporter when no metrics backend is configured, and a convenient
// exporter for tests.
package logexporter

import (
	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

var _ view.Exporter = &Exporter{}

// Exporter logs view data at debug level
type Exporter struct {
	l *zap.Logger
}

// New exporter to some logger. A nil logger discards everything.
func New(l *zap.Logger) *Exporter {
	if l == nil {
		l = zap.NewNop()
	}
	return &Exporter{
		l: l,
	}
}

// ExportView logs the view data
func (e *Exporter) ExportView(viewData *view.Data) {
	if viewData == nil || viewData.View == nil {
		return
	}
	e.l.Debug("metrics",
		zap.String("view", viewData.View.Name),
		zap.Time("start", viewData.Start),
		zap.Time("end", viewData.End),
		zap.Int("rows", len(viewData.Rows)),
		zap.Any("data", viewData.Rows),
	)
}
