package cmd

import (
	"time"

	"github.com/oneconcern/irmin/pkg/dlogger"
	"github.com/oneconcern/irmin/pkg/metrics"
	"go.uber.org/zap"
)

// M describes metrics for the cmd package
type M struct {
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for irmin CLI"`
}

var cliMetrics *M

func initMetrics() {
	if !cliConfig.Repo.Metrics || cliMetrics != nil {
		return
	}
	l, err := dlogger.GetLogger(cliConfig.Repo.LogLevel, dlogger.Console())
	if err != nil {
		l = zap.NewNop()
	}
	metrics.Init(metrics.WithLogger(l))
	cliMetrics = metrics.EnsureMetrics("cli", &M{}).(*M)
}

// cliUsage records a usage metric in the CLI context in a single go.
// This is intended to be used in some defer statement.
//
// Metrics are flushed as soon as the command is done.
func cliUsage(t0 time.Time, command string, err error) {
	if cliMetrics != nil {
		cliMetrics.Usage.UsedAll(t0, command)(err)
		metrics.Flush()
	}
}
