package core

import (
	"github.com/oneconcern/irmin/pkg/metrics"
	"go.opencensus.io/stats"
)

// M describes metrics for the core package
type M struct {
	Volume struct {
		Updates updateMetrics `group:"updates" description:"metrics about branch updates"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the core package"`
}

type updateMetrics struct {
	Commits   *stats.Int64Measure `metric:"commits" extraviews:"sum" tags:"operation" description:"number of commits moved to a branch head"`
	Retries   *stats.Int64Measure `metric:"retries" extraviews:"sum" tags:"operation" description:"number of updates retried after losing a race on a branch head"`
	Exhausted *stats.Int64Measure `metric:"exhausted" tags:"operation" description:"number of updates abandoned after too many lost races"`
	Conflicts *stats.Int64Measure `metric:"conflicts" extraviews:"sum" tags:"operation" description:"number of merges failing with conflicts"`
}

func (*updateMetrics) tags(operation string) map[string]string {
	return map[string]string{"operation": operation}
}

func (u *updateMetrics) Commit(operation string) {
	metrics.Inc(u.Commits, u.tags(operation))
}

func (u *updateMetrics) Retry(operation string) {
	metrics.Inc(u.Retries, u.tags(operation))
}

func (u *updateMetrics) Exhaust(operation string) {
	metrics.Inc(u.Exhausted, u.tags(operation))
}

func (u *updateMetrics) Conflict(operation string) {
	metrics.Inc(u.Conflicts, u.tags(operation))
}
