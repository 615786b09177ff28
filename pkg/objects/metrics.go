package objects

import (
	"github.com/oneconcern/irmin/pkg/metrics"
	"go.opencensus.io/stats"
)

// M describes metrics for the objects package
type M struct {
	Volume struct {
		Objects metrics.ObjectsMetrics `group:"objects" description:"metrics about stored objects"`
		IO      metrics.IOMetrics      `group:"io" description:"metrics about object IO operations"`
		Cache   cacheUsage             `group:"cache" description:"metrics about the decoded objects cache"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the objects package"`
}

type cacheUsage struct {
	CacheHits    *stats.Int64Measure `metric:"cacheHits" extraviews:"sum" tags:"kind"`
	CacheMisses  *stats.Int64Measure `metric:"cacheMisses" extraviews:"sum" tags:"kind"`
	Duplicates   *stats.Int64Measure `metric:"duplicates" extraviews:"sum" tags:"kind" description:"number of writes of an already stored object"`
	CorruptReads *stats.Int64Measure `metric:"corrupt" tags:"kind" description:"number of objects failing hash verification"`
}

func (*cacheUsage) tags(kind string) map[string]string {
	return map[string]string{"kind": kind}
}

func (c *cacheUsage) Hit(kind string) {
	metrics.Inc(c.CacheHits, c.tags(kind))
}

func (c *cacheUsage) Miss(kind string) {
	metrics.Inc(c.CacheMisses, c.tags(kind))
}

func (c *cacheUsage) Duplicate(kind string) {
	metrics.Inc(c.Duplicates, c.tags(kind))
}

func (c *cacheUsage) Corrupt(kind string) {
	metrics.Inc(c.CorruptReads, c.tags(kind))
}
