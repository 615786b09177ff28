package metrics

import (
	"time"

	"go.opencensus.io/stats"
)

// ObjectsMetrics counts stored or transferred objects, by kind and operation
type ObjectsMetrics struct {
	Objects *stats.Int64Measure `metric:"objectCount" description:"number of objects" extraviews:"sum" tags:"kind,operation"`
	Bytes   *stats.Int64Measure `metric:"objectSize" unit:"bytes" description:"size of encoded objects" extraviews:"sum" tags:"kind,operation"`
}

func (o *ObjectsMetrics) tags(kind, operation string) map[string]string {
	return map[string]string{"kind": kind, "operation": operation}
}

// Inc increments the counter for objects of some kind
func (o *ObjectsMetrics) Inc(kind, operation string) {
	Inc(o.Objects, o.tags(kind, operation))
}

// Size measures the size of an encoded object. Zero sizes are not recorded.
func (o *ObjectsMetrics) Size(size int64, kind, operation string) {
	if size == 0 {
		return
	}
	Int64(o.Bytes, size, o.tags(kind, operation))
}

// IOMetrics reports about backend IO
type IOMetrics struct {
	Count    *stats.Int64Measure   `metric:"ioCount" description:"number of IO requests" tags:"operation"`
	Timing   *stats.Float64Measure `metric:"ioTiming" unit:"milliseconds" description:"response time of IO requests" tags:"operation"`
	Failures *stats.Int64Measure   `metric:"ioFailures" description:"number of failed IO requests" tags:"operation"`
	Bytes    *stats.Int64Measure   `metric:"ioBytes" unit:"bytes" description:"size of IO requests" extraviews:"sum" tags:"operation"`
}

func (n *IOMetrics) tags(operation string) map[string]string {
	return map[string]string{"operation": operation}
}

// IORecord records all metrics for an IO operation in one go, with a deferred call:
//
//	defer func(t0 time.Time) {
//	  m.IORecord(t0, "read")(int64(len(data)), err)
//	}(time.Now())
func (n *IOMetrics) IORecord(start time.Time, operation string) func(int64, error) {
	return func(size int64, err error) {
		tags := n.tags(operation)
		Since(start, n.Timing, tags)
		Inc(n.Count, tags)
		if err != nil {
			Inc(n.Failures, tags)
			return
		}
		if size > 0 {
			Int64(n.Bytes, size, tags)
		}
	}
}

// UsageMetrics reports about calls to some entry points
type UsageMetrics struct {
	Count    *stats.Int64Measure   `metric:"usageCount" description:"number of calls" tags:"method"`
	Failures *stats.Int64Measure   `metric:"usageFailures" description:"number of failed calls" tags:"method"`
	Timing   *stats.Float64Measure `metric:"timing" unit:"milliseconds" description:"duration of a call" tags:"method"`
}

func (u *UsageMetrics) tags(method string) map[string]string {
	return map[string]string{"method": method}
}

// Inc records the usage of some method, without timings or failure reporting
func (u *UsageMetrics) Inc(method string) {
	Inc(u.Count, u.tags(method))
}

// UsedAll records a call with its duration and failure, in one go:
//
//	defer func(t0 time.Time) {
//	  m.Usage.UsedAll(t0, "Push")(err)
//	}(time.Now())
func (u *UsageMetrics) UsedAll(start time.Time, method string) func(error) {
	return func(err error) {
		tags := u.tags(method)
		Since(start, u.Timing, tags)
		Inc(u.Count, tags)
		if err != nil {
			Inc(u.Failures, tags)
		}
	}
}
