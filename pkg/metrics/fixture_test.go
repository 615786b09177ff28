package metrics

import "go.opencensus.io/stats"

type exampleMetrics struct {
	Telemetry struct {
		Ignored   []ObjectsMetrics      `group:"ignored"`
		Failures  []*stats.Int64Measure `group:"failures"`
		Untagged  *stats.Int64Measure
		TestCount *stats.Int64Measure `metric:"testCount" description:"number of tests" tags:"kind"`
	} `group:"telemetry"`
	Volumetry struct {
		Objects ObjectsMetrics `group:"objects"`
	} `group:"volumetry"`
	Network struct {
		Requests *IOMetrics
	} `group:"network"`
	Usage UsageMetrics `group:"usage"`
}

func (e *exampleMetrics) IncTest() {
	Inc(e.Telemetry.TestCount, map[string]string{"kind": "test"})
}
