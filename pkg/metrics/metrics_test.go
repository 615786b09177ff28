package metrics

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
)

// recorder keeps the names of exported views
type recorder struct {
	mx    sync.Mutex
	views map[string]int
}

func (r *recorder) ExportView(data *view.Data) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.views[data.View.Name] += len(data.Rows)
}

func (r *recorder) rows(name string) int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.views[name]
}

func TestScanStruct(t *testing.T) {
	s := newSettings(WithExporter(testExporter(map[string]string{"test": "scan"})))
	m := &exampleMetrics{}

	scanStruct("parent", s.addMetric, m)

	assert.Nil(t, m.Telemetry.Ignored)
	assert.Nil(t, m.Telemetry.Failures)
	assert.Nil(t, m.Telemetry.Untagged)

	assert.NotNil(t, m.Telemetry.TestCount)
	assert.NotNil(t, m.Volumetry.Objects.Objects)
	assert.NotNil(t, m.Volumetry.Objects.Bytes)
	require.NotNil(t, m.Network.Requests, "nested pointers are allocated")
	assert.NotNil(t, m.Network.Requests.Count)
	assert.NotNil(t, m.Network.Requests.Failures)
	assert.NotNil(t, m.Network.Requests.Bytes)
	require.NotNil(t, m.Network.Requests.Timing)
	assert.IsType(t, &stats.Float64Measure{}, m.Network.Requests.Timing)
	assert.NotNil(t, m.Usage.Timing)

	assert.Equal(t, "parent/volumetry/objects/objectCount", m.Volumetry.Objects.Objects.Name())
	assert.Equal(t, "parent/network/ioBytes", m.Network.Requests.Bytes.Name())

	// testCount, objects (2), io (4), usage (3)
	assert.Len(t, s.allMetrics, 10)
	// plus sum views on objectCount, objectSize and ioBytes
	assert.Len(t, s.allViews, 13)
}

func TestScanStructPanics(t *testing.T) {
	s := newSettings()
	assert.Panics(t, func() { scanStruct("x", s.addMetric, exampleMetrics{}) })
	assert.Panics(t, func() { scanStruct("x", s.addMetric, (*exampleMetrics)(nil)) })
}

func TestParseSpec(t *testing.T) {
	field, ok := reflect.TypeOf(ObjectsMetrics{}).FieldByName("Bytes")
	require.True(t, ok)

	spec := parseSpec(field)
	assert.Equal(t, "objectSize", spec.name)
	assert.Equal(t, unitBytes, spec.unit)
	assert.Equal(t, []string{"sum"}, spec.views)
	require.Len(t, spec.keys, 2)
	assert.Equal(t, "kind", spec.keys[0].Name())
	assert.Equal(t, "operation", spec.keys[1].Name())

	assert.Empty(t, splitList(" , "))
}

func TestEnsureMetrics(t *testing.T) {
	Init(WithExporter(testExporter(map[string]string{"test": "ensure"})))

	testMetrics := &exampleMetrics{}
	x := EnsureMetrics("registerExample", testMetrics)
	require.NotNil(t, testMetrics.Telemetry.TestCount)

	// retry registration
	y := EnsureMetrics("registerExample", &exampleMetrics{})
	require.Equal(t, x, y)

	assert.Panics(t, func() {
		_ = EnsureMetrics("registerExample", &ObjectsMetrics{})
	})

	var e Enable
	assert.False(t, e.MetricsEnabled())
	e.EnableMetrics(true)
	assert.True(t, e.MetricsEnabled())
	assert.Equal(t, x, e.EnsureMetrics("registerExample", &exampleMetrics{}))
}

func TestRecordAndFlush(t *testing.T) {
	rec := &recorder{views: make(map[string]int)}
	s := newSettings(WithBasePath("root"), WithExporter(rec))
	testMetrics := &exampleMetrics{}
	_ = s.EnsureMetrics("recording", testMetrics)
	require.Len(t, s.modules, 1)

	t0 := time.Now()
	testMetrics.IncTest()
	testMetrics.Network.Requests.IORecord(t0, "read")(100, nil)
	testMetrics.Network.Requests.IORecord(t0, "write")(0, errors.New("failure"))
	testMetrics.Volumetry.Objects.Inc("node", "write")
	testMetrics.Volumetry.Objects.Size(100, "commit", "write")
	testMetrics.Volumetry.Objects.Size(0, "contents", "fetch")
	testMetrics.Usage.Inc("Set")
	testMetrics.Usage.UsedAll(t0, "Push")(nil)
	testMetrics.Usage.UsedAll(t0, "Push")(errors.New("failure"))

	s.Flush()

	assert.NotZero(t, rec.rows("root/recording/telemetry/testCount"))
	assert.NotZero(t, rec.rows("root/recording/network/ioCount"))
	assert.NotZero(t, rec.rows("root/recording/network/ioFailures"))
	assert.NotZero(t, rec.rows("root/recording/volumetry/objects/objectSize"))
	assert.NotZero(t, rec.rows("root/recording/usage/usageFailures"))
}
