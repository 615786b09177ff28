package metrics

import (
	"fmt"
	"path"
	"reflect"
	"strings"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

var (
	int64MeasureType   = reflect.TypeOf(&stats.Int64Measure{})
	float64MeasureType = reflect.TypeOf(&stats.Float64Measure{})
)

// fieldSpec is the definition of a metric, decoded from the tags of a struct field.
//
// Supported tags are:
//   - metric: the metric name. Fields without a metric name are scanned for nested metrics
//   - group: builds an additional path to the metric (e.g.  root/path/{group}/{metric})
//   - unit: count (default), bytes, sumbytes or milliseconds
//   - description: adds this description to the metric and the associated views
//   - extraviews:[aggregator, ...]: builds additional views with alternate aggregators (count, sum, lastvalue)
//   - tags:[key, ...]: the tag keys views are grouped by
type fieldSpec struct {
	name        string
	group       string
	unit        string
	description string
	views       []string
	keys        []tag.Key
}

func parseSpec(field reflect.StructField) fieldSpec {
	spec := fieldSpec{
		name:        field.Tag.Get("metric"),
		group:       field.Tag.Get("group"),
		unit:        field.Tag.Get("unit"),
		description: field.Tag.Get("description"),
		views:       splitList(field.Tag.Get("extraviews")),
	}
	for _, key := range splitList(field.Tag.Get("tags")) {
		spec.keys = append(spec.keys, tag.MustNewKey(key))
	}
	return spec
}

func splitList(value string) []string {
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

// measureAllocator creates the measure declared by some field at some location
type measureAllocator func(location string, spec fieldSpec, measureType reflect.Type) stats.Measure

func sameType(a, b interface{}) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

// scanStruct allocates all measures declared by the fields of a pointer to a struct
func scanStruct(parent string, alloc measureAllocator, m interface{}) {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("scanStruct requires a pointer to a struct, got: %T", m))
	}
	scanFields(parent, alloc, rv.Elem())
}

func scanFields(parent string, alloc measureAllocator, v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		spec := parseSpec(field)
		location := path.Join(parent, spec.group)
		fv := v.Field(i)

		switch {
		case field.Type == int64MeasureType || field.Type == float64MeasureType:
			if spec.name == "" {
				continue
			}
			if measure := alloc(location, spec, field.Type); measure != nil {
				fv.Set(reflect.ValueOf(measure))
			}
		case field.Type.Kind() == reflect.Struct:
			scanFields(location, alloc, fv)
		case field.Type.Kind() == reflect.Ptr && field.Type.Elem().Kind() == reflect.Struct:
			if fv.IsNil() {
				fv.Set(reflect.New(field.Type.Elem()))
			}
			scanFields(location, alloc, fv.Elem())
		}
		// slices, maps and other types are ignored
	}
}
