package session

import (
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/temoto/thermux/internal/metric"
	"github.com/temoto/thermux/sparkplug"
)

func versionMetric(v sparkplug.Value) *sparkplug.Metric {
	return &sparkplug.Metric{Name: proto.String(metric.NameCommsVersion), Datatype: sparkplug.TypeInt64, Value: v}
}

func TestCheckCompatibility(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		metrics []*sparkplug.Metric
		expect  bool
		kinds   []Kind
	}{
		{"ok", []*sparkplug.Metric{versionMetric(sparkplug.IntValue(2))}, true, nil},
		{"ok-uint", []*sparkplug.Metric{versionMetric(sparkplug.UintValue(2))}, true, nil},
		{"missing", nil, false, []Kind{KindVersionMissing}},
		{"mismatch", []*sparkplug.Metric{versionMetric(sparkplug.IntValue(1))}, false, []Kind{KindVersionIncompatible}},
		{"not-integer", []*sparkplug.Metric{versionMetric(sparkplug.StringValue("2"))}, false, []Kind{KindVersionIncompatible}},
		{"duplicate-same", []*sparkplug.Metric{
			versionMetric(sparkplug.IntValue(2)),
			versionMetric(sparkplug.UintValue(2)),
		}, true, []Kind{KindVersionDuplicate}},
		{"duplicate-conflict", []*sparkplug.Metric{
			versionMetric(sparkplug.IntValue(2)),
			versionMetric(sparkplug.IntValue(3)),
		}, false, []Kind{KindVersionIncompatible, KindVersionConflict}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			var d Diagnostics
			ok := CheckCompatibility(&sparkplug.Payload{Metrics: c.metrics}, 2, &d)
			assert.Equal(t, c.expect, ok)
			if c.kinds == nil {
				assert.Empty(t, d)
			} else {
				assert.Equal(t, c.kinds, d.Kinds())
			}
		})
	}
}
