package session

import (
	"github.com/temoto/thermux/internal/metric"
	"github.com/temoto/thermux/sparkplug"
)

// CheckCompatibility requires the communications version metric in a
// birth payload to be present and equal expected. Fails closed.
func CheckCompatibility(p *sparkplug.Payload, expected int64, d *Diagnostics) bool {
	ms := p.FindByName(metric.NameCommsVersion)
	if len(ms) == 0 {
		d.add(KindVersionMissing, "No %s metric in NBIRTH message", metric.NameCommsVersion)
		return false
	}

	compatible := true
	seen := make(map[sparkplug.Value]struct{}, len(ms))
	for _, m := range ms {
		v, ok := m.Value.Int64()
		if ok {
			seen[sparkplug.IntValue(v)] = struct{}{}
		} else {
			seen[m.Value] = struct{}{}
		}
		switch {
		case !ok:
			d.add(KindVersionIncompatible, "Module communications version is not an integer: %s", m.Value)
			compatible = false
		case v != expected:
			d.add(KindVersionIncompatible, "Module is using an incompatible communications version: %d instead of %d", v, expected)
			compatible = false
		}
	}
	if len(seen) > 1 {
		d.add(KindVersionConflict, "Multiple conflicting %s metrics in NBIRTH message", metric.NameCommsVersion)
		compatible = false
	} else if len(ms) > 1 {
		d.add(KindVersionDuplicate, "Multiple %s metrics in NBIRTH message", metric.NameCommsVersion)
	}
	return compatible
}
