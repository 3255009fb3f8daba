// Package command builds NCMD payloads addressed the way the node expects:
// by alias once a birth declared one, by name before that.
package command

import (
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/thermux/internal/metric"
	"github.com/temoto/thermux/sparkplug"
)

// Resolver is the read side of metric.Registry.
type Resolver interface {
	Lookup(scope metric.Scope, name string) (metric.Entry, error)
}

type Builder struct {
	resolver Resolver
	scope    metric.Scope
	now      func() time.Time
}

func NewBuilder(resolver Resolver, scope metric.Scope) *Builder {
	return &Builder{resolver: resolver, scope: scope, now: time.Now}
}

func (self *Builder) build(name string, dt sparkplug.DataType, v sparkplug.Value) (*sparkplug.Payload, error) {
	e, err := self.resolver.Lookup(self.scope, name)
	if err != nil {
		return nil, errors.Annotate(err, "command")
	}
	ts := proto.Uint64(uint64(self.now().UnixMilli()))
	m := &sparkplug.Metric{Timestamp: ts, Datatype: dt, Value: v}
	if e.HasAlias {
		m.Alias = proto.Uint64(e.Alias)
	} else {
		m.Name = proto.String(e.Name)
	}
	return &sparkplug.Payload{Timestamp: ts, Metrics: []*sparkplug.Metric{m}}, nil
}

func (self *Builder) BuildSimple(name string, value bool) (*sparkplug.Payload, error) {
	return self.build(name, sparkplug.TypeBoolean, sparkplug.BoolValue(value))
}

// BuildCalibrationTemperature n is 1 or 2.
func (self *Builder) BuildCalibrationTemperature(n int, value float32) (*sparkplug.Payload, error) {
	if n != 1 && n != 2 {
		return nil, errors.NotValidf("calibration temperature number=%d", n)
	}
	return self.build(metric.NameCalibrationTemperature(n), sparkplug.TypeFloat, sparkplug.FloatValue(float64(value)))
}

func (self *Builder) BuildRebirth() (*sparkplug.Payload, error) {
	return self.BuildSimple(metric.NameRebirth, true)
}

func (self *Builder) BuildReboot() (*sparkplug.Payload, error) {
	return self.BuildSimple(metric.NameReboot, true)
}

func (self *Builder) BuildClearCalibration() (*sparkplug.Payload, error) {
	return self.BuildSimple(metric.NameClearCalibration, true)
}
