// Package sparkplug is the Sparkplug B wire model used by thermux:
// topics, the scalar subset of Payload/Metric and its protobuf codec.
package sparkplug

import (
	"fmt"
	"math"
	"strconv"
)

// DataType numbering follows sparkplug_b.proto.
type DataType uint32

const (
	TypeUnknown  DataType = 0
	TypeInt8     DataType = 1
	TypeInt16    DataType = 2
	TypeInt32    DataType = 3
	TypeInt64    DataType = 4
	TypeUInt8    DataType = 5
	TypeUInt16   DataType = 6
	TypeUInt32   DataType = 7
	TypeUInt64   DataType = 8
	TypeFloat    DataType = 9
	TypeDouble   DataType = 10
	TypeBoolean  DataType = 11
	TypeString   DataType = 12
	TypeDateTime DataType = 13
	TypeText     DataType = 14
	TypeUUID     DataType = 15
	TypeDataSet  DataType = 16
	TypeBytes    DataType = 17
	TypeFile     DataType = 18
	TypeTemplate DataType = 19
)

var dataTypeNames = map[DataType]string{
	TypeUnknown:  "Unknown",
	TypeInt8:     "Int8",
	TypeInt16:    "Int16",
	TypeInt32:    "Int32",
	TypeInt64:    "Int64",
	TypeUInt8:    "UInt8",
	TypeUInt16:   "UInt16",
	TypeUInt32:   "UInt32",
	TypeUInt64:   "UInt64",
	TypeFloat:    "Float",
	TypeDouble:   "Double",
	TypeBoolean:  "Boolean",
	TypeString:   "String",
	TypeDateTime: "DateTime",
	TypeText:     "Text",
	TypeUUID:     "UUID",
	TypeDataSet:  "DataSet",
	TypeBytes:    "Bytes",
	TypeFile:     "File",
	TypeTemplate: "Template",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", uint32(t))
}

// Supported reports whether values of this type map into Value.
func (t DataType) Supported() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64,
		TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64, TypeDateTime,
		TypeFloat, TypeDouble, TypeBoolean,
		TypeString, TypeText, TypeUUID:
		return true
	}
	return false
}

type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
)

// Value is a closed union of the scalar metric values.
// Zero Value is absent (KindNone).
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
}

func BoolValue(v bool) Value       { return Value{kind: KindBool, b: v} }
func IntValue(v int64) Value       { return Value{kind: KindInt, i: v} }
func UintValue(v uint64) Value     { return Value{kind: KindUint, u: v} }
func FloatValue(v float64) Value   { return Value{kind: KindFloat, f: v} }
func StringValue(v string) Value   { return Value{kind: KindString, s: v} }
func (v Value) Kind() Kind         { return v.kind }
func (v Value) IsNone() bool       { return v.kind == KindNone }
func (v Value) Bool() bool         { return v.b }
func (v Value) Int() int64         { return v.i }
func (v Value) Uint() uint64       { return v.u }
func (v Value) Float() float64     { return v.f }
func (v Value) Str() string        { return v.s }
func (v Value) Equal(o Value) bool { return v == o }

// Int64 coerces integer kinds, ok=false for other kinds or uint overflow.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindUint:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	}
	return 0, false
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	}
	return "None"
}

type Metric struct {
	Name      *string
	Alias     *uint64
	Timestamp *uint64
	Datatype  DataType
	IsNull    bool
	Value     Value
}

func (m *Metric) GetName() string {
	if m == nil || m.Name == nil {
		return ""
	}
	return *m.Name
}

func (m *Metric) GetAlias() (uint64, bool) {
	if m == nil || m.Alias == nil {
		return 0, false
	}
	return *m.Alias, true
}

func (m *Metric) GetTimestamp() uint64 {
	if m == nil || m.Timestamp == nil {
		return 0
	}
	return *m.Timestamp
}

func (m *Metric) String() string {
	alias := "None"
	if a, ok := m.GetAlias(); ok {
		alias = strconv.FormatUint(a, 10)
	}
	return fmt.Sprintf("name=%q alias=%s type=%s value=%s", m.GetName(), alias, m.Datatype, m.Value)
}

// Payload is the decoded Sparkplug B envelope.
// Timestamp is milliseconds since epoch.
type Payload struct {
	Timestamp *uint64
	Seq       *uint64
	UUID      *string
	Body      []byte
	Metrics   []*Metric
}

func (p *Payload) GetTimestamp() uint64 {
	if p == nil || p.Timestamp == nil {
		return 0
	}
	return *p.Timestamp
}

// FindByName returns every metric carrying exactly this name.
func (p *Payload) FindByName(name string) []*Metric {
	var ms []*Metric
	for _, m := range p.Metrics {
		if m.Name != nil && *m.Name == name {
			ms = append(ms, m)
		}
	}
	return ms
}
