package sparkplug

import (
	"math"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// sparkplug_b.proto field numbers, scalar subset
const (
	fieldPayloadTimestamp protowire.Number = 1
	fieldPayloadMetrics   protowire.Number = 2
	fieldPayloadSeq       protowire.Number = 3
	fieldPayloadUUID      protowire.Number = 4
	fieldPayloadBody      protowire.Number = 5

	fieldMetricName      protowire.Number = 1
	fieldMetricAlias     protowire.Number = 2
	fieldMetricTimestamp protowire.Number = 3
	fieldMetricDatatype  protowire.Number = 4
	fieldMetricIsNull    protowire.Number = 7
	fieldMetricInt       protowire.Number = 10
	fieldMetricLong      protowire.Number = 11
	fieldMetricFloat     protowire.Number = 12
	fieldMetricDouble    protowire.Number = 13
	fieldMetricBoolean   protowire.Number = 14
	fieldMetricString    protowire.Number = 15
)

// Decode parses Sparkplug B payload bytes.
// Fields outside the scalar subset (metadata, properties, datasets,
// templates, extensions) are skipped.
func Decode(b []byte) (*Payload, error) {
	p := &Payload{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Annotate(protowire.ParseError(n), "payload tag")
		}
		b = b[n:]

		switch {
		case num == fieldPayloadTimestamp && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			p.Timestamp = proto.Uint64(v)
		case num == fieldPayloadSeq && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			p.Seq = proto.Uint64(v)
		case num == fieldPayloadUUID && typ == protowire.BytesType:
			var v string
			v, n = protowire.ConsumeString(b)
			p.UUID = proto.String(v)
		case num == fieldPayloadBody && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			p.Body = append([]byte(nil), v...)
		case num == fieldPayloadMetrics && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				m, err := decodeMetric(raw)
				if err != nil {
					return nil, errors.Annotatef(err, "metric index=%d", len(p.Metrics))
				}
				p.Metrics = append(p.Metrics, m)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, errors.Annotatef(protowire.ParseError(n), "payload field=%d", num)
		}
		b = b[n:]
	}
	return p, nil
}

type rawValue struct {
	hasInt, hasLong, hasFloat, hasDouble, hasBool, hasString bool

	intValue    uint32
	longValue   uint64
	floatValue  float32
	doubleValue float64
	boolValue   bool
	stringValue string
}

func decodeMetric(b []byte) (*Metric, error) {
	m := &Metric{}
	var raw rawValue
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Annotate(protowire.ParseError(n), "metric tag")
		}
		b = b[n:]

		var v uint64
		switch {
		case num == fieldMetricName && typ == protowire.BytesType:
			var s string
			s, n = protowire.ConsumeString(b)
			m.Name = proto.String(s)
		case num == fieldMetricAlias && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			m.Alias = proto.Uint64(v)
		case num == fieldMetricTimestamp && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			m.Timestamp = proto.Uint64(v)
		case num == fieldMetricDatatype && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			m.Datatype = DataType(v)
		case num == fieldMetricIsNull && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			m.IsNull = protowire.DecodeBool(v)
		case num == fieldMetricInt && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			raw.hasInt, raw.intValue = true, uint32(v)
		case num == fieldMetricLong && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			raw.hasLong, raw.longValue = true, v
		case num == fieldMetricFloat && typ == protowire.Fixed32Type:
			var f uint32
			f, n = protowire.ConsumeFixed32(b)
			raw.hasFloat, raw.floatValue = true, math.Float32frombits(f)
		case num == fieldMetricDouble && typ == protowire.Fixed64Type:
			v, n = protowire.ConsumeFixed64(b)
			raw.hasDouble, raw.doubleValue = true, math.Float64frombits(v)
		case num == fieldMetricBoolean && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			raw.hasBool, raw.boolValue = true, protowire.DecodeBool(v)
		case num == fieldMetricString && typ == protowire.BytesType:
			var s string
			s, n = protowire.ConsumeString(b)
			raw.hasString, raw.stringValue = true, s
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, errors.Annotatef(protowire.ParseError(n), "metric field=%d", num)
		}
		b = b[n:]
	}
	if !m.IsNull {
		m.Value = raw.value(m.Datatype)
	}
	return m, nil
}

func (r *rawValue) integer() (uint64, bool) {
	switch {
	case r.hasLong:
		return r.longValue, true
	case r.hasInt:
		return uint64(r.intValue), true
	}
	return 0, false
}

// value maps wire fields to Value by declared datatype.
// Unsupported datatypes and absent value fields give KindNone.
func (r *rawValue) value(t DataType) Value {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32:
		x, ok := r.integer()
		if !ok {
			return Value{}
		}
		switch t {
		case TypeInt8:
			return IntValue(int64(int8(x)))
		case TypeInt16:
			return IntValue(int64(int16(x)))
		}
		return IntValue(int64(int32(x)))
	case TypeInt64:
		if x, ok := r.integer(); ok {
			return IntValue(int64(x))
		}
	case TypeUInt8, TypeUInt16, TypeUInt32:
		x, ok := r.integer()
		if !ok {
			return Value{}
		}
		switch t {
		case TypeUInt8:
			return UintValue(uint64(uint8(x)))
		case TypeUInt16:
			return UintValue(uint64(uint16(x)))
		}
		return UintValue(uint64(uint32(x)))
	case TypeUInt64, TypeDateTime:
		if x, ok := r.integer(); ok {
			return UintValue(x)
		}
	case TypeFloat, TypeDouble:
		switch {
		case r.hasFloat:
			return FloatValue(float64(r.floatValue))
		case r.hasDouble:
			return FloatValue(r.doubleValue)
		}
	case TypeBoolean:
		if r.hasBool {
			return BoolValue(r.boolValue)
		}
	case TypeString, TypeText, TypeUUID:
		if r.hasString {
			return StringValue(r.stringValue)
		}
	}
	return Value{}
}

// Encode serializes payload. Metrics with unsupported datatypes are
// rejected, absent values are sent as is_null.
func Encode(p *Payload) ([]byte, error) {
	buf := proto.NewBuffer(make([]byte, 0, 64))
	if p.Timestamp != nil {
		putTag(buf, fieldPayloadTimestamp, protowire.VarintType)
		_ = buf.EncodeVarint(*p.Timestamp)
	}
	for i, m := range p.Metrics {
		b, err := encodeMetric(m)
		if err != nil {
			return nil, errors.Annotatef(err, "metric index=%d", i)
		}
		putTag(buf, fieldPayloadMetrics, protowire.BytesType)
		if err = buf.EncodeRawBytes(b); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if p.Seq != nil {
		putTag(buf, fieldPayloadSeq, protowire.VarintType)
		_ = buf.EncodeVarint(*p.Seq)
	}
	if p.UUID != nil {
		putTag(buf, fieldPayloadUUID, protowire.BytesType)
		_ = buf.EncodeStringBytes(*p.UUID)
	}
	if p.Body != nil {
		putTag(buf, fieldPayloadBody, protowire.BytesType)
		_ = buf.EncodeRawBytes(p.Body)
	}
	return buf.Bytes(), nil
}

func encodeMetric(m *Metric) ([]byte, error) {
	if !m.Datatype.Supported() {
		return nil, errors.NotSupportedf("datatype=%s", m.Datatype)
	}
	buf := proto.NewBuffer(make([]byte, 0, 32))
	if m.Name != nil {
		putTag(buf, fieldMetricName, protowire.BytesType)
		_ = buf.EncodeStringBytes(*m.Name)
	}
	if m.Alias != nil {
		putTag(buf, fieldMetricAlias, protowire.VarintType)
		_ = buf.EncodeVarint(*m.Alias)
	}
	if m.Timestamp != nil {
		putTag(buf, fieldMetricTimestamp, protowire.VarintType)
		_ = buf.EncodeVarint(*m.Timestamp)
	}
	putTag(buf, fieldMetricDatatype, protowire.VarintType)
	_ = buf.EncodeVarint(uint64(m.Datatype))

	v := m.Value
	if m.IsNull || v.IsNone() {
		putTag(buf, fieldMetricIsNull, protowire.VarintType)
		_ = buf.EncodeVarint(1)
		return buf.Bytes(), nil
	}
	switch m.Datatype {
	case TypeInt8, TypeInt16, TypeInt32:
		x, ok := v.Int64()
		if !ok {
			return nil, errors.NotValidf("value=%s for datatype=%s", v, m.Datatype)
		}
		putTag(buf, fieldMetricInt, protowire.VarintType)
		_ = buf.EncodeVarint(uint64(uint32(int32(x))))
	case TypeUInt8, TypeUInt16, TypeUInt32:
		x, ok := v.Int64()
		if !ok || x < 0 {
			return nil, errors.NotValidf("value=%s for datatype=%s", v, m.Datatype)
		}
		putTag(buf, fieldMetricInt, protowire.VarintType)
		_ = buf.EncodeVarint(uint64(uint32(x)))
	case TypeInt64, TypeUInt64, TypeDateTime:
		var x uint64
		switch v.Kind() {
		case KindInt:
			x = uint64(v.Int())
		case KindUint:
			x = v.Uint()
		default:
			return nil, errors.NotValidf("value=%s for datatype=%s", v, m.Datatype)
		}
		putTag(buf, fieldMetricLong, protowire.VarintType)
		_ = buf.EncodeVarint(x)
	case TypeFloat:
		if v.Kind() != KindFloat {
			return nil, errors.NotValidf("value=%s for datatype=%s", v, m.Datatype)
		}
		putTag(buf, fieldMetricFloat, protowire.Fixed32Type)
		_ = buf.EncodeFixed32(uint64(math.Float32bits(float32(v.Float()))))
	case TypeDouble:
		if v.Kind() != KindFloat {
			return nil, errors.NotValidf("value=%s for datatype=%s", v, m.Datatype)
		}
		putTag(buf, fieldMetricDouble, protowire.Fixed64Type)
		_ = buf.EncodeFixed64(math.Float64bits(v.Float()))
	case TypeBoolean:
		if v.Kind() != KindBool {
			return nil, errors.NotValidf("value=%s for datatype=%s", v, m.Datatype)
		}
		putTag(buf, fieldMetricBoolean, protowire.VarintType)
		_ = buf.EncodeVarint(protowire.EncodeBool(v.Bool()))
	case TypeString, TypeText, TypeUUID:
		if v.Kind() != KindString {
			return nil, errors.NotValidf("value=%s for datatype=%s", v, m.Datatype)
		}
		putTag(buf, fieldMetricString, protowire.BytesType)
		_ = buf.EncodeStringBytes(v.Str())
	}
	return buf.Bytes(), nil
}

// proto.Buffer appends to memory and never fails
func putTag(buf *proto.Buffer, num protowire.Number, typ protowire.Type) {
	_ = buf.EncodeVarint(protowire.EncodeTag(num, typ))
}
