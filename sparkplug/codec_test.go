package sparkplug_test

import (
	"math"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/thermux/sparkplug"
	"google.golang.org/protobuf/encoding/protowire"
)

func appendMetric(b []byte, fields func([]byte) []byte) []byte {
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	return protowire.AppendBytes(b, fields(nil))
}

func TestDecodeBirth(t *testing.T) {
	t.Parallel()

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 1600000000123)
	b = appendMetric(b, func(m []byte) []byte {
		m = protowire.AppendTag(m, 1, protowire.BytesType)
		m = protowire.AppendString(m, "Properties/Communications Version")
		m = protowire.AppendTag(m, 2, protowire.VarintType)
		m = protowire.AppendVarint(m, 3)
		m = protowire.AppendTag(m, 4, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(sparkplug.TypeInt64))
		// properties, not part of the scalar subset
		m = protowire.AppendTag(m, 9, protowire.BytesType)
		m = protowire.AppendBytes(m, []byte{0x0a, 0x01, 'x'})
		m = protowire.AppendTag(m, 11, protowire.VarintType)
		return protowire.AppendVarint(m, 2)
	})
	b = appendMetric(b, func(m []byte) []byte {
		m = protowire.AppendTag(m, 2, protowire.VarintType)
		m = protowire.AppendVarint(m, 7)
		m = protowire.AppendTag(m, 4, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(sparkplug.TypeInt8))
		m = protowire.AppendTag(m, 10, protowire.VarintType)
		return protowire.AppendVarint(m, uint64(uint32(0xfffffffe)))
	})
	b = appendMetric(b, func(m []byte) []byte {
		m = protowire.AppendTag(m, 1, protowire.BytesType)
		m = protowire.AppendString(m, "Inputs/THERMISTOR1")
		m = protowire.AppendTag(m, 4, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(sparkplug.TypeFloat))
		m = protowire.AppendTag(m, 12, protowire.Fixed32Type)
		return protowire.AppendFixed32(m, math.Float32bits(21.5))
	})
	b = appendMetric(b, func(m []byte) []byte {
		m = protowire.AppendTag(m, 1, protowire.BytesType)
		m = protowire.AppendString(m, "Blob")
		m = protowire.AppendTag(m, 4, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(sparkplug.TypeBytes))
		m = protowire.AppendTag(m, 16, protowire.BytesType)
		return protowire.AppendBytes(m, []byte{1, 2, 3})
	})
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, 0)

	p, err := sparkplug.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(1600000000123), p.GetTimestamp())
	require.NotNil(t, p.Seq)
	assert.Equal(t, uint64(0), *p.Seq)
	require.Len(t, p.Metrics, 4)

	version := p.Metrics[0]
	assert.Equal(t, "Properties/Communications Version", version.GetName())
	alias, ok := version.GetAlias()
	assert.True(t, ok)
	assert.Equal(t, uint64(3), alias)
	assert.Equal(t, sparkplug.IntValue(2), version.Value)

	aliased := p.Metrics[1]
	assert.Equal(t, "", aliased.GetName())
	assert.Equal(t, sparkplug.IntValue(-2), aliased.Value)

	assert.Equal(t, sparkplug.FloatValue(21.5), p.Metrics[2].Value)

	assert.Equal(t, sparkplug.TypeBytes, p.Metrics[3].Datatype)
	assert.True(t, p.Metrics[3].Value.IsNone())
	assert.Len(t, p.FindByName("Blob"), 1)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input []byte
	}{
		{"truncated-varint", []byte{0x08, 0xff}},
		{"truncated-metric", []byte{0x12, 0x05, 0x0a}},
		{"bad-tag", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			_, err := sparkplug.Decode(c.input)
			assert.Error(t, err)
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	t.Parallel()

	p := &sparkplug.Payload{
		Timestamp: proto.Uint64(1600000000000),
		Metrics: []*sparkplug.Metric{
			{Alias: proto.Uint64(7), Datatype: sparkplug.TypeBoolean, Value: sparkplug.BoolValue(true)},
			{Name: proto.String("Node Control/Calibration Temperature 2"), Datatype: sparkplug.TypeFloat, Value: sparkplug.FloatValue(99.5)},
			{Name: proto.String("Inputs/ADC Internal Temperature"), Datatype: sparkplug.TypeDouble},
		},
	}
	b, err := sparkplug.Encode(p)
	require.NoError(t, err)

	back, err := sparkplug.Decode(b)
	require.NoError(t, err)
	assert.Nil(t, back.Seq)
	require.Len(t, back.Metrics, 3)
	assert.Nil(t, back.Metrics[0].Name)
	assert.Equal(t, sparkplug.BoolValue(true), back.Metrics[0].Value)
	assert.Equal(t, sparkplug.FloatValue(99.5), back.Metrics[1].Value)
	assert.True(t, back.Metrics[2].IsNull)
	assert.True(t, back.Metrics[2].Value.IsNone())
}

func TestEncodeRejects(t *testing.T) {
	t.Parallel()

	_, err := sparkplug.Encode(&sparkplug.Payload{Metrics: []*sparkplug.Metric{
		{Name: proto.String("x"), Datatype: sparkplug.TypeDataSet},
	}})
	assert.Error(t, err)

	_, err = sparkplug.Encode(&sparkplug.Payload{Metrics: []*sparkplug.Metric{
		{Name: proto.String("x"), Datatype: sparkplug.TypeBoolean, Value: sparkplug.StringValue("yes")},
	}})
	assert.Error(t, err)
}

func TestValueInt64(t *testing.T) {
	t.Parallel()

	x, ok := sparkplug.UintValue(2).Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(2), x)
	_, ok = sparkplug.UintValue(math.MaxUint64).Int64()
	assert.False(t, ok)
	_, ok = sparkplug.FloatValue(2).Int64()
	assert.False(t, ok)
	assert.Equal(t, "None", sparkplug.Value{}.String())
}
