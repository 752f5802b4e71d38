// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package complextype

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uacodec"
)

func nsID(id uint32) uacodec.ExpandedNodeID {
	return uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(2, id))
}

var (
	pointSchema = MustSchema("Point", Structure, []Field{
		{Name: "X", Order: 1, WireType: uacodec.TypeDouble, ValueRank: uacodec.ValueRankScalar},
		{Name: "Y", Order: 2, WireType: uacodec.TypeDouble, ValueRank: uacodec.ValueRankScalar},
	}, WithTypeID(nsID(1000)), WithBinaryEncodingID(nsID(1001)))

	colorEnum = &EnumDefinition{Name: "Color", Values: []EnumValue{
		{Name: "Red", Value: 0}, {Name: "Green", Value: 1}, {Name: "Blue", Value: 2},
	}}

	sampleSchema = MustSchema("Sample", StructureWithOptionalFields, []Field{
		{Name: "Id", Order: 1, WireType: uacodec.TypeUInt32, ValueRank: uacodec.ValueRankScalar},
		{Name: "Name", Order: 2, WireType: uacodec.TypeString, ValueRank: uacodec.ValueRankScalar},
		{Name: "Value", Order: 3, WireType: uacodec.TypeDouble, ValueRank: uacodec.ValueRankScalar},
		{Name: "Flag", Order: 4, WireType: uacodec.TypeBoolean, ValueRank: uacodec.ValueRankScalar, IsOptional: true},
	}, WithTypeID(nsID(2000)), WithBinaryEncodingID(nsID(2001)))

	richSchema = MustSchema("Rich", Structure, []Field{
		{Name: "Origin", Order: 1, Nested: pointSchema, ValueRank: uacodec.ValueRankScalar},
		{Name: "Path", Order: 2, Nested: pointSchema, ValueRank: uacodec.ValueRankOneDimension},
		{Name: "Tint", Order: 3, WireType: uacodec.TypeInt32, ValueRank: uacodec.ValueRankScalar, Enum: colorEnum},
		{Name: "Samples", Order: 4, WireType: uacodec.TypeInt16, ValueRank: uacodec.ValueRankOneDimension},
		{Name: "Grid", Order: 5, WireType: uacodec.TypeByte, ValueRank: 2},
		{Name: "Raw", Order: 6, WireType: uacodec.TypeByteString, ValueRank: uacodec.ValueRankScalar},
		{Name: "Node", Order: 7, WireType: uacodec.TypeNodeID, ValueRank: uacodec.ValueRankScalar},
		{Name: "Label", Order: 8, WireType: uacodec.TypeLocalizedText, ValueRank: uacodec.ValueRankScalar},
	}, WithTypeID(nsID(3000)), WithBinaryEncodingID(nsID(3001)))

	choiceSchema = MustSchema("Choice", Union, []Field{
		{Name: "Number", Order: 1, WireType: uacodec.TypeInt32, ValueRank: uacodec.ValueRankScalar},
		{Name: "Text", Order: 2, WireType: uacodec.TypeString, ValueRank: uacodec.ValueRankScalar},
	}, WithTypeID(nsID(4000)), WithBinaryEncodingID(nsID(4001)))
)

func newPoint(x, y float64) *Record {
	return pointSchema.New().MustSet("X", x).MustSet("Y", y)
}

type codec struct {
	name   string
	encode func(uacodec.Encodeable, ...uacodec.Option) ([]byte, error)
	decode func([]byte, uacodec.Encodeable, ...uacodec.Option) error
}

var codecs = []codec{
	{"binary", uacodec.EncodeBinary, uacodec.DecodeBinary},
	{"xml", uacodec.EncodeXML, uacodec.DecodeXML},
}

func roundTrip(t *testing.T, c codec, rec *Record) *Record {
	t.Helper()
	data, err := c.encode(rec)
	require.NoError(t, err)
	got := rec.Schema().New()
	require.NoError(t, c.decode(data, got), "decoding %q", data)
	return got
}

func TestRoundTrip(t *testing.T) {
	rich := richSchema.New().
		MustSet("Origin", newPoint(1, 2)).
		MustSet("Path", []*Record{newPoint(0, 0), newPoint(3.5, -1)}).
		MustSet("Tint", colorEnum.Values[2].Value).
		MustSet("Samples", []int16{-1, 0, 1}).
		MustSet("Grid", uacodec.Matrix{Dimensions: []int32{2, 2}, Elements: []byte{1, 2, 3, 4}}).
		MustSet("Raw", []byte{0xde, 0xad}).
		MustSet("Node", uacodec.NewStringNodeID(2, "Line1.Speed")).
		MustSet("Label", uacodec.NewLocalizedText("speed"))

	tests := []struct {
		name string
		rec  *Record
	}{
		{"structure", newPoint(1.25, -7)},
		{"empty structure", pointSchema.New()},
		{"nested", rich},
		{"optional present", sampleSchema.New().MustSet("Id", uint32(9)).MustSet("Flag", true)},
		{"optional absent", sampleSchema.New().MustSet("Id", uint32(9)).MustSet("Name", "pump")},
		{"union number", choiceSchema.New().MustSet("Number", int32(-5))},
		{"union text", choiceSchema.New().MustSet("Text", "hello")},
		{"union null", choiceSchema.New()},
	}
	for _, c := range codecs {
		for _, tt := range tests {
			t.Run(c.name+"/"+tt.name, func(t *testing.T) {
				got := roundTrip(t, c, tt.rec)
				assert.True(t, tt.rec.Equal(got), "got %s, want %s", got, tt.rec)
				assert.Equal(t, tt.rec.EncodingMask(), got.EncodingMask())
				assert.Equal(t, tt.rec.SwitchField(), got.SwitchField())
			})
		}
	}
}

func TestOptionalFieldsBinaryLayout(t *testing.T) {
	rec := sampleSchema.New().
		MustSet("Id", uint32(7)).
		MustSet("Name", "ab").
		MustSet("Value", 1.5).
		MustSet("Flag", true)
	require.Equal(t, uint32(1), rec.EncodingMask())

	data, err := uacodec.EncodeBinary(rec)
	require.NoError(t, err)
	want := []byte{
		0x01, 0x00, 0x00, 0x00, // EncodingMask
		0x07, 0x00, 0x00, 0x00, // Id
		0x02, 0x00, 0x00, 0x00, 'a', 'b', // Name
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf8, 0x3f, // Value
		0x01, // Flag
	}
	if diff := cmp.Diff(data, want); diff != "" {
		t.Errorf("got(-)/want(+)\n%s", diff)
	}

	got := sampleSchema.New()
	require.NoError(t, uacodec.DecodeBinary(data, got))
	assert.Equal(t, uint32(7), got.Value("Id"))
	assert.Equal(t, "ab", got.Value("Name"))
	assert.Equal(t, 1.5, got.Value("Value"))
	assert.Equal(t, true, got.Value("Flag"))
	assert.Equal(t, uint32(1), got.EncodingMask())
}

func TestOptionalFieldOmission(t *testing.T) {
	withDefault := sampleSchema.New().MustSet("Id", uint32(3)).MustSet("Flag", false)
	unset := sampleSchema.New().MustSet("Id", uint32(3))

	assert.False(t, withDefault.IsSet("Flag"))
	assert.Zero(t, withDefault.EncodingMask())
	assert.True(t, withDefault.Equal(unset))

	a, err := uacodec.EncodeBinary(withDefault)
	require.NoError(t, err)
	b, err := uacodec.EncodeBinary(unset)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("got(-)/want(+)\n%s", diff)
	}

	xmlData, err := uacodec.EncodeXML(unset)
	require.NoError(t, err)
	assert.NotContains(t, string(xmlData), "EncodingMask")
	assert.NotContains(t, string(xmlData), "<Flag>")

	numeric := MustSchema("Limits", StructureWithOptionalFields, []Field{
		{Name: "Low", Order: 1, WireType: uacodec.TypeInt64, ValueRank: uacodec.ValueRankScalar, IsOptional: true},
		{Name: "High", Order: 2, WireType: uacodec.TypeInt64, ValueRank: uacodec.ValueRankScalar, IsOptional: true, Default: int64(100)},
	})
	rec := numeric.New().MustSet("Low", int64(0)).MustSet("High", int64(100))
	assert.Zero(t, rec.EncodingMask())
	v, ok := rec.Get("High")
	assert.False(t, ok)
	assert.Equal(t, int64(100), v)

	rec.MustSet("High", int64(5))
	assert.Equal(t, uint32(2), rec.EncodingMask())
	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			got := roundTrip(t, c, rec)
			assert.Equal(t, uint32(2), got.EncodingMask())
			assert.Equal(t, int64(5), got.Value("High"))
			assert.Equal(t, int64(0), got.Value("Low"))
		})
	}
}

func TestOptionalMaskIgnoresUndeclaredBits(t *testing.T) {
	data := []byte{0xff, 0xff, 0xff, 0xff, 0x01, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff,
		0, 0, 0, 0, 0, 0, 0, 0, 0x01}
	got := sampleSchema.New()
	require.NoError(t, uacodec.DecodeBinary(data, got))
	assert.Equal(t, uint32(1), got.EncodingMask())
	assert.Equal(t, "", got.Value("Name"))
}

func TestUnion(t *testing.T) {
	rec := choiceSchema.New()
	require.NoError(t, rec.Set("Number", int32(4)))
	require.NoError(t, rec.Set("Text", "four"))
	assert.Equal(t, uint32(2), rec.SwitchField())
	assert.False(t, rec.IsSet("Number"))
	assert.True(t, rec.IsSet("Text"))

	require.NoError(t, rec.Set("Text", nil))
	assert.Zero(t, rec.SwitchField())
	assert.False(t, rec.IsSet("Text"))

	err := rec.SetSwitchField(3)
	assert.True(t, uacodec.IsStatusCode(err, uacodec.StatusBadOutOfRange), "got %v", err)
	require.NoError(t, rec.SetSwitchField(1))
	assert.Equal(t, int32(0), rec.Value("Number"))
}

func TestUnionBinary(t *testing.T) {
	rec := choiceSchema.New().MustSet("Text", "hi")
	data, err := uacodec.EncodeBinary(rec)
	require.NoError(t, err)
	want := []byte{0x02, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 'h', 'i'}
	if diff := cmp.Diff(data, want); diff != "" {
		t.Errorf("got(-)/want(+)\n%s", diff)
	}

	null, err := uacodec.EncodeBinary(choiceSchema.New())
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, null)

	err = uacodec.DecodeBinary([]byte{0x03, 0x00, 0x00, 0x00}, choiceSchema.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, uacodec.ErrDecoding), "got %v", err)
}

func TestUnionXML(t *testing.T) {
	data, err := uacodec.EncodeXML(choiceSchema.New().MustSet("Number", int32(12)))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<Number>12</Number>")
	assert.NotContains(t, string(data), "SwitchField")

	data, err = uacodec.EncodeXML(choiceSchema.New())
	require.NoError(t, err)
	assert.Contains(t, string(data), "<Value>null</Value>")

	got := choiceSchema.New().MustSet("Text", "stale")
	require.NoError(t, uacodec.DecodeXML(data, got))
	assert.Zero(t, got.SwitchField())
}

func TestEncodeErrors(t *testing.T) {
	rec := choiceSchema.New()
	rec.switchField = 9
	_, err := uacodec.EncodeBinary(rec)
	assert.True(t, uacodec.IsEncodingError(err), "got %v", err)

	_, err = uacodec.EncodeBinary(nil)
	assert.True(t, uacodec.IsEncodingError(err), "got %v", err)
}

func TestDecodeTruncated(t *testing.T) {
	data, err := uacodec.EncodeBinary(newPoint(1, 2))
	require.NoError(t, err)
	err = uacodec.DecodeBinary(data[:len(data)-3], pointSchema.New())
	require.Error(t, err)
	assert.True(t, uacodec.IsDecodingError(err), "got %v", err)

	var ce *uacodec.CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Y", ce.Field)
}

func TestNewSchemaValueRank(t *testing.T) {
	for _, rank := range []int32{0, -2, -3} {
		_, err := NewSchema("Ranked", Structure, []Field{
			{Name: "A", Order: 1, WireType: uacodec.TypeInt32, ValueRank: rank},
		})
		assert.True(t, uacodec.IsSchemaError(err), "rank %d: got %v", rank, err)
	}

	s, err := NewSchema("Ranked", Structure, []Field{
		{Name: "A", Order: 1, WireType: uacodec.TypeInt32, ValueRank: uacodec.ValueRankScalar},
		{Name: "B", Order: 2, WireType: uacodec.TypeInt32, ValueRank: 3},
	})
	require.NoError(t, err)
	assert.False(t, s.Fields()[0].IsArray())
	assert.Equal(t, int32(3), s.Fields()[1].ValueRank)
}

func TestDecodeMatrixTooLarge(t *testing.T) {
	cube := MustSchema("Cube", Structure, []Field{
		{Name: "Cells", Order: 1, WireType: uacodec.TypeByte, ValueRank: 4},
	})
	// Four dimensions whose product is 2^63.
	data := []byte{
		0x04, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x00,
		0x00, 0x00, 0x01, 0x00,
		0x00, 0x00, 0x01, 0x00,
		0x00, 0x80, 0x00, 0x00,
	}
	var err error
	require.NotPanics(t, func() { err = uacodec.DecodeBinary(data, cube.New()) })
	assert.True(t, uacodec.IsStatusCode(err, uacodec.StatusBadEncodingLimitsExceeded), "got %v", err)

	assert.Equal(t, -1, uacodec.Matrix{Dimensions: []int32{65536, 65536, 65536, 32768}}.Len())
	assert.Equal(t, 6, uacodec.Matrix{Dimensions: []int32{2, 3}}.Len())
}
