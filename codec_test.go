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

package uacodec

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleField struct {
	typ   BuiltInType
	rank  int32
	value any
}

// sample writes a fixed list of typed values.
type sample struct {
	fields []sampleField
	got    []any
}

func (p *sample) TypeID() ExpandedNodeID           { return NewExpandedNodeID(NewNumericNodeID(1, 1)) }
func (p *sample) BinaryEncodingID() ExpandedNodeID { return NewExpandedNodeID(NewNumericNodeID(1, 2)) }
func (p *sample) XMLEncodingID() ExpandedNodeID    { return NewExpandedNodeID(NewNumericNodeID(1, 3)) }
func (p *sample) TypeName() string                 { return "Sample" }

func (p *sample) Encode(enc Encoder) error {
	for i, f := range p.fields {
		name := fmt.Sprintf("F%d", i)
		var err error
		if f.rank >= ValueRankOneDimension {
			err = enc.WriteArray(name, f.value, f.rank, f.typ)
		} else {
			err = EncodeScalar(enc, name, f.typ, f.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *sample) Decode(dec Decoder) error {
	p.got = p.got[:0]
	for i, f := range p.fields {
		name := fmt.Sprintf("F%d", i)
		var (
			v   any
			err error
		)
		if f.rank >= ValueRankOneDimension {
			v, err = dec.ReadArray(name, f.rank, f.typ, nil)
		} else {
			v, err = DecodeScalar(dec, name, f.typ)
		}
		if err != nil {
			return err
		}
		p.got = append(p.got, v)
	}
	return nil
}

func primitives() []sampleField {
	when := time.Date(2024, 5, 17, 8, 30, 15, 123456700, time.UTC)
	return []sampleField{
		{TypeBoolean, -1, true},
		{TypeSByte, -1, int8(-100)},
		{TypeByte, -1, byte(200)},
		{TypeInt16, -1, int16(-30000)},
		{TypeUInt16, -1, uint16(60000)},
		{TypeInt32, -1, int32(-2000000000)},
		{TypeUInt32, -1, uint32(4000000000)},
		{TypeInt64, -1, int64(-9000000000000)},
		{TypeUInt64, -1, uint64(18000000000000000000)},
		{TypeFloat, -1, float32(3.25)},
		{TypeDouble, -1, -1e-9},
		{TypeString, -1, "Grüße"},
		{TypeDateTime, -1, when},
		{TypeGUID, -1, uuid.MustParse("72962b91-fa75-4ae6-8d28-b404dc7daf63")},
		{TypeByteString, -1, []byte{0, 1, 2, 0xff}},
		{TypeNodeID, -1, NewStringNodeID(4, "Boiler#1")},
		{TypeExpandedNodeID, -1, ExpandedNodeID{NodeID: NewNumericNodeID(0, 2253), NamespaceURI: "urn:test"}},
		{TypeStatusCode, -1, StatusBadNodeClassInvalid},
		{TypeQualifiedName, -1, NewQualifiedName(3, "Temperature")},
		{TypeLocalizedText, -1, LocalizedText{Locale: "de", Text: "Temperatur"}},
		{TypeVariant, -1, NewVariant(int32(42))},
		{TypeVariant, -1, NewVariant([]string{"a", "b"})},
		{TypeDataValue, -1, &DataValue{Value: &Variant{Type: TypeDouble, Value: 21.5}, StatusCode: StatusGood, SourceTimestamp: when}},
		{TypeUInt32, 1, []uint32{1, 2, 3}},
		{TypeString, 1, []string{"x", "", "z"}},
		{TypeInt16, 2, Matrix{Dimensions: []int32{2, 3}, Elements: []int16{1, 2, 3, 4, 5, 6}}},
	}
}

func TestPrimitivesRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name   string
		encode func(Encodeable, ...Option) ([]byte, error)
		decode func([]byte, Encodeable, ...Option) error
	}{
		{"binary", EncodeBinary, DecodeBinary},
		{"xml", EncodeXML, DecodeXML},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := &sample{fields: primitives()}
			data, err := tc.encode(in)
			require.NoError(t, err)

			out := &sample{fields: primitives()}
			require.NoError(t, tc.decode(data, out))
			require.Len(t, out.got, len(in.fields))
			for i, f := range in.fields {
				assert.True(t, ValueEqual(f.value, out.got[i]),
					"field %d (%s): got %s, want %s", i, f.typ, FormatValue(out.got[i]), FormatValue(f.value))
			}
		})
	}
}

func TestBinaryLayout(t *testing.T) {
	tests := []struct {
		name  string
		field sampleField
		want  []byte
	}{
		{"two byte node id", sampleField{TypeNodeID, -1, NewNumericNodeID(0, 5)}, []byte{0x00, 0x05}},
		{"four byte node id", sampleField{TypeNodeID, -1, NewNumericNodeID(2, 300)}, []byte{0x01, 0x02, 0x2c, 0x01}},
		{"string node id", sampleField{TypeNodeID, -1, NewStringNodeID(1, "ab")},
			[]byte{0x03, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 'a', 'b'}},
		{"null string", sampleField{TypeString, -1, ""}, []byte{0xff, 0xff, 0xff, 0xff}},
		{"null byte string", sampleField{TypeByteString, -1, []byte(nil)}, []byte{0xff, 0xff, 0xff, 0xff}},
		{"variant int32", sampleField{TypeVariant, -1, NewVariant(int32(-1))}, []byte{0x06, 0xff, 0xff, 0xff, 0xff}},
		{"null variant", sampleField{TypeVariant, -1, Variant{}}, []byte{0x00}},
		{"null array", sampleField{TypeUInt16, 1, []uint16(nil)}, []byte{0xff, 0xff, 0xff, 0xff}},
		{"matrix", sampleField{TypeByte, 2, Matrix{Dimensions: []int32{1, 2}, Elements: []byte{7, 8}}},
			[]byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeBinary(&sample{fields: []sampleField{tt.field}})
			require.NoError(t, err)
			if diff := cmp.Diff(data, tt.want); diff != "" {
				t.Errorf("got(-)/want(+)\n%s", diff)
			}
		})
	}
}

func TestBinaryDecodeErrors(t *testing.T) {
	one := func(f sampleField) *sample { return &sample{fields: []sampleField{f}} }

	err := DecodeBinary([]byte{0x01, 0x00}, one(sampleField{TypeUInt32, -1, nil}))
	assert.True(t, IsDecodingError(err), "got %v", err)

	err = DecodeBinary([]byte{0x01, 0x00, 0x00, 0x00, 0x09}, one(sampleField{TypeUInt32, -1, nil}))
	assert.True(t, IsDecodingError(err), "trailing bytes: got %v", err)

	err = DecodeBinary([]byte{0x10, 0x00, 0x00, 0x00}, one(sampleField{TypeString, -1, nil}),
		WithMaxStringLength(8))
	assert.True(t, IsStatusCode(err, StatusBadEncodingLimitsExceeded), "got %v", err)

	err = DecodeBinary(nil, nil)
	assert.True(t, IsDecodingError(err), "got %v", err)
}

func TestEncodeScalarMismatch(t *testing.T) {
	_, err := EncodeBinary(&sample{fields: []sampleField{{TypeUInt32, -1, "seven"}}})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestXMLDocument(t *testing.T) {
	data, err := EncodeXML(&sample{fields: []sampleField{
		{TypeUInt32, -1, uint32(5)},
		{TypeNodeID, -1, NewNumericNodeID(2, 10)},
		{TypeUInt16, 1, []uint16{1, 2}},
	}})
	require.NoError(t, err)

	doc := string(data)
	assert.Contains(t, doc, `<Sample xmlns="`+NamespaceOPCUA+`">`)
	assert.Contains(t, doc, "<F0>5</F0>")
	assert.Contains(t, doc, "<F1><Identifier>ns=2;i=10</Identifier></F1>")
	assert.Contains(t, doc, "<F2><UInt16>1</UInt16><UInt16>2</UInt16></F2>")

	_, err = NewXMLDecoder([]byte("<Sample><F0>"))
	assert.Error(t, err)
}

func TestXMLMissingElements(t *testing.T) {
	out := &sample{fields: []sampleField{
		{TypeUInt32, -1, nil},
		{TypeString, -1, nil},
		{TypeUInt32, 1, nil},
	}}
	require.NoError(t, DecodeXML([]byte(`<Sample><F1>kept</F1></Sample>`), out))
	assert.Equal(t, uint32(0), out.got[0])
	assert.Equal(t, "kept", out.got[1])
	assert.True(t, isNil(out.got[2]), "got %#v", out.got[2])
}
