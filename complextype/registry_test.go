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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uacodec"
)

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(pointSchema, sampleSchema))
	require.NoError(t, reg.Register(pointSchema))
	assert.Equal(t, 2, reg.Len())

	clash := MustSchema("Other", Structure, nil, WithTypeID(nsID(1000)))
	err := reg.Register(choiceSchema, clash)
	assert.True(t, uacodec.IsSchemaError(err), "got %v", err)
	_, ok := reg.Lookup("Choice")
	assert.False(t, ok, "a failed Register must not add any schema")

	renamed := MustSchema("Point", Structure, nil)
	assert.Error(t, reg.Register(renamed))

	var names []string
	for _, s := range reg.Schemas() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Point", "Sample"}, names)

	v, ok := reg.NewEncodeable(nsID(1001))
	require.True(t, ok)
	assert.Equal(t, "Point", v.(*Record).Schema().Name)
	_, ok = reg.NewEncodeable(nsID(9999))
	assert.False(t, ok)
}

func TestRegistryEncodeDecode(t *testing.T) {
	metrics := uacodec.NewMetrics()
	reg := NewRegistry(WithMetrics(metrics))
	require.NoError(t, reg.Register(pointSchema))

	for _, enc := range []uacodec.EncodingType{uacodec.EncodingBinary, uacodec.EncodingXML} {
		t.Run(enc.String(), func(t *testing.T) {
			data, err := reg.Encode(newPoint(4, 5), enc)
			require.NoError(t, err)
			got, err := reg.Decode("Point", data, enc)
			require.NoError(t, err)
			assert.True(t, got.Equal(newPoint(4, 5)), "got %s", got)
		})
	}

	_, err := reg.Decode("Missing", nil, uacodec.EncodingBinary)
	assert.True(t, uacodec.IsStatusCode(err, uacodec.StatusBadDataTypeIdUnknown), "got %v", err)
	assert.Equal(t, int64(2), metrics.Encoded.Value())
	assert.Equal(t, int64(2), metrics.Decoded.Value())
}

func TestRegistryExtensionObjectBody(t *testing.T) {
	envelope := MustSchema("Envelope", Structure, []Field{
		{Name: "Seq", Order: 1, WireType: uacodec.TypeUInt32, ValueRank: uacodec.ValueRankScalar},
		{Name: "Body", Order: 2, WireType: uacodec.TypeExtensionObject, ValueRank: uacodec.ValueRankScalar},
	})
	reg := NewRegistry()
	require.NoError(t, reg.Register(pointSchema, envelope))

	rec := envelope.New().
		MustSet("Seq", uint32(1)).
		MustSet("Body", uacodec.NewExtensionObject(newPoint(7, 8)))
	data, err := reg.Encode(rec, uacodec.EncodingBinary)
	require.NoError(t, err)

	got, err := reg.Decode("Envelope", data, uacodec.EncodingBinary)
	require.NoError(t, err)
	eo, ok := got.Value("Body").(*uacodec.ExtensionObject)
	require.True(t, ok)
	body, ok := eo.Body.(*Record)
	require.True(t, ok, "body decoded as %T", eo.Body)
	assert.True(t, body.Equal(newPoint(7, 8)))
	assert.True(t, got.Equal(rec))

	raw := envelope.New()
	require.NoError(t, uacodec.DecodeBinary(data, raw))
	eo, _ = raw.Value("Body").(*uacodec.ExtensionObject)
	require.NotNil(t, eo)
	assert.IsType(t, []byte(nil), eo.Body)
}
