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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uacodec"
)

const boilerSchemas = `
namespace: http://example.com/UA/Boiler/Types.xsd
enums:
  - name: Phase
    values: {Idle: 0, Heating: 1, Cooling: 2}
schemas:
  - name: Reading
    typeId: ns=2;i=6001
    binaryEncodingId: ns=2;i=6002
    fields:
      - {name: Sensor, type: String}
      - {name: Celsius, type: Double}
  - name: Boiler
    kind: StructureWithOptionalFields
    typeId: ns=2;i=6010
    binaryEncodingId: ns=2;i=6011
    fields:
      - {name: Id, type: UInt32}
      - {name: Phase, enum: Phase}
      - {name: Readings, structure: Reading, rank: 1}
      - {name: Pressure, type: Float, optional: true, default: 1.5}
      - {name: Note, type: LocalizedText, optional: true}
`

func loadBoiler(t *testing.T) *Registry {
	t.Helper()
	reg, err := LoadSchemas(strings.NewReader(boilerSchemas))
	require.NoError(t, err)
	return reg
}

func TestLoadSchemas(t *testing.T) {
	reg := loadBoiler(t)
	require.Equal(t, 2, reg.Len())

	boiler, ok := reg.Lookup("Boiler")
	require.True(t, ok)
	assert.Equal(t, StructureWithOptionalFields, boiler.Kind)
	assert.Equal(t, "http://example.com/UA/Boiler/Types.xsd", boiler.Namespace)
	assert.Equal(t, uint32(3), boiler.OptionalMask())

	var types []string
	for _, f := range boiler.Fields() {
		types = append(types, f.TypeString())
	}
	if diff := cmp.Diff(types, []string{"UInt32", "Phase", "Reading[]", "Float", "LocalizedText"}); diff != "" {
		t.Errorf("got(-)/want(+)\n%s", diff)
	}

	pressure, _ := boiler.Field("Pressure")
	assert.Equal(t, float32(1.5), pressure.DefaultValue())

	byID, ok := reg.LookupID(uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(2, 6011)))
	require.True(t, ok)
	assert.Same(t, boiler, byID)
}

func TestLoadSchemasErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "schemas:\n  - name: A\n    colour: red\n"},
		{"unknown type", "schemas:\n  - name: A\n    fields:\n      - {name: X, type: Int128}\n"},
		{"unknown structure", "schemas:\n  - name: A\n    fields:\n      - {name: X, structure: B}\n"},
		{"unknown enum", "schemas:\n  - name: A\n    fields:\n      - {name: X, enum: B}\n"},
		{"unknown kind", "schemas:\n  - name: A\n    kind: Record\n"},
		{"bad id", "schemas:\n  - name: A\n    typeId: nope\n"},
		{"bad default", "schemas:\n  - name: A\n    fields:\n      - {name: X, type: Byte, default: 300}\n"},
		{"duplicate", "schemas:\n  - name: A\n  - name: A\n"},
		{"zero rank", "schemas:\n  - name: A\n    fields:\n      - {name: X, type: Int32, rank: 0}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSchemas(strings.NewReader(tt.doc))
			assert.True(t, uacodec.IsSchemaError(err), "got %v", err)
		})
	}
}

func TestLoadSchemaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boiler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(boilerSchemas), 0o600))

	reg, err := LoadSchemaFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	_, err = LoadSchemaFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRecordYAML(t *testing.T) {
	reg := loadBoiler(t)
	boiler, _ := reg.Lookup("Boiler")

	rec := boiler.New()
	require.NoError(t, rec.SetFromYAML([]byte(`
Id: 17
Phase: Heating
Readings:
  - {Sensor: inlet, Celsius: 41.5}
  - {Sensor: outlet, Celsius: 63}
Note: warming up
`)))

	assert.Equal(t, uint32(17), rec.Value("Id"))
	assert.Equal(t, int32(1), rec.Value("Phase"))
	assert.Equal(t, uint32(2), rec.EncodingMask())
	readings, _ := rec.Value("Readings").([]*Record)
	require.Len(t, readings, 2)
	assert.Equal(t, 63.0, readings[1].Value("Celsius"))

	want := map[string]any{
		"Id":    uint32(17),
		"Phase": int32(1),
		"Readings": []any{
			map[string]any{"Sensor": "inlet", "Celsius": 41.5},
			map[string]any{"Sensor": "outlet", "Celsius": 63.0},
		},
		"Note": "warming up",
	}
	if diff := cmp.Diff(RecordToMap(rec), want); diff != "" {
		t.Errorf("got(-)/want(+)\n%s", diff)
	}

	err := rec.SetFromYAML([]byte("Colour: red\n"))
	assert.True(t, errors.Is(err, uacodec.ErrUnknownField), "got %v", err)

	err = rec.SetFromYAML([]byte("Id: [1, 2]\n"))
	assert.True(t, uacodec.IsStatusCode(err, uacodec.StatusBadTypeMismatch), "got %v", err)

	err = rec.SetFromYAML([]byte("Id: {\n"))
	assert.True(t, uacodec.IsStatusCode(err, uacodec.StatusBadSyntaxError), "got %v", err)
}

func TestRecordFromMapMatrix(t *testing.T) {
	s := MustSchema("Image", Structure, []Field{
		{Name: "Pixels", Order: 1, WireType: uacodec.TypeUInt16, ValueRank: 2},
	})
	rec, err := RecordFromMap(s, map[string]any{
		"Pixels": map[string]any{
			"dimensions": []any{2, 3},
			"elements":   []any{1, 2, 3, 4, 5, 6},
		},
	})
	require.NoError(t, err)

	m, ok := rec.Value("Pixels").(uacodec.Matrix)
	require.True(t, ok)
	assert.Equal(t, []int32{2, 3}, m.Dimensions)
	assert.Equal(t, []uint16{1, 2, 3, 4, 5, 6}, m.Elements)
	assert.Equal(t, "{[[1,2,3],[4,5,6]]}", rec.String())
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		typ  uacodec.BuiltInType
		in   string
		want any
	}{
		{uacodec.TypeBoolean, "true", true},
		{uacodec.TypeSByte, "-8", int8(-8)},
		{uacodec.TypeUInt16, "0x10", uint16(16)},
		{uacodec.TypeInt64, "-9000000000", int64(-9000000000)},
		{uacodec.TypeFloat, "0.25", float32(0.25)},
		{uacodec.TypeString, " padded ", "padded"},
		{uacodec.TypeByteString, "3q0=", []byte{0xde, 0xad}},
		{uacodec.TypeNodeID, "ns=3;s=Motor", uacodec.NewStringNodeID(3, "Motor")},
		{uacodec.TypeQualifiedName, "2:Speed", uacodec.NewQualifiedName(2, "Speed")},
		{uacodec.TypeQualifiedName, "Speed", uacodec.NewQualifiedName(0, "Speed")},
		{uacodec.TypeLocalizedText, "hello", uacodec.NewLocalizedText("hello")},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.in, func(t *testing.T) {
			got, err := ParseScalar(tt.typ, tt.in)
			require.NoError(t, err)
			assert.True(t, uacodec.ValueEqual(got, tt.want), "got %#v, want %#v", got, tt.want)
		})
	}

	_, err := ParseScalar(uacodec.TypeByte, "256")
	assert.Error(t, err)
	_, err = ParseScalar(uacodec.TypeDataValue, "x")
	assert.Error(t, err)
}
