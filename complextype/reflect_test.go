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
	"reflect"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uacodec"
)

type pumpMode int32

const (
	pumpOff pumpMode = iota
	pumpAuto
	pumpManual
)

func (m pumpMode) String() string {
	switch m {
	case pumpOff:
		return "Off"
	case pumpAuto:
		return "Auto"
	case pumpManual:
		return "Manual"
	}
	return "Unknown"
}

type setpoint struct {
	Tag   string  `opcua:"order=1" xml:"Tag"`
	Value float64 `opcua:"order=2" xml:"Value"`
}

type pumpStatus struct {
	Speed     *float64   `opcua:"order=3,optional" xml:"Speed"`
	ID        uint32     `opcua:"order=1" xml:"Id"`
	Mode      pumpMode   `opcua:"order=2" xml:"Mode"`
	Running   *bool      `opcua:"order=4,optional" xml:"Running"`
	History   []int16    `opcua:"order=5" xml:"History"`
	Setpoints []setpoint `opcua:"order=6" xml:"Setpoints"`
	Limit     int32      `opcua:"order=7,optional,default=50" xml:"Limit"`

	Comment  string `xml:"Comment"`
	internal int    `opcua:"order=9"`
	Scratch  string `opcua:"order=10"`
}

func (pumpStatus) SchemaInfo() SchemaInfo {
	return SchemaInfo{
		Name:             "PumpStatus",
		Kind:             StructureWithOptionalFields,
		TypeID:           nsID(5000),
		BinaryEncodingID: nsID(5001),
	}
}

type reading struct {
	Count *uint32 `opcua:"order=1" xml:"Count"`
	Text  *string `opcua:"order=2" xml:"Text"`
}

func (reading) SchemaInfo() SchemaInfo {
	return SchemaInfo{Name: "Reading", Kind: Union}
}

type loop struct {
	Next []loop `opcua:"order=1" xml:"Next"`
}

func TestSchemaOf(t *testing.T) {
	s, err := SchemaOf(reflect.TypeOf(pumpStatus{}))
	require.NoError(t, err)

	assert.Equal(t, "PumpStatus", s.Name)
	assert.Equal(t, StructureWithOptionalFields, s.Kind)
	assert.True(t, s.TypeID().Equal(nsID(5000)))

	var names []string
	for _, f := range s.Fields() {
		names = append(names, f.Name+":"+f.TypeString())
	}
	want := []string{
		"Id:UInt32", "Mode:pumpMode", "Speed:Double", "Running:Boolean",
		"History:Int16[]", "Setpoints:setpoint[]", "Limit:Int32",
	}
	if diff := cmp.Diff(names, want); diff != "" {
		t.Errorf("got(-)/want(+)\n%s", diff)
	}

	speed, _ := s.Field("Speed")
	running, _ := s.Field("Running")
	limit, _ := s.Field("Limit")
	assert.Equal(t, uint32(1), speed.OptionalMaskBit())
	assert.Equal(t, uint32(2), running.OptionalMaskBit())
	assert.Equal(t, uint32(4), limit.OptionalMaskBit())
	assert.Equal(t, int32(50), limit.DefaultValue())

	mode, _ := s.Field("Mode")
	assert.Equal(t, uacodec.TypeEnumeration, mode.ElementType())
	assert.Equal(t, "Manual", mode.Enum.Symbol(2))
}

func TestSchemaOfCached(t *testing.T) {
	type cachedProbe struct {
		A uint16 `opcua:"order=1" xml:"A"`
	}
	typ := reflect.TypeOf(cachedProbe{})
	before := derivations.Load()

	var wg sync.WaitGroup
	schemas := make([]*Schema, 16)
	for i := range schemas {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			schemas[i], _ = SchemaOf(typ)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), derivations.Load()-before)
	for _, s := range schemas {
		assert.Same(t, schemas[0], s)
	}
	again, err := SchemaOf(reflect.PointerTo(typ))
	require.NoError(t, err)
	assert.Same(t, schemas[0], again)
}

func TestSchemaOfErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
	}{
		{"not a struct", reflect.TypeOf(42)},
		{"recursive", reflect.TypeOf(loop{})},
		{"unknown tag key", reflect.TypeOf(struct {
			A uint32 `opcua:"order=1,bogus" xml:"A"`
		}{})},
		{"bad default", reflect.TypeOf(struct {
			A uint32 `opcua:"default=x" xml:"A"`
		}{})},
		{"duplicate order", reflect.TypeOf(struct {
			A uint32 `opcua:"order=1" xml:"A"`
			B uint32 `opcua:"order=1" xml:"B"`
		}{})},
		{"zero rank", reflect.TypeOf(struct {
			A uint32 `opcua:"rank=0" xml:"A"`
		}{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SchemaOf(tt.typ)
			assert.True(t, uacodec.IsSchemaError(err), "got %v", err)
		})
	}
}

func TestBindUnbind(t *testing.T) {
	speed := 12.5
	in := pumpStatus{
		ID:        4,
		Mode:      pumpAuto,
		Speed:     &speed,
		History:   []int16{1, 2, 3},
		Setpoints: []setpoint{{Tag: "low", Value: 10}, {Tag: "high", Value: 90}},
		Limit:     50,
		Comment:   "not on the wire",
	}
	rec, err := Bind(&in)
	require.NoError(t, err)

	assert.True(t, rec.IsSet("Speed"))
	assert.False(t, rec.IsSet("Running"))
	assert.False(t, rec.IsSet("Limit"))
	assert.Equal(t, uint32(1), rec.EncodingMask())
	assert.Equal(t, int32(pumpAuto), rec.Value("Mode"))

	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			got := roundTrip(t, c, rec)

			var out pumpStatus
			require.NoError(t, Unbind(got, &out))
			want := in
			want.Comment = ""
			if diff := cmp.Diff(out, want, cmp.AllowUnexported(pumpStatus{})); diff != "" {
				t.Errorf("got(-)/want(+)\n%s", diff)
			}
		})
	}
}

func TestBindUnion(t *testing.T) {
	text := "ready"
	rec, err := Bind(&reading{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), rec.SwitchField())

	var out reading
	require.NoError(t, Unbind(rec, &out))
	assert.Nil(t, out.Count)
	require.NotNil(t, out.Text)
	assert.Equal(t, "ready", *out.Text)

	err = Unbind(rec, &pumpStatus{})
	assert.True(t, uacodec.IsStatusCode(err, uacodec.StatusBadTypeMismatch), "got %v", err)
}
