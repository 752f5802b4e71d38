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

func TestRecordString(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
		want string
	}{
		{"structure", newPoint(1, 2.5), "{1|2.5}"},
		{"optional absent", sampleSchema.New().MustSet("Id", uint32(3)).MustSet("Name", "x"), "{3|x|0}"},
		{"optional present", sampleSchema.New().MustSet("Flag", true), "{0||0|true}"},
		{"union", choiceSchema.New().MustSet("Text", "on"), "{on}"},
		{"null union", choiceSchema.New(), "{}"},
		{"empty schema", MustSchema("Empty", Structure, nil).New(), "(null)"},
		{"empty schema with id", MustSchema("Tagged", Structure, nil, WithTypeID(nsID(77))).New(), "{ns=2;i=77}"},
		{"nested", richSchema.New().
			MustSet("Origin", newPoint(1, 1)).
			MustSet("Path", []*Record{newPoint(2, 3)}).
			MustSet("Raw", []byte{1, 2, 3}).
			MustSet("Label", uacodec.NewLocalizedText("hi")),
			"{{1|1}|[{2|3}]|0|(null)|(null)|Byte[3]|i=0|hi}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.String())
		})
	}
}

func TestRecordEqual(t *testing.T) {
	a := richSchema.New().MustSet("Raw", []byte{1, 2}).MustSet("Samples", []int16{4})
	b := richSchema.New().MustSet("Raw", []byte{1, 2}).MustSet("Samples", []int16{4})
	assert.True(t, a.Equal(b))

	b.MustSet("Samples", []int16{5})
	assert.False(t, a.Equal(b))

	assert.True(t, pointSchema.New().Equal(newPoint(0, 0)), "absent fields compare as defaults")
	assert.False(t, newPoint(1, 0).Equal(newPoint(0, 1)))
	assert.False(t, newPoint(0, 0).IsEqual(choiceSchema.New()))

	c := choiceSchema.New().MustSet("Number", int32(0))
	assert.False(t, c.Equal(choiceSchema.New()), "an active arm holding zero is not a null union")

	clone := a.Clone()
	require.True(t, clone.Equal(a))
	clone.MustSet("Tint", int32(1))
	assert.False(t, clone.Equal(a))

	// Same name and identity, different fields.
	impostor := MustSchema("Point", Structure, []Field{
		{Name: "X", Order: 1, WireType: uacodec.TypeString, ValueRank: uacodec.ValueRankScalar},
		{Name: "Y", Order: 2, WireType: uacodec.TypeString, ValueRank: uacodec.ValueRankScalar},
	}, WithTypeID(nsID(1000)))
	assert.False(t, impostor.New().Equal(pointSchema.New()))
	assert.False(t, newPoint(0, 0).Equal(impostor.New().MustSet("X", "0")))

	reloaded := MustSchema("Point", Structure, []Field{
		{Name: "X", Order: 1, WireType: uacodec.TypeDouble, ValueRank: uacodec.ValueRankScalar},
		{Name: "Y", Order: 2, WireType: uacodec.TypeDouble, ValueRank: uacodec.ValueRankScalar},
	}, WithTypeID(nsID(1000)))
	assert.True(t, reloaded.New().MustSet("X", 1.5).Equal(newPoint(1.5, 0)))
}

func TestRecordSet(t *testing.T) {
	rec := richSchema.New()

	err := rec.Set("Missing", 1)
	assert.ErrorIs(t, err, uacodec.ErrUnknownField)

	err = rec.Set("Samples", []int32{1})
	assert.ErrorIs(t, err, uacodec.ErrTypeMismatch)

	err = rec.Set("Origin", sampleSchema.New())
	assert.True(t, uacodec.IsStatusCode(err, uacodec.StatusBadTypeMismatch), "got %v", err)

	require.NoError(t, rec.Set("Tint", 2))
	assert.Equal(t, int32(2), rec.Value("Tint"))

	v, ok := rec.Get("Origin")
	assert.False(t, ok)
	assert.True(t, newPoint(0, 0).Equal(v.(*Record)))
}
