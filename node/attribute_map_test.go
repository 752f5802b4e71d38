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

package node

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uacodec"
	"github.com/edgeo-scada/uacodec/complextype"
)

// attrEnvelope carries a single attribute through the codecs.
type attrEnvelope struct {
	nc    uacodec.NodeClass
	id    uacodec.AttributeID
	value any
}

func (e *attrEnvelope) TypeID() uacodec.ExpandedNodeID {
	return uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(1, 1))
}

func (e *attrEnvelope) BinaryEncodingID() uacodec.ExpandedNodeID {
	return uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(1, 2))
}

func (e *attrEnvelope) XMLEncodingID() uacodec.ExpandedNodeID {
	return uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(1, 3))
}

func (e *attrEnvelope) TypeName() string { return "Attr" }

func (e *attrEnvelope) Encode(enc uacodec.Encoder) error {
	return Attributes().Encode(enc, e.id, e.value)
}

func (e *attrEnvelope) Decode(dec uacodec.Decoder) error {
	nc := e.nc
	if nc == uacodec.NodeClassUnspecified {
		nc = uacodec.NodeClassVariable
	}
	v, err := Attributes().Decode(dec, nc, e.id)
	e.value = v
	return err
}

func TestVariableAttributes(t *testing.T) {
	got := Attributes().ValidAttributes(uacodec.NodeClassVariable)
	want := []uacodec.AttributeID{
		uacodec.AttributeNodeID,
		uacodec.AttributeNodeClass,
		uacodec.AttributeBrowseName,
		uacodec.AttributeDisplayName,
		uacodec.AttributeDescription,
		uacodec.AttributeWriteMask,
		uacodec.AttributeUserWriteMask,
		uacodec.AttributeValue,
		uacodec.AttributeDataType,
		uacodec.AttributeValueRank,
		uacodec.AttributeArrayDimensions,
		uacodec.AttributeAccessLevel,
		uacodec.AttributeUserAccessLevel,
		uacodec.AttributeMinimumSamplingInterval,
		uacodec.AttributeHistorizing,
		uacodec.AttributeRolePermissions,
		uacodec.AttributeUserRolePermissions,
		uacodec.AttributeAccessRestrictions,
		uacodec.AttributeAccessLevelEx,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("got(-)/want(+)\n%s", diff)
	}
	assert.Same(t, Attributes(), Attributes())
}

func TestAttributeDefaults(t *testing.T) {
	m := Attributes()
	tests := []struct {
		nc       uacodec.NodeClass
		id       uacodec.AttributeID
		value    any
		optional bool
	}{
		{uacodec.NodeClassVariable, uacodec.AttributeAccessLevel, byte(1), false},
		{uacodec.NodeClassVariable, uacodec.AttributeValueRank, int32(-1), false},
		{uacodec.NodeClassVariable, uacodec.AttributeMinimumSamplingInterval, float64(-1), true},
		{uacodec.NodeClassVariableType, uacodec.AttributeValue, uacodec.Variant{}, true},
		{uacodec.NodeClassObjectType, uacodec.AttributeIsAbstract, true, false},
		{uacodec.NodeClassMethod, uacodec.AttributeUserExecutable, false, false},
		{uacodec.NodeClassView, uacodec.AttributeContainsNoLoops, true, false},
		{uacodec.NodeClassObject, uacodec.AttributeNodeClass, uacodec.NodeClassObject, false},
		{uacodec.NodeClassDataType, uacodec.AttributeWriteMask, uint32(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.nc.String()+"/"+tt.id.String(), func(t *testing.T) {
			v, optional, ok := m.Default(tt.nc, tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.value, v)
			assert.Equal(t, tt.optional, optional)
		})
	}

	_, _, ok := m.Default(uacodec.NodeClassObject, uacodec.AttributeValue)
	assert.False(t, ok)
	assert.Empty(t, m.ValidAttributes(uacodec.NodeClassUnspecified))
	assert.Empty(t, m.ValidAttributes(uacodec.NodeClass(3)))
}

func TestValidate(t *testing.T) {
	m := Attributes()
	assert.NoError(t, m.Validate(uacodec.NodeClassReferenceType, uacodec.AttributeInverseName))
	assert.NoError(t, m.Validate(uacodec.NodeClassView, uacodec.AttributeEventNotifier))

	err := m.Validate(uacodec.NodeClassObject, uacodec.AttributeHistorizing)
	assert.True(t, uacodec.IsNodeAttributesInvalid(err), "got %v", err)
	assert.ErrorIs(t, err, uacodec.ErrNodeAttributesInvalid)

	err = m.Validate(uacodec.NodeClassUnspecified, uacodec.AttributeNodeID)
	assert.True(t, uacodec.IsNodeClassInvalid(err), "got %v", err)

	err = m.Validate(uacodec.NodeClassVariable, uacodec.AttributeID(40))
	assert.True(t, uacodec.IsNodeAttributesInvalid(err), "got %v", err)
}

func TestAttributeDecodeOmitsDefaults(t *testing.T) {
	tests := []struct {
		nc  uacodec.NodeClass
		id  uacodec.AttributeID
		def any
		set any
	}{
		{uacodec.NodeClassVariable, uacodec.AttributeWriteMask, uint32(0), uint32(0x40)},
		{uacodec.NodeClassVariable, uacodec.AttributeValueRank, int32(-1), int32(0)},
		{uacodec.NodeClassVariable, uacodec.AttributeHistorizing, false, true},
		{uacodec.NodeClassVariable, uacodec.AttributeAccessLevel, byte(1), byte(0)},
		{uacodec.NodeClassVariable, uacodec.AttributeAccessRestrictions, uint16(0), uint16(2)},
		{uacodec.NodeClassVariable, uacodec.AttributeMinimumSamplingInterval, float64(-1), float64(0)},
		{uacodec.NodeClassVariable, uacodec.AttributeNodeID, uacodec.NodeID{}, uacodec.NewNumericNodeID(2, 9)},
		{uacodec.NodeClassVariable, uacodec.AttributeBrowseName, uacodec.QualifiedName{}, uacodec.NewQualifiedName(2, "Pump")},
		{uacodec.NodeClassVariable, uacodec.AttributeArrayDimensions, []uint32{}, []uint32{3}},
		{uacodec.NodeClassVariable, uacodec.AttributeValue, uacodec.Variant{}, uacodec.NewVariant(int32(7))},
		{uacodec.NodeClassObjectType, uacodec.AttributeIsAbstract, true, false},
		{uacodec.NodeClassReferenceType, uacodec.AttributeSymmetric, true, false},
		{uacodec.NodeClassView, uacodec.AttributeContainsNoLoops, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.nc.String()+"/"+tt.id.String(), func(t *testing.T) {
			// The class default on the wire.
			data, err := uacodec.EncodeBinary(&attrEnvelope{nc: tt.nc, id: tt.id, value: tt.def})
			require.NoError(t, err)
			fromWire := &attrEnvelope{nc: tt.nc, id: tt.id}
			require.NoError(t, uacodec.DecodeBinary(data, fromWire))
			assert.Nil(t, fromWire.value)

			// The element left out of the document.
			absent := &attrEnvelope{nc: tt.nc, id: tt.id, value: "stale"}
			require.NoError(t, uacodec.DecodeXML([]byte("<Attr></Attr>"), absent))
			assert.Nil(t, absent.value)

			for _, codec := range []struct {
				encode func(uacodec.Encodeable, ...uacodec.Option) ([]byte, error)
				decode func([]byte, uacodec.Encodeable, ...uacodec.Option) error
			}{
				{uacodec.EncodeBinary, uacodec.DecodeBinary},
				{uacodec.EncodeXML, uacodec.DecodeXML},
			} {
				data, err := codec.encode(&attrEnvelope{nc: tt.nc, id: tt.id, value: tt.set})
				require.NoError(t, err)
				out := &attrEnvelope{nc: tt.nc, id: tt.id}
				require.NoError(t, codec.decode(data, out))
				assert.True(t, uacodec.ValueEqual(tt.set, out.value), "got %#v", out.value)
			}
		})
	}
}

func TestAttributeNilEncodesDefault(t *testing.T) {
	data, err := uacodec.EncodeBinary(&attrEnvelope{id: uacodec.AttributeUserWriteMask})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, data)

	_, err = uacodec.EncodeBinary(&attrEnvelope{id: uacodec.AttributeID(99), value: 1})
	assert.True(t, uacodec.IsAttributeInvalid(err), "got %v", err)
}

func TestRolePermissionsAttribute(t *testing.T) {
	perms := []*complextype.Record{
		NewRolePermission(uacodec.NewNumericNodeID(0, 15656), 0x1f),
		NewRolePermission(uacodec.NewNumericNodeID(0, 15680), 0x01),
	}
	in := &attrEnvelope{id: uacodec.AttributeRolePermissions, value: perms}
	data, err := uacodec.EncodeBinary(in)
	require.NoError(t, err)

	out := &attrEnvelope{id: uacodec.AttributeRolePermissions}
	require.NoError(t, uacodec.DecodeBinary(data, out))
	got, ok := out.value.([]*complextype.Record)
	require.True(t, ok, "decoded %T", out.value)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(0x1f), got[0].Value("Permissions"))
}
