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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uacodec"
	"github.com/edgeo-scada/uacodec/complextype"
)

func newPumpSpeed(t *testing.T) *GenericNode {
	t.Helper()
	n := New(uacodec.NewStringNodeID(2, "Pump1.Speed"), uacodec.NodeClassVariable,
		uacodec.NewQualifiedName(2, "Speed"))
	require.NoError(t, n.SetAttribute(uacodec.AttributeDisplayName, uacodec.NewLocalizedText("Speed")))
	require.NoError(t, n.SetAttribute(uacodec.AttributeDataType, uacodec.NewNumericNodeID(0, 11)))
	require.NoError(t, n.SetAttribute(uacodec.AttributeValue, uacodec.NewVariant(1450.5)))
	require.NoError(t, n.SetAttribute(uacodec.AttributeAccessLevel, byte(3)))
	require.NoError(t, n.SetAttribute(uacodec.AttributeHistorizing, true))
	require.NoError(t, n.SetAttribute(uacodec.AttributeArrayDimensions, []uint32{4}))
	require.NoError(t, n.SetAttribute(uacodec.AttributeRolePermissions, []*complextype.Record{
		NewRolePermission(uacodec.NewNumericNodeID(0, 15656), 0x1f),
	}))
	n.SymbolicName = "Speed"
	n.ModellingRule = uacodec.NewNumericNodeID(0, 78)
	return n
}

func TestGenericNodeAccessors(t *testing.T) {
	n := newPumpSpeed(t)
	assert.Equal(t, uacodec.NodeClassVariable, n.NodeClass())
	assert.Equal(t, "ns=2;s=Pump1.Speed (2:Speed)", n.String())
	assert.Equal(t, byte(3), n.AccessLevel())
	assert.True(t, n.Historizing())
	assert.Equal(t, []uint32{4}, n.ArrayDimensions())
	assert.Equal(t, 1450.5, n.Value().Value)
	assert.Equal(t, int32(-1), n.ValueRank(), "unset attributes report the class default")
	assert.Equal(t, float64(-1), n.MinimumSamplingInterval())
	require.Len(t, n.RolePermissions(), 1)
	assert.Equal(t, uint32(0x1f), n.RolePermissions()[0].Value("Permissions"))

	v, err := n.Attribute(uacodec.AttributeUserAccessLevel)
	require.NoError(t, err)
	assert.Equal(t, byte(1), v)

	dv := n.DataValue(uacodec.AttributeNodeClass)
	require.NotNil(t, dv)
	assert.Equal(t, uacodec.TypeInt32, dv.Value.Type)
	assert.Equal(t, int32(2), dv.Value.Value)

	assert.Equal(t, []uacodec.AttributeID{1, 2, 3, 4, 13, 14, 16, 17, 20, 24}, n.AttributeIDs())
}

func TestGenericNodeSetAttribute(t *testing.T) {
	n := newPumpSpeed(t)

	err := n.SetAttribute(uacodec.AttributeEventNotifier, byte(1))
	assert.True(t, uacodec.IsNodeAttributesInvalid(err), "got %v", err)

	_, err = n.Attribute(uacodec.AttributeIsAbstract)
	assert.True(t, uacodec.IsNodeAttributesInvalid(err), "got %v", err)

	err = n.SetAttribute(uacodec.AttributeID(0), 1)
	assert.True(t, uacodec.IsAttributeInvalid(err), "got %v", err)
	err = n.SetAttribute(uacodec.MaxAttributeID+1, 1)
	assert.True(t, uacodec.IsAttributeInvalid(err), "got %v", err)

	require.NoError(t, n.SetAttribute(uacodec.AttributeHistorizing, nil))
	_, ok := n.Lookup(uacodec.AttributeHistorizing)
	assert.False(t, ok)
	assert.False(t, n.Historizing())

	n.ClearAttribute(uacodec.AttributeAccessLevel)
	assert.Equal(t, byte(1), n.AccessLevel())

	// Without a class any attribute may be staged.
	blank := NewGenericNode()
	require.NoError(t, blank.SetAttribute(uacodec.AttributeEventNotifier, byte(1)))
	_, err = blank.Attribute(uacodec.AttributeEventNotifier)
	assert.True(t, uacodec.IsNodeClassInvalid(err), "got %v", err)
}

func TestGenericNodeRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name   string
		encode func(uacodec.Encodeable, ...uacodec.Option) ([]byte, error)
		decode func([]byte, uacodec.Encodeable, ...uacodec.Option) error
	}{
		{"binary", uacodec.EncodeBinary, uacodec.DecodeBinary},
		{"xml", uacodec.EncodeXML, uacodec.DecodeXML},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := newPumpSpeed(t)
			data, err := tc.encode(in)
			require.NoError(t, err)

			out := NewGenericNode()
			require.NoError(t, tc.decode(data, out))
			assert.True(t, out.Equal(in), "got %s", out)
			assert.Equal(t, "Speed", out.SymbolicName)
			assert.True(t, out.ModellingRule.Equal(uacodec.NewNumericNodeID(0, 78)))
			assert.Equal(t, 1450.5, out.Value().Value)

			_, ok := out.Lookup(uacodec.AttributeWriteMask)
			assert.False(t, ok, "a default write mask decodes as unset")
		})
	}
}

func TestGenericNodeClasses(t *testing.T) {
	for _, nc := range uacodec.NodeClasses {
		t.Run(nc.String(), func(t *testing.T) {
			in := New(uacodec.NewNumericNodeID(3, uint32(nc)), nc, uacodec.NewQualifiedName(3, nc.String()))
			data, err := uacodec.EncodeBinary(in)
			require.NoError(t, err)

			out := NewGenericNode()
			require.NoError(t, uacodec.DecodeBinary(data, out))
			assert.True(t, out.Equal(in))
			assert.Equal(t, nc, out.NodeClass())
		})
	}
}

func TestGenericNodeKeepsNonDefaultZeros(t *testing.T) {
	concrete := New(uacodec.NewNumericNodeID(2, 2001), uacodec.NodeClassObjectType, uacodec.NewQualifiedName(2, "PumpType"))
	require.NoError(t, concrete.SetAttribute(uacodec.AttributeIsAbstract, false))

	sealed := New(uacodec.NewNumericNodeID(2, 2002), uacodec.NodeClassVariable, uacodec.NewQualifiedName(2, "Secret"))
	require.NoError(t, sealed.SetAttribute(uacodec.AttributeAccessLevel, byte(0)))
	require.NoError(t, sealed.SetAttribute(uacodec.AttributeMinimumSamplingInterval, float64(0)))

	for _, tc := range []struct {
		name   string
		encode func(uacodec.Encodeable, ...uacodec.Option) ([]byte, error)
		decode func([]byte, uacodec.Encodeable, ...uacodec.Option) error
	}{
		{"binary", uacodec.EncodeBinary, uacodec.DecodeBinary},
		{"xml", uacodec.EncodeXML, uacodec.DecodeXML},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.encode(concrete)
			require.NoError(t, err)
			out := NewGenericNode()
			require.NoError(t, tc.decode(data, out))
			assert.False(t, out.IsAbstract())
			assert.True(t, out.Equal(concrete), "got %s", out)

			data, err = tc.encode(sealed)
			require.NoError(t, err)
			out = NewGenericNode()
			require.NoError(t, tc.decode(data, out))
			assert.Equal(t, byte(0), out.AccessLevel())
			assert.Equal(t, float64(0), out.MinimumSamplingInterval())
			assert.True(t, out.Equal(sealed), "got %s", out)

			_, ok := out.Lookup(uacodec.AttributeHistorizing)
			assert.False(t, ok, "a default Historizing decodes as unset")
		})
	}

	abstract := New(uacodec.NewNumericNodeID(2, 2003), uacodec.NodeClassObjectType, uacodec.NewQualifiedName(2, "BaseType"))
	assert.False(t, abstract.Equal(concrete))
}

func TestGenericNodeWriteMaskEquality(t *testing.T) {
	a := New(uacodec.NewNumericNodeID(2, 1), uacodec.NodeClassObject, uacodec.NewQualifiedName(2, "A"))
	b := a.Clone()
	require.NoError(t, b.SetAttribute(uacodec.AttributeWriteMask, uint32(0)))
	assert.True(t, a.Equal(b), "a zero write mask equals an unset one")

	require.NoError(t, b.SetAttribute(uacodec.AttributeWriteMask, uint32(4)))
	assert.False(t, a.Equal(b))

	c := a.Clone()
	c.SymbolicName = "A"
	assert.False(t, a.Equal(c))
	assert.False(t, a.IsEqual(RolePermissionType.New()))
	assert.True(t, (*GenericNode)(nil).Equal(nil))
}

func TestGenericNodeEncodeErrors(t *testing.T) {
	_, err := uacodec.EncodeBinary(NewGenericNode())
	assert.True(t, uacodec.IsNodeClassInvalid(err), "got %v", err)

	// An unspecified class on the wire.
	err = uacodec.DecodeBinary([]byte{0, 0, 0, 0}, NewGenericNode())
	assert.True(t, uacodec.IsNodeClassInvalid(err), "got %v", err)
	assert.ErrorIs(t, err, uacodec.ErrNodeClassInvalid)

	n := newPumpSpeed(t)
	data, err := uacodec.EncodeBinary(n)
	require.NoError(t, err)
	err = uacodec.DecodeBinary(data[:len(data)-3], NewGenericNode())
	assert.True(t, uacodec.IsDecodingError(err), "got %v", err)
}
