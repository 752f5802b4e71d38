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

// Package node implements a generic OPC UA node: a sorted set of attribute
// values whose allowed members, defaults and wire types are fixed per node
// class by the AttributeMap.
package node

import (
	"sync"

	"github.com/edgeo-scada/uacodec"
	"github.com/edgeo-scada/uacodec/complextype"
)

// maxAttributes bounds the attribute ids held by the table.
const maxAttributes = 32

type attributeEntry struct {
	value    any
	optional bool
}

// AttributeMap lists the attributes each node class carries, with the value
// an unset attribute takes. It is immutable once built.
type AttributeMap struct {
	table [8][maxAttributes]*attributeEntry
}

var (
	attributeMap     *AttributeMap
	attributeMapOnce sync.Once
)

// Attributes returns the process-wide attribute table.
func Attributes() *AttributeMap {
	attributeMapOnce.Do(func() {
		attributeMap = newAttributeMap()
	})
	return attributeMap
}

// classIndex maps a node class bit to its table row.
func classIndex(nc uacodec.NodeClass) (int, bool) {
	switch nc {
	case uacodec.NodeClassObject:
		return 0, true
	case uacodec.NodeClassVariable:
		return 1, true
	case uacodec.NodeClassMethod:
		return 2, true
	case uacodec.NodeClassObjectType:
		return 3, true
	case uacodec.NodeClassVariableType:
		return 4, true
	case uacodec.NodeClassReferenceType:
		return 5, true
	case uacodec.NodeClassDataType:
		return 6, true
	case uacodec.NodeClassView:
		return 7, true
	}
	return 0, false
}

func (m *AttributeMap) entry(nc uacodec.NodeClass, id uacodec.AttributeID) *attributeEntry {
	row, ok := classIndex(nc)
	if !ok || id >= maxAttributes {
		return nil
	}
	return m.table[row][id]
}

// ValidAttributes returns the attributes of a node class in ascending id
// order. An unknown class has none.
func (m *AttributeMap) ValidAttributes(nc uacodec.NodeClass) []uacodec.AttributeID {
	row, ok := classIndex(nc)
	if !ok {
		return nil
	}
	var ids []uacodec.AttributeID
	for id, e := range m.table[row] {
		if e != nil {
			ids = append(ids, uacodec.AttributeID(id))
		}
	}
	return ids
}

// Default returns the value of an unset attribute and whether the attribute
// is optional. ok is false when the class does not carry the attribute.
func (m *AttributeMap) Default(nc uacodec.NodeClass, id uacodec.AttributeID) (value any, optional, ok bool) {
	e := m.entry(nc, id)
	if e == nil {
		return nil, false, false
	}
	return e.value, e.optional, true
}

// Validate fails when the class does not carry the attribute.
func (m *AttributeMap) Validate(nc uacodec.NodeClass, id uacodec.AttributeID) error {
	if _, ok := classIndex(nc); !ok {
		return &uacodec.CodecError{
			StatusCode: uacodec.StatusBadNodeClassInvalid,
			Field:      id.String(),
			Message:    "node class " + nc.String(),
			Err:        uacodec.ErrNodeClassInvalid,
		}
	}
	if m.entry(nc, id) == nil {
		return &uacodec.CodecError{
			StatusCode: uacodec.StatusBadNodeAttributesInvalid,
			Field:      id.String(),
			Message:    "not an attribute of " + nc.String(),
			Err:        uacodec.ErrNodeAttributesInvalid,
		}
	}
	return nil
}

func newAttributeMap() *AttributeMap {
	m := &AttributeMap{}
	set := func(nc uacodec.NodeClass, id uacodec.AttributeID, e *attributeEntry) {
		row, _ := classIndex(nc)
		m.table[row][id] = e
	}
	mandatory := func(v any) *attributeEntry { return &attributeEntry{value: v} }
	optional := func(v any) *attributeEntry { return &attributeEntry{value: v, optional: true} }

	var (
		nullQName  = uacodec.QualifiedName{}
		nullText   = uacodec.LocalizedText{}
		nullNodeID = uacodec.NodeID{}
		noDims     = []uint32{}
		noRoles    = []*complextype.Record{}
	)

	// Every class carries the base node attributes.
	for _, nc := range uacodec.NodeClasses {
		set(nc, uacodec.AttributeNodeID, mandatory(nullNodeID))
		set(nc, uacodec.AttributeNodeClass, mandatory(nc))
		set(nc, uacodec.AttributeBrowseName, mandatory(nullQName))
		set(nc, uacodec.AttributeDisplayName, mandatory(nullText))
		set(nc, uacodec.AttributeDescription, optional(nullText))
		set(nc, uacodec.AttributeWriteMask, optional(uint32(0)))
		set(nc, uacodec.AttributeUserWriteMask, optional(uint32(0)))
		set(nc, uacodec.AttributeAccessRestrictions, optional(uint16(0)))
		set(nc, uacodec.AttributeRolePermissions, optional(noRoles))
		set(nc, uacodec.AttributeUserRolePermissions, optional(noRoles))
	}

	set(uacodec.NodeClassVariable, uacodec.AttributeAccessLevel, mandatory(byte(1)))
	set(uacodec.NodeClassVariable, uacodec.AttributeArrayDimensions, optional(noDims))
	set(uacodec.NodeClassVariable, uacodec.AttributeDataType, mandatory(nullNodeID))
	set(uacodec.NodeClassVariable, uacodec.AttributeHistorizing, mandatory(false))
	set(uacodec.NodeClassVariable, uacodec.AttributeMinimumSamplingInterval, optional(float64(-1)))
	set(uacodec.NodeClassVariable, uacodec.AttributeUserAccessLevel, optional(byte(1)))
	set(uacodec.NodeClassVariable, uacodec.AttributeAccessLevelEx, optional(uint32(0)))
	set(uacodec.NodeClassVariable, uacodec.AttributeValue, mandatory(uacodec.Variant{}))
	set(uacodec.NodeClassVariable, uacodec.AttributeValueRank, mandatory(uacodec.ValueRankScalar))

	set(uacodec.NodeClassVariableType, uacodec.AttributeArrayDimensions, optional(noDims))
	set(uacodec.NodeClassVariableType, uacodec.AttributeDataType, mandatory(nullNodeID))
	set(uacodec.NodeClassVariableType, uacodec.AttributeIsAbstract, mandatory(true))
	set(uacodec.NodeClassVariableType, uacodec.AttributeValue, optional(uacodec.Variant{}))
	set(uacodec.NodeClassVariableType, uacodec.AttributeValueRank, mandatory(uacodec.ValueRankScalar))

	set(uacodec.NodeClassObject, uacodec.AttributeEventNotifier, mandatory(byte(0)))

	set(uacodec.NodeClassObjectType, uacodec.AttributeIsAbstract, mandatory(true))

	set(uacodec.NodeClassReferenceType, uacodec.AttributeInverseName, optional(nullText))
	set(uacodec.NodeClassReferenceType, uacodec.AttributeIsAbstract, mandatory(true))
	set(uacodec.NodeClassReferenceType, uacodec.AttributeSymmetric, mandatory(true))

	set(uacodec.NodeClassDataType, uacodec.AttributeDataTypeDefinition, optional((*uacodec.ExtensionObject)(nil)))
	set(uacodec.NodeClassDataType, uacodec.AttributeIsAbstract, mandatory(true))

	set(uacodec.NodeClassMethod, uacodec.AttributeExecutable, mandatory(false))
	set(uacodec.NodeClassMethod, uacodec.AttributeUserExecutable, mandatory(false))

	set(uacodec.NodeClassView, uacodec.AttributeContainsNoLoops, mandatory(true))
	set(uacodec.NodeClassView, uacodec.AttributeEventNotifier, mandatory(byte(0)))

	return m
}

// Encode writes an attribute value under its browse name. A nil value
// writes the wire default of the attribute type.
func (m *AttributeMap) Encode(enc uacodec.Encoder, id uacodec.AttributeID, value any) error {
	enc.PushNamespace(uacodec.NamespaceOPCUA)
	defer enc.PopNamespace()

	field := id.String()
	switch id {
	case uacodec.AttributeDisplayName, uacodec.AttributeInverseName, uacodec.AttributeDescription:
		return writeAs(enc, field, uacodec.TypeLocalizedText, value)
	case uacodec.AttributeWriteMask, uacodec.AttributeUserWriteMask, uacodec.AttributeAccessLevelEx:
		return writeAs(enc, field, uacodec.TypeUInt32, value)
	case uacodec.AttributeNodeID, uacodec.AttributeDataType:
		return writeAs(enc, field, uacodec.TypeNodeID, value)
	case uacodec.AttributeNodeClass:
		n, _ := value.(uacodec.NodeClass)
		enc.WriteEnumerated(field, int32(n), n.String())
		return nil
	case uacodec.AttributeValueRank:
		return writeAs(enc, field, uacodec.TypeInt32, value)
	case uacodec.AttributeBrowseName:
		return writeAs(enc, field, uacodec.TypeQualifiedName, value)
	case uacodec.AttributeHistorizing, uacodec.AttributeExecutable, uacodec.AttributeUserExecutable,
		uacodec.AttributeIsAbstract, uacodec.AttributeSymmetric, uacodec.AttributeContainsNoLoops:
		return writeAs(enc, field, uacodec.TypeBoolean, value)
	case uacodec.AttributeEventNotifier, uacodec.AttributeAccessLevel, uacodec.AttributeUserAccessLevel:
		return writeAs(enc, field, uacodec.TypeByte, value)
	case uacodec.AttributeMinimumSamplingInterval:
		return writeAs(enc, field, uacodec.TypeDouble, value)
	case uacodec.AttributeArrayDimensions:
		return enc.WriteArray(field, value, uacodec.ValueRankOneDimension, uacodec.TypeUInt32)
	case uacodec.AttributeAccessRestrictions:
		return writeAs(enc, field, uacodec.TypeUInt16, value)
	case uacodec.AttributeRolePermissions, uacodec.AttributeUserRolePermissions:
		return enc.WriteArray(field, value, uacodec.ValueRankOneDimension, uacodec.TypeNull)
	case uacodec.AttributeDataTypeDefinition:
		return writeAs(enc, field, uacodec.TypeExtensionObject, value)
	case uacodec.AttributeValue:
		v, ok := value.(uacodec.Variant)
		if !ok {
			v = uacodec.NewVariant(value)
		}
		return enc.WriteVariant(field, v)
	}
	return &uacodec.CodecError{
		StatusCode: uacodec.StatusBadAttributeIdInvalid,
		Field:      field,
		Message:    "unknown attribute id",
		Err:        uacodec.ErrAttributeIDInvalid,
	}
}

func writeAs(enc uacodec.Encoder, field string, t uacodec.BuiltInType, value any) error {
	if value == nil {
		value = t.ZeroValue()
	}
	return uacodec.EncodeScalar(enc, field, t, value)
}

// Decode reads an attribute value of a node of class nc. A missing element
// or a value equal to the class default is reported as unset with a nil
// result, so omitting an attribute and sending its default decode alike.
func (m *AttributeMap) Decode(dec uacodec.Decoder, nc uacodec.NodeClass, id uacodec.AttributeID) (any, error) {
	dec.PushNamespace(uacodec.NamespaceOPCUA)
	defer dec.PopNamespace()

	field := id.String()
	if _, known := attributeTypes[id]; !known || id == uacodec.AttributeNodeClass {
		return decodeAttribute(dec, id, field)
	}
	if !dec.HasField(field) {
		return nil, nil
	}
	v, err := decodeAttribute(dec, id, field)
	if err != nil || v == nil {
		return nil, err
	}
	if def, _, ok := m.Default(nc, id); ok && uacodec.ValueEqual(v, def) {
		return nil, nil
	}
	return v, nil
}

// decodeAttribute reads the wire value of an attribute. Null identifiers,
// names, containers and empty arrays come back as nil.
func decodeAttribute(dec uacodec.Decoder, id uacodec.AttributeID, field string) (any, error) {
	switch id {
	case uacodec.AttributeDisplayName, uacodec.AttributeInverseName, uacodec.AttributeDescription:
		return dec.ReadLocalizedText(field)
	case uacodec.AttributeWriteMask, uacodec.AttributeUserWriteMask, uacodec.AttributeAccessLevelEx:
		v, err := dec.ReadUInt32(field)
		if err != nil {
			return nil, err
		}
		return v, nil
	case uacodec.AttributeNodeID, uacodec.AttributeDataType:
		v, err := dec.ReadNodeID(field)
		if err != nil || v.IsNull() {
			return nil, err
		}
		return v, nil
	case uacodec.AttributeNodeClass:
		v, err := dec.ReadEnumerated(field)
		if err != nil {
			return nil, err
		}
		return uacodec.NodeClass(v), nil
	case uacodec.AttributeValueRank:
		v, err := dec.ReadInt32(field)
		if err != nil {
			return nil, err
		}
		return v, nil
	case uacodec.AttributeBrowseName:
		v, err := dec.ReadQualifiedName(field)
		if err != nil || v.IsNull() {
			return nil, err
		}
		return v, nil
	case uacodec.AttributeHistorizing, uacodec.AttributeExecutable, uacodec.AttributeUserExecutable,
		uacodec.AttributeIsAbstract, uacodec.AttributeSymmetric, uacodec.AttributeContainsNoLoops:
		v, err := dec.ReadBoolean(field)
		if err != nil {
			return nil, err
		}
		return v, nil
	case uacodec.AttributeEventNotifier, uacodec.AttributeAccessLevel, uacodec.AttributeUserAccessLevel:
		v, err := dec.ReadByteValue(field)
		if err != nil {
			return nil, err
		}
		return v, nil
	case uacodec.AttributeMinimumSamplingInterval:
		v, err := dec.ReadDouble(field)
		if err != nil {
			return nil, err
		}
		return v, nil
	case uacodec.AttributeArrayDimensions:
		v, err := dec.ReadArray(field, uacodec.ValueRankOneDimension, uacodec.TypeUInt32, nil)
		if err != nil {
			return nil, err
		}
		if dims, _ := v.([]uint32); len(dims) > 0 {
			return dims, nil
		}
		return nil, nil
	case uacodec.AttributeAccessRestrictions:
		v, err := dec.ReadUInt16(field)
		if err != nil {
			return nil, err
		}
		return v, nil
	case uacodec.AttributeRolePermissions, uacodec.AttributeUserRolePermissions:
		v, err := dec.ReadArray(field, uacodec.ValueRankOneDimension, uacodec.TypeNull, newRolePermission)
		if err != nil {
			return nil, err
		}
		return rolePermissions(v), nil
	case uacodec.AttributeDataTypeDefinition:
		v, err := dec.ReadExtensionObject(field)
		if err != nil || v.IsNull() {
			return nil, err
		}
		return v, nil
	case uacodec.AttributeValue:
		v, err := dec.ReadVariant(field)
		if err != nil || v.IsNull() {
			return nil, err
		}
		return v, nil
	}
	return nil, &uacodec.CodecError{
		StatusCode: uacodec.StatusBadAttributeIdInvalid,
		Field:      field,
		Message:    "unknown attribute id",
		Err:        uacodec.ErrAttributeIDInvalid,
	}
}
