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
	"fmt"
	"sort"

	"github.com/edgeo-scada/uacodec"
	"github.com/edgeo-scada/uacodec/complextype"
)

// Identifiers of the Node structure.
var (
	NodeTypeID           = uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(0, 258))
	NodeBinaryEncodingID = uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(0, 260))
	NodeXMLEncodingID    = uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(0, 259))
)

// Wire names of the trailing node fields.
const (
	symbolicNameField  = "SymbolicName"
	modellingRuleField = "ModellingRule"
)

// attributeTypes maps attributes to the variant type their values are
// carried in.
var attributeTypes = map[uacodec.AttributeID]uacodec.BuiltInType{
	uacodec.AttributeNodeID:                  uacodec.TypeNodeID,
	uacodec.AttributeNodeClass:               uacodec.TypeInt32,
	uacodec.AttributeBrowseName:              uacodec.TypeQualifiedName,
	uacodec.AttributeDisplayName:             uacodec.TypeLocalizedText,
	uacodec.AttributeDescription:             uacodec.TypeLocalizedText,
	uacodec.AttributeWriteMask:               uacodec.TypeUInt32,
	uacodec.AttributeUserWriteMask:           uacodec.TypeUInt32,
	uacodec.AttributeIsAbstract:              uacodec.TypeBoolean,
	uacodec.AttributeSymmetric:               uacodec.TypeBoolean,
	uacodec.AttributeInverseName:             uacodec.TypeLocalizedText,
	uacodec.AttributeContainsNoLoops:         uacodec.TypeBoolean,
	uacodec.AttributeEventNotifier:           uacodec.TypeByte,
	uacodec.AttributeDataType:                uacodec.TypeNodeID,
	uacodec.AttributeValueRank:               uacodec.TypeInt32,
	uacodec.AttributeArrayDimensions:         uacodec.TypeUInt32,
	uacodec.AttributeAccessLevel:             uacodec.TypeByte,
	uacodec.AttributeUserAccessLevel:         uacodec.TypeByte,
	uacodec.AttributeMinimumSamplingInterval: uacodec.TypeDouble,
	uacodec.AttributeHistorizing:             uacodec.TypeBoolean,
	uacodec.AttributeExecutable:              uacodec.TypeBoolean,
	uacodec.AttributeUserExecutable:          uacodec.TypeBoolean,
	uacodec.AttributeDataTypeDefinition:      uacodec.TypeExtensionObject,
	uacodec.AttributeRolePermissions:         uacodec.TypeExtensionObject,
	uacodec.AttributeUserRolePermissions:     uacodec.TypeExtensionObject,
	uacodec.AttributeAccessRestrictions:      uacodec.TypeUInt16,
	uacodec.AttributeAccessLevelEx:           uacodec.TypeUInt32,
}

// GenericNode is a node described only by its attribute values. Attributes
// that are not set take the default listed for the node class in the
// AttributeMap.
type GenericNode struct {
	attributes map[uacodec.AttributeID]*uacodec.DataValue

	// SymbolicName is the symbolic name used by node set exports.
	SymbolicName string
	// ModellingRule is the modelling rule of an instance declaration.
	ModellingRule uacodec.NodeID
}

// NewGenericNode creates an empty node, typically as a decode target.
func NewGenericNode() *GenericNode {
	return &GenericNode{attributes: make(map[uacodec.AttributeID]*uacodec.DataValue)}
}

// New creates a node with its identity attributes set.
func New(id uacodec.NodeID, nc uacodec.NodeClass, browseName uacodec.QualifiedName) *GenericNode {
	n := NewGenericNode()
	n.store(uacodec.AttributeNodeID, id)
	n.store(uacodec.AttributeNodeClass, nc)
	n.store(uacodec.AttributeBrowseName, browseName)
	return n
}

// TypeID returns the id of the Node data type.
func (n *GenericNode) TypeID() uacodec.ExpandedNodeID { return NodeTypeID }

// BinaryEncodingID returns the id of the binary Node encoding.
func (n *GenericNode) BinaryEncodingID() uacodec.ExpandedNodeID { return NodeBinaryEncodingID }

// XMLEncodingID returns the id of the XML Node encoding.
func (n *GenericNode) XMLEncodingID() uacodec.ExpandedNodeID { return NodeXMLEncodingID }

// TypeName returns the XML element name of the node.
func (n *GenericNode) TypeName() string { return "Node" }

// toVariant wraps an attribute value in the variant it is carried in.
func toVariant(id uacodec.AttributeID, v any) uacodec.Variant {
	switch id {
	case uacodec.AttributeValue:
		if vv, ok := v.(uacodec.Variant); ok {
			return vv
		}
		return uacodec.NewVariant(v)
	case uacodec.AttributeNodeClass:
		nc, _ := v.(uacodec.NodeClass)
		return uacodec.Variant{Type: uacodec.TypeInt32, Value: int32(nc)}
	case uacodec.AttributeRolePermissions, uacodec.AttributeUserRolePermissions:
		recs, _ := v.([]*complextype.Record)
		eos := make([]*uacodec.ExtensionObject, len(recs))
		for i, r := range recs {
			eos[i] = uacodec.NewExtensionObject(r)
		}
		return uacodec.Variant{Type: uacodec.TypeExtensionObject, Value: eos}
	}
	if t, ok := attributeTypes[id]; ok {
		return uacodec.Variant{Type: t, Value: v}
	}
	return uacodec.NewVariant(v)
}

// fromVariant unwraps the attribute value carried in a variant.
func fromVariant(id uacodec.AttributeID, v uacodec.Variant) any {
	switch id {
	case uacodec.AttributeValue:
		return v
	case uacodec.AttributeNodeClass:
		switch x := v.Value.(type) {
		case int32:
			return uacodec.NodeClass(x)
		case uint32:
			return uacodec.NodeClass(x)
		case uacodec.NodeClass:
			return x
		}
		return uacodec.NodeClassUnspecified
	case uacodec.AttributeRolePermissions, uacodec.AttributeUserRolePermissions:
		eos, ok := v.Value.([]*uacodec.ExtensionObject)
		if !ok {
			return v.Value
		}
		recs := make([]*complextype.Record, 0, len(eos))
		for _, eo := range eos {
			if r, ok := eo.Body.(*complextype.Record); ok {
				recs = append(recs, r)
			}
		}
		return recs
	}
	return v.Value
}

func (n *GenericNode) store(id uacodec.AttributeID, v any) {
	if n.attributes == nil {
		n.attributes = make(map[uacodec.AttributeID]*uacodec.DataValue)
	}
	n.attributes[id] = uacodec.NewDataValue(toVariant(id, v))
}

// NodeClass returns the node class, or NodeClassUnspecified.
func (n *GenericNode) NodeClass() uacodec.NodeClass {
	v, ok := n.Lookup(uacodec.AttributeNodeClass)
	if !ok {
		return uacodec.NodeClassUnspecified
	}
	nc, _ := v.(uacodec.NodeClass)
	return nc
}

// Lookup returns an attribute value that has been set.
func (n *GenericNode) Lookup(id uacodec.AttributeID) (any, bool) {
	dv, ok := n.attributes[id]
	if !ok || dv == nil || dv.Value == nil {
		return nil, false
	}
	return fromVariant(id, *dv.Value), true
}

// Attribute returns an attribute value, or the class default when unset.
// The attribute must belong to the node class.
func (n *GenericNode) Attribute(id uacodec.AttributeID) (any, error) {
	nc := n.NodeClass()
	if err := Attributes().Validate(nc, id); err != nil {
		return nil, err
	}
	if v, ok := n.Lookup(id); ok {
		return v, nil
	}
	def, _, _ := Attributes().Default(nc, id)
	return def, nil
}

// DataValue returns the data value stored for an attribute, including the
// status and timestamps of a remote read, or nil when unset.
func (n *GenericNode) DataValue(id uacodec.AttributeID) *uacodec.DataValue {
	return n.attributes[id]
}

// SetAttribute sets an attribute. Once the node class is known, attributes
// outside the class are rejected.
func (n *GenericNode) SetAttribute(id uacodec.AttributeID, v any) error {
	if id == 0 || id > uacodec.MaxAttributeID {
		return &uacodec.CodecError{
			StatusCode: uacodec.StatusBadAttributeIdInvalid,
			Field:      id.String(),
			Message:    fmt.Sprintf("attribute id %d", uint32(id)),
			Err:        uacodec.ErrAttributeIDInvalid,
		}
	}
	if nc := n.NodeClass(); nc != uacodec.NodeClassUnspecified && id != uacodec.AttributeNodeClass {
		if err := Attributes().Validate(nc, id); err != nil {
			return err
		}
	}
	if v == nil {
		delete(n.attributes, id)
		return nil
	}
	n.store(id, v)
	return nil
}

// SetDataValue stores a data value as read from a server.
func (n *GenericNode) SetDataValue(id uacodec.AttributeID, dv *uacodec.DataValue) {
	if dv == nil {
		delete(n.attributes, id)
		return
	}
	if n.attributes == nil {
		n.attributes = make(map[uacodec.AttributeID]*uacodec.DataValue)
	}
	n.attributes[id] = dv
}

// ClearAttribute unsets an attribute.
func (n *GenericNode) ClearAttribute(id uacodec.AttributeID) {
	delete(n.attributes, id)
}

// AttributeIDs returns the ids of the set attributes in ascending order.
func (n *GenericNode) AttributeIDs() []uacodec.AttributeID {
	ids := make([]uacodec.AttributeID, 0, len(n.attributes))
	for id := range n.attributes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// value returns an attribute value or its class default, converted to T.
func value[T any](n *GenericNode, id uacodec.AttributeID) T {
	var zero T
	v, ok := n.Lookup(id)
	if !ok {
		v, _, _ = Attributes().Default(n.NodeClass(), id)
	}
	if t, ok := v.(T); ok {
		return t
	}
	return zero
}

// NodeID returns the node id.
func (n *GenericNode) NodeID() uacodec.NodeID {
	return value[uacodec.NodeID](n, uacodec.AttributeNodeID)
}

// BrowseName returns the browse name.
func (n *GenericNode) BrowseName() uacodec.QualifiedName {
	return value[uacodec.QualifiedName](n, uacodec.AttributeBrowseName)
}

// DisplayName returns the display name.
func (n *GenericNode) DisplayName() uacodec.LocalizedText {
	return value[uacodec.LocalizedText](n, uacodec.AttributeDisplayName)
}

// Description returns the description.
func (n *GenericNode) Description() uacodec.LocalizedText {
	return value[uacodec.LocalizedText](n, uacodec.AttributeDescription)
}

// WriteMask returns the write mask.
func (n *GenericNode) WriteMask() uint32 {
	return value[uint32](n, uacodec.AttributeWriteMask)
}

// UserWriteMask returns the write mask of the current user.
func (n *GenericNode) UserWriteMask() uint32 {
	return value[uint32](n, uacodec.AttributeUserWriteMask)
}

// IsAbstract reports whether a type node is abstract.
func (n *GenericNode) IsAbstract() bool {
	return value[bool](n, uacodec.AttributeIsAbstract)
}

// EventNotifier returns the event notifier of an object or view.
func (n *GenericNode) EventNotifier() byte {
	return value[byte](n, uacodec.AttributeEventNotifier)
}

// DataType returns the data type of a variable.
func (n *GenericNode) DataType() uacodec.NodeID {
	return value[uacodec.NodeID](n, uacodec.AttributeDataType)
}

// ValueRank returns the value rank of a variable.
func (n *GenericNode) ValueRank() int32 {
	return value[int32](n, uacodec.AttributeValueRank)
}

// ArrayDimensions returns the array dimensions of a variable.
func (n *GenericNode) ArrayDimensions() []uint32 {
	return value[[]uint32](n, uacodec.AttributeArrayDimensions)
}

// AccessLevel returns the access level of a variable.
func (n *GenericNode) AccessLevel() byte {
	return value[byte](n, uacodec.AttributeAccessLevel)
}

// Historizing reports whether a variable is historized.
func (n *GenericNode) Historizing() bool {
	return value[bool](n, uacodec.AttributeHistorizing)
}

// MinimumSamplingInterval returns the fastest sampling rate of a variable.
func (n *GenericNode) MinimumSamplingInterval() float64 {
	return value[float64](n, uacodec.AttributeMinimumSamplingInterval)
}

// Executable reports whether a method can be called.
func (n *GenericNode) Executable() bool {
	return value[bool](n, uacodec.AttributeExecutable)
}

// RolePermissions returns the role permissions.
func (n *GenericNode) RolePermissions() []*complextype.Record {
	return value[[]*complextype.Record](n, uacodec.AttributeRolePermissions)
}

// Value returns the value of a variable or variable type.
func (n *GenericNode) Value() uacodec.Variant {
	return value[uacodec.Variant](n, uacodec.AttributeValue)
}

// Encode writes the node class followed by every attribute of the class,
// using the class defaults for unset attributes.
func (n *GenericNode) Encode(enc uacodec.Encoder) error {
	enc.PushNamespace(uacodec.NamespaceOPCUA)
	defer enc.PopNamespace()

	m := Attributes()
	nc := n.NodeClass()
	if _, ok := classIndex(nc); !ok {
		return &uacodec.CodecError{
			StatusCode: uacodec.StatusBadNodeClassInvalid,
			Field:      uacodec.AttributeNodeClass.String(),
			Message:    "cannot encode node of class " + nc.String(),
			Err:        uacodec.ErrNodeClassInvalid,
		}
	}
	if err := m.Encode(enc, uacodec.AttributeNodeClass, nc); err != nil {
		return err
	}
	for _, id := range m.ValidAttributes(nc) {
		if id == uacodec.AttributeNodeClass {
			continue
		}
		v, ok := n.Lookup(id)
		if !ok {
			v, _, _ = m.Default(nc, id)
		}
		if err := m.Encode(enc, id, v); err != nil {
			return uacodec.WrapField(id.String(), err)
		}
	}
	enc.WriteString(symbolicNameField, n.SymbolicName)
	enc.WriteNodeID(modellingRuleField, n.ModellingRule)
	return nil
}

// Decode reads the node class, then every attribute of the class. Values
// equal to their class default are left unset.
func (n *GenericNode) Decode(dec uacodec.Decoder) error {
	dec.PushNamespace(uacodec.NamespaceOPCUA)
	defer dec.PopNamespace()

	m := Attributes()
	v, err := m.Decode(dec, uacodec.NodeClassUnspecified, uacodec.AttributeNodeClass)
	if err != nil {
		return err
	}
	nc, _ := v.(uacodec.NodeClass)
	if _, ok := classIndex(nc); !ok {
		return &uacodec.CodecError{
			StatusCode: uacodec.StatusBadNodeClassInvalid,
			Field:      uacodec.AttributeNodeClass.String(),
			Message:    "decoded node class " + nc.String(),
			Err:        uacodec.ErrNodeClassInvalid,
		}
	}

	n.attributes = make(map[uacodec.AttributeID]*uacodec.DataValue)
	n.store(uacodec.AttributeNodeClass, nc)
	for _, id := range m.ValidAttributes(nc) {
		if id == uacodec.AttributeNodeClass {
			continue
		}
		v, err := m.Decode(dec, nc, id)
		if err != nil {
			return uacodec.WrapField(id.String(), err)
		}
		if v != nil {
			n.store(id, v)
		}
	}

	if n.SymbolicName, err = dec.ReadString(symbolicNameField); err != nil {
		return uacodec.WrapField(symbolicNameField, err)
	}
	if n.ModellingRule, err = dec.ReadNodeID(modellingRuleField); err != nil {
		return uacodec.WrapField(modellingRuleField, err)
	}
	return nil
}

// Equal reports whether two nodes of the same class carry the same
// attributes, treating an unset attribute as its class default.
func (n *GenericNode) Equal(o *GenericNode) bool {
	if n == nil || o == nil {
		return n == o
	}
	nc := n.NodeClass()
	if nc != o.NodeClass() {
		return false
	}
	if n.SymbolicName != o.SymbolicName || !n.ModellingRule.Equal(o.ModellingRule) {
		return false
	}
	m := Attributes()
	for _, id := range m.ValidAttributes(nc) {
		def, _, _ := m.Default(nc, id)
		a, ok := n.Lookup(id)
		if !ok {
			a = def
		}
		b, ok := o.Lookup(id)
		if !ok {
			b = def
		}
		if !uacodec.ValueEqual(a, b) {
			return false
		}
	}
	return true
}

// IsEqual compares the node with another encodeable.
func (n *GenericNode) IsEqual(other uacodec.Encodeable) bool {
	o, ok := other.(*GenericNode)
	return ok && n.Equal(o)
}

// Clone returns a copy of the node. Data values are copied, their contents
// are shared.
func (n *GenericNode) Clone() *GenericNode {
	c := NewGenericNode()
	for id, dv := range n.attributes {
		if dv != nil {
			cp := *dv
			c.attributes[id] = &cp
		}
	}
	c.SymbolicName = n.SymbolicName
	c.ModellingRule = n.ModellingRule
	return c
}

// String returns "NodeId (BrowseName)".
func (n *GenericNode) String() string {
	return fmt.Sprintf("%s (%s)", n.NodeID().Format(), n.BrowseName().Format())
}
