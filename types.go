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
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NodeIDType represents the type of a NodeID.
type NodeIDType uint8

// NodeID types.
const (
	NodeIDTypeNumeric NodeIDType = iota
	NodeIDTypeString
	NodeIDTypeGUID
	NodeIDTypeOpaque
)

// NodeID represents an OPC UA NodeID.
type NodeID struct {
	Type      NodeIDType
	Namespace uint16
	Numeric   uint32
	String    string
	GUID      uuid.UUID
	Opaque    []byte
}

// NewNumericNodeID creates a new numeric NodeID.
func NewNumericNodeID(namespace uint16, id uint32) NodeID {
	return NodeID{
		Type:      NodeIDTypeNumeric,
		Namespace: namespace,
		Numeric:   id,
	}
}

// NewStringNodeID creates a new string NodeID.
func NewStringNodeID(namespace uint16, id string) NodeID {
	return NodeID{
		Type:      NodeIDTypeString,
		Namespace: namespace,
		String:    id,
	}
}

// NewGUIDNodeID creates a new GUID NodeID.
func NewGUIDNodeID(namespace uint16, id uuid.UUID) NodeID {
	return NodeID{
		Type:      NodeIDTypeGUID,
		Namespace: namespace,
		GUID:      id,
	}
}

// NewOpaqueNodeID creates a new opaque NodeID.
func NewOpaqueNodeID(namespace uint16, id []byte) NodeID {
	return NodeID{
		Type:      NodeIDTypeOpaque,
		Namespace: namespace,
		Opaque:    id,
	}
}

// IsNull reports whether n is the null NodeID (ns=0;i=0 or an empty identifier).
func (n NodeID) IsNull() bool {
	if n.Namespace != 0 {
		return false
	}
	switch n.Type {
	case NodeIDTypeNumeric:
		return n.Numeric == 0
	case NodeIDTypeString:
		return n.String == ""
	case NodeIDTypeGUID:
		return n.GUID == uuid.Nil
	case NodeIDTypeOpaque:
		return len(n.Opaque) == 0
	}
	return false
}

// Equal reports whether n and o identify the same node.
func (n NodeID) Equal(o NodeID) bool {
	if n.IsNull() && o.IsNull() {
		return true
	}
	if n.Type != o.Type || n.Namespace != o.Namespace {
		return false
	}
	switch n.Type {
	case NodeIDTypeNumeric:
		return n.Numeric == o.Numeric
	case NodeIDTypeString:
		return n.String == o.String
	case NodeIDTypeGUID:
		return n.GUID == o.GUID
	case NodeIDTypeOpaque:
		return bytes.Equal(n.Opaque, o.Opaque)
	}
	return false
}

// Format returns the textual form of the NodeID, e.g. "ns=2;s=Tag".
func (n NodeID) Format() string {
	var prefix string
	if n.Namespace != 0 {
		prefix = fmt.Sprintf("ns=%d;", n.Namespace)
	}
	switch n.Type {
	case NodeIDTypeString:
		return prefix + "s=" + n.String
	case NodeIDTypeGUID:
		return prefix + "g=" + n.GUID.String()
	case NodeIDTypeOpaque:
		return prefix + "b=" + encodeBase64(n.Opaque)
	default:
		return prefix + "i=" + strconv.FormatUint(uint64(n.Numeric), 10)
	}
}

// ParseNodeID parses a NodeID from its textual form.
// Supported forms: "i=85", "ns=2;i=1", "ns=2;s=MyVar", "ns=2;g=<uuid>", "ns=2;b=<base64>".
func ParseNodeID(s string) (NodeID, error) {
	s = strings.TrimSpace(s)
	var ns uint16

	if strings.HasPrefix(s, "ns=") {
		idx := strings.Index(s, ";")
		if idx < 0 {
			return NodeID{}, fmt.Errorf("%w: invalid node ID %q", ErrDecoding, s)
		}
		v, err := strconv.ParseUint(s[3:idx], 10, 16)
		if err != nil {
			return NodeID{}, fmt.Errorf("%w: invalid namespace in %q", ErrDecoding, s)
		}
		ns = uint16(v)
		s = s[idx+1:]
	}

	switch {
	case strings.HasPrefix(s, "i="):
		v, err := strconv.ParseUint(s[2:], 10, 32)
		if err != nil {
			return NodeID{}, fmt.Errorf("%w: invalid numeric identifier %q", ErrDecoding, s)
		}
		return NewNumericNodeID(ns, uint32(v)), nil
	case strings.HasPrefix(s, "s="):
		return NewStringNodeID(ns, s[2:]), nil
	case strings.HasPrefix(s, "g="):
		g, err := uuid.Parse(s[2:])
		if err != nil {
			return NodeID{}, fmt.Errorf("%w: invalid guid identifier %q", ErrDecoding, s)
		}
		return NewGUIDNodeID(ns, g), nil
	case strings.HasPrefix(s, "b="):
		b, err := decodeBase64(s[2:])
		if err != nil {
			return NodeID{}, fmt.Errorf("%w: invalid opaque identifier %q", ErrDecoding, s)
		}
		return NewOpaqueNodeID(ns, b), nil
	default:
		return NodeID{}, fmt.Errorf("%w: invalid node ID %q", ErrDecoding, s)
	}
}

// ExpandedNodeID is a NodeID that may carry a namespace URI and a server index.
type ExpandedNodeID struct {
	NodeID       NodeID
	NamespaceURI string
	ServerIndex  uint32
}

// NewExpandedNodeID wraps a NodeID.
func NewExpandedNodeID(id NodeID) ExpandedNodeID {
	return ExpandedNodeID{NodeID: id}
}

// IsNull reports whether the identifier is null.
func (e ExpandedNodeID) IsNull() bool {
	return e.NodeID.IsNull() && e.NamespaceURI == "" && e.ServerIndex == 0
}

// Equal reports whether e and o are the same identifier.
func (e ExpandedNodeID) Equal(o ExpandedNodeID) bool {
	return e.NodeID.Equal(o.NodeID) && e.NamespaceURI == o.NamespaceURI && e.ServerIndex == o.ServerIndex
}

// Format returns the textual form of the identifier.
func (e ExpandedNodeID) Format() string {
	s := e.NodeID.Format()
	if e.NamespaceURI != "" {
		s = "nsu=" + e.NamespaceURI + ";" + strings.TrimPrefix(s, fmt.Sprintf("ns=%d;", e.NodeID.Namespace))
	}
	if e.ServerIndex != 0 {
		s = fmt.Sprintf("svr=%d;%s", e.ServerIndex, s)
	}
	return s
}

// ParseExpandedNodeID parses the form produced by ExpandedNodeID.Format, e.g.
// "svr=1;nsu=http://example.com/;s=Tag".
func ParseExpandedNodeID(s string) (ExpandedNodeID, error) {
	s = strings.TrimSpace(s)
	var out ExpandedNodeID

	if strings.HasPrefix(s, "svr=") {
		idx := strings.Index(s, ";")
		if idx < 0 {
			return ExpandedNodeID{}, fmt.Errorf("%w: invalid expanded node ID %q", ErrDecoding, s)
		}
		v, err := strconv.ParseUint(s[4:idx], 10, 32)
		if err != nil {
			return ExpandedNodeID{}, fmt.Errorf("%w: invalid server index in %q", ErrDecoding, s)
		}
		out.ServerIndex = uint32(v)
		s = s[idx+1:]
	}
	if strings.HasPrefix(s, "nsu=") {
		idx := strings.LastIndex(s, ";")
		if idx < 0 {
			return ExpandedNodeID{}, fmt.Errorf("%w: invalid expanded node ID %q", ErrDecoding, s)
		}
		out.NamespaceURI = s[4:idx]
		s = s[idx+1:]
	}

	id, err := ParseNodeID(s)
	if err != nil {
		return ExpandedNodeID{}, err
	}
	out.NodeID = id
	return out, nil
}

// AttributeID represents an OPC UA attribute identifier.
type AttributeID uint32

// OPC UA Attribute IDs.
const (
	AttributeNodeID                  AttributeID = 1
	AttributeNodeClass               AttributeID = 2
	AttributeBrowseName              AttributeID = 3
	AttributeDisplayName             AttributeID = 4
	AttributeDescription             AttributeID = 5
	AttributeWriteMask               AttributeID = 6
	AttributeUserWriteMask           AttributeID = 7
	AttributeIsAbstract              AttributeID = 8
	AttributeSymmetric               AttributeID = 9
	AttributeInverseName             AttributeID = 10
	AttributeContainsNoLoops         AttributeID = 11
	AttributeEventNotifier           AttributeID = 12
	AttributeValue                   AttributeID = 13
	AttributeDataType                AttributeID = 14
	AttributeValueRank               AttributeID = 15
	AttributeArrayDimensions         AttributeID = 16
	AttributeAccessLevel             AttributeID = 17
	AttributeUserAccessLevel         AttributeID = 18
	AttributeMinimumSamplingInterval AttributeID = 19
	AttributeHistorizing             AttributeID = 20
	AttributeExecutable              AttributeID = 21
	AttributeUserExecutable          AttributeID = 22
	AttributeDataTypeDefinition      AttributeID = 23
	AttributeRolePermissions         AttributeID = 24
	AttributeUserRolePermissions     AttributeID = 25
	AttributeAccessRestrictions      AttributeID = 26
	AttributeAccessLevelEx           AttributeID = 27

	// MaxAttributeID is the highest attribute identifier known to this package.
	MaxAttributeID = AttributeAccessLevelEx
)

var attributeNames = [...]string{
	AttributeNodeID:                  "NodeId",
	AttributeNodeClass:               "NodeClass",
	AttributeBrowseName:              "BrowseName",
	AttributeDisplayName:             "DisplayName",
	AttributeDescription:             "Description",
	AttributeWriteMask:               "WriteMask",
	AttributeUserWriteMask:           "UserWriteMask",
	AttributeIsAbstract:              "IsAbstract",
	AttributeSymmetric:               "Symmetric",
	AttributeInverseName:             "InverseName",
	AttributeContainsNoLoops:         "ContainsNoLoops",
	AttributeEventNotifier:           "EventNotifier",
	AttributeValue:                   "Value",
	AttributeDataType:                "DataType",
	AttributeValueRank:               "ValueRank",
	AttributeArrayDimensions:         "ArrayDimensions",
	AttributeAccessLevel:             "AccessLevel",
	AttributeUserAccessLevel:         "UserAccessLevel",
	AttributeMinimumSamplingInterval: "MinimumSamplingInterval",
	AttributeHistorizing:             "Historizing",
	AttributeExecutable:              "Executable",
	AttributeUserExecutable:          "UserExecutable",
	AttributeDataTypeDefinition:      "DataTypeDefinition",
	AttributeRolePermissions:         "RolePermissions",
	AttributeUserRolePermissions:     "UserRolePermissions",
	AttributeAccessRestrictions:      "AccessRestrictions",
	AttributeAccessLevelEx:           "AccessLevelEx",
}

// String returns the browse name of the attribute.
func (a AttributeID) String() string {
	if a == 0 || a > MaxAttributeID {
		return "Unknown"
	}
	return attributeNames[a]
}

// NodeClass represents the class of an OPC UA node.
type NodeClass uint32

// OPC UA Node Classes.
const (
	NodeClassUnspecified   NodeClass = 0
	NodeClassObject        NodeClass = 1
	NodeClassVariable      NodeClass = 2
	NodeClassMethod        NodeClass = 4
	NodeClassObjectType    NodeClass = 8
	NodeClassVariableType  NodeClass = 16
	NodeClassReferenceType NodeClass = 32
	NodeClassDataType      NodeClass = 64
	NodeClassView          NodeClass = 128
)

// NodeClasses lists the concrete node classes in ascending order.
var NodeClasses = []NodeClass{
	NodeClassObject,
	NodeClassVariable,
	NodeClassMethod,
	NodeClassObjectType,
	NodeClassVariableType,
	NodeClassReferenceType,
	NodeClassDataType,
	NodeClassView,
}

// String returns the string representation of a NodeClass.
func (n NodeClass) String() string {
	switch n {
	case NodeClassUnspecified:
		return "Unspecified"
	case NodeClassObject:
		return "Object"
	case NodeClassVariable:
		return "Variable"
	case NodeClassMethod:
		return "Method"
	case NodeClassObjectType:
		return "ObjectType"
	case NodeClassVariableType:
		return "VariableType"
	case NodeClassReferenceType:
		return "ReferenceType"
	case NodeClassDataType:
		return "DataType"
	case NodeClassView:
		return "View"
	default:
		return "Unknown"
	}
}

// ParseNodeClass returns the node class with the given name.
func ParseNodeClass(s string) (NodeClass, bool) {
	for _, nc := range NodeClasses {
		if strings.EqualFold(nc.String(), s) {
			return nc, true
		}
	}
	return NodeClassUnspecified, false
}

// Value ranks.
const (
	ValueRankScalarOrOneDimension int32 = -3
	ValueRankAny                  int32 = -2
	ValueRankScalar               int32 = -1
	ValueRankOneOrMoreDimensions  int32 = 0
	ValueRankOneDimension         int32 = 1
	ValueRankTwoDimensions        int32 = 2
)

// StatusCode represents an OPC UA StatusCode.
type StatusCode uint32

// QualifiedName represents an OPC UA QualifiedName.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// NewQualifiedName creates a QualifiedName.
func NewQualifiedName(ns uint16, name string) QualifiedName {
	return QualifiedName{NamespaceIndex: ns, Name: name}
}

// IsNull reports whether the name is empty.
func (q QualifiedName) IsNull() bool {
	return q.NamespaceIndex == 0 && q.Name == ""
}

// Format returns "ns:name", omitting the namespace when it is zero.
func (q QualifiedName) Format() string {
	if q.NamespaceIndex == 0 {
		return q.Name
	}
	return fmt.Sprintf("%d:%s", q.NamespaceIndex, q.Name)
}

// LocalizedText represents an OPC UA LocalizedText.
type LocalizedText struct {
	Locale string
	Text   string
}

// NewLocalizedText creates a LocalizedText without a locale.
func NewLocalizedText(text string) LocalizedText {
	return LocalizedText{Text: text}
}

// IsNull reports whether both locale and text are empty.
func (l LocalizedText) IsNull() bool {
	return l.Locale == "" && l.Text == ""
}

// XMLElement holds a raw XML fragment.
type XMLElement string

// Name returns the local name of the root element of the fragment.
func (x XMLElement) Name() string {
	s := strings.TrimSpace(string(x))
	if !strings.HasPrefix(s, "<") {
		return ""
	}
	s = s[1:]
	end := strings.IndexAny(s, " \t\r\n/>")
	if end < 0 {
		return s
	}
	name := s[:end]
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// DataValue represents an OPC UA DataValue.
type DataValue struct {
	Value             *Variant
	StatusCode        StatusCode
	SourceTimestamp   time.Time
	ServerTimestamp   time.Time
	SourcePicoseconds uint16
	ServerPicoseconds uint16
}

// NewDataValue wraps a variant in a DataValue with a good status.
func NewDataValue(v Variant) *DataValue {
	return &DataValue{Value: &v}
}

// Variant represents an OPC UA Variant. Value holds the host type of Type
// for scalars, a slice of it for one-dimensional arrays and a Matrix for
// higher ranks.
type Variant struct {
	Type  BuiltInType
	Value any
}

// NewVariant creates a variant, inferring the built-in type from the host value.
func NewVariant(v any) Variant {
	if v == nil {
		return Variant{}
	}
	if m, ok := v.(Matrix); ok {
		return Variant{Type: TypeOf(m.Elements), Value: m}
	}
	return Variant{Type: TypeOf(v), Value: v}
}

// IsNull reports whether the variant carries no value.
func (v Variant) IsNull() bool {
	return v.Type == TypeNull || v.Value == nil
}

// IsArray reports whether the variant holds an array or a matrix.
func (v Variant) IsArray() bool {
	if _, ok := v.Value.(Matrix); ok {
		return true
	}
	return isSlice(v.Value) && v.Type != TypeByteString
}

// Matrix is a multi-dimensional array stored as a flat slice in row-major order.
type Matrix struct {
	Dimensions []int32
	Elements   any
}

// Len returns the number of elements implied by the dimensions, or -1 when
// the product does not fit in an Int32 array length.
func (m Matrix) Len() int {
	if len(m.Dimensions) == 0 {
		return 0
	}
	for _, d := range m.Dimensions {
		if d <= 0 {
			return 0
		}
	}
	var n int64 = 1
	for _, d := range m.Dimensions {
		n *= int64(d)
		if n > math.MaxInt32 {
			return -1
		}
	}
	return int(n)
}

// ExtensionObject encoding bytes.
const (
	ExtensionObjectEmpty  byte = 0x00
	ExtensionObjectBinary byte = 0x01
	ExtensionObjectXML    byte = 0x02
)

// ExtensionObject carries a structured value identified by its encoding id.
// Body is an Encodeable when the type is known, []byte for an opaque binary
// body and XMLElement for an opaque XML body.
type ExtensionObject struct {
	TypeID ExpandedNodeID
	Body   any
}

// NewExtensionObject wraps an encodeable value.
func NewExtensionObject(body Encodeable) *ExtensionObject {
	return &ExtensionObject{TypeID: body.TypeID(), Body: body}
}

// IsNull reports whether the object carries no body.
func (e *ExtensionObject) IsNull() bool {
	return e == nil || e.Body == nil
}

// DiagnosticInfo contains diagnostic information.
type DiagnosticInfo struct {
	SymbolicID          int32
	NamespaceURI        int32
	Locale              int32
	LocalizedText       int32
	AdditionalInfo      string
	InnerStatusCode     StatusCode
	InnerDiagnosticInfo *DiagnosticInfo
}

// ReadValueID represents a node attribute to read.
type ReadValueID struct {
	NodeID       NodeID
	AttributeID  AttributeID
	IndexRange   string
	DataEncoding QualifiedName
}

// WriteValue represents a value to write to a node attribute.
type WriteValue struct {
	NodeID      NodeID
	AttributeID AttributeID
	IndexRange  string
	Value       DataValue
}
