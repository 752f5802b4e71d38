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
	"encoding/base64"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuiltInType identifies an OPC UA built-in wire type.
type BuiltInType uint8

// OPC UA Built-in Types.
const (
	TypeNull            BuiltInType = 0
	TypeBoolean         BuiltInType = 1
	TypeSByte           BuiltInType = 2
	TypeByte            BuiltInType = 3
	TypeInt16           BuiltInType = 4
	TypeUInt16          BuiltInType = 5
	TypeInt32           BuiltInType = 6
	TypeUInt32          BuiltInType = 7
	TypeInt64           BuiltInType = 8
	TypeUInt64          BuiltInType = 9
	TypeFloat           BuiltInType = 10
	TypeDouble          BuiltInType = 11
	TypeString          BuiltInType = 12
	TypeDateTime        BuiltInType = 13
	TypeGUID            BuiltInType = 14
	TypeByteString      BuiltInType = 15
	TypeXMLElement      BuiltInType = 16
	TypeNodeID          BuiltInType = 17
	TypeExpandedNodeID  BuiltInType = 18
	TypeStatusCode      BuiltInType = 19
	TypeQualifiedName   BuiltInType = 20
	TypeLocalizedText   BuiltInType = 21
	TypeExtensionObject BuiltInType = 22
	TypeDataValue       BuiltInType = 23
	TypeVariant         BuiltInType = 24
	TypeDiagnosticInfo  BuiltInType = 25

	// TypeEnumeration marks an int32 carrying an enumerated value. It is
	// encoded as Int32 and never appears as a variant type tag.
	TypeEnumeration BuiltInType = 29
)

var builtInTypeNames = map[BuiltInType]string{
	TypeNull:            "Null",
	TypeBoolean:         "Boolean",
	TypeSByte:           "SByte",
	TypeByte:            "Byte",
	TypeInt16:           "Int16",
	TypeUInt16:          "UInt16",
	TypeInt32:           "Int32",
	TypeUInt32:          "UInt32",
	TypeInt64:           "Int64",
	TypeUInt64:          "UInt64",
	TypeFloat:           "Float",
	TypeDouble:          "Double",
	TypeString:          "String",
	TypeDateTime:        "DateTime",
	TypeGUID:            "Guid",
	TypeByteString:      "ByteString",
	TypeXMLElement:      "XmlElement",
	TypeNodeID:          "NodeId",
	TypeExpandedNodeID:  "ExpandedNodeId",
	TypeStatusCode:      "StatusCode",
	TypeQualifiedName:   "QualifiedName",
	TypeLocalizedText:   "LocalizedText",
	TypeExtensionObject: "ExtensionObject",
	TypeDataValue:       "DataValue",
	TypeVariant:         "Variant",
	TypeDiagnosticInfo:  "DiagnosticInfo",
	TypeEnumeration:     "Enumeration",
}

// String returns the OPC UA name of the type.
func (t BuiltInType) String() string {
	if name, ok := builtInTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// IsValid reports whether t is a member of the catalog.
func (t BuiltInType) IsValid() bool {
	_, ok := builtInTypeNames[t]
	return ok
}

// ParseBuiltInType returns the type with the given OPC UA name, ignoring case.
func ParseBuiltInType(s string) (BuiltInType, bool) {
	for t, name := range builtInTypeNames {
		if strings.EqualFold(name, s) {
			return t, true
		}
	}
	return TypeNull, false
}

var (
	typeEncodeable = reflect.TypeOf((*Encodeable)(nil)).Elem()

	hostTypes = map[BuiltInType]reflect.Type{
		TypeBoolean:         reflect.TypeOf(false),
		TypeSByte:           reflect.TypeOf(int8(0)),
		TypeByte:            reflect.TypeOf(byte(0)),
		TypeInt16:           reflect.TypeOf(int16(0)),
		TypeUInt16:          reflect.TypeOf(uint16(0)),
		TypeInt32:           reflect.TypeOf(int32(0)),
		TypeUInt32:          reflect.TypeOf(uint32(0)),
		TypeInt64:           reflect.TypeOf(int64(0)),
		TypeUInt64:          reflect.TypeOf(uint64(0)),
		TypeFloat:           reflect.TypeOf(float32(0)),
		TypeDouble:          reflect.TypeOf(float64(0)),
		TypeString:          reflect.TypeOf(""),
		TypeDateTime:        reflect.TypeOf(time.Time{}),
		TypeGUID:            reflect.TypeOf(uuid.UUID{}),
		TypeByteString:      reflect.TypeOf([]byte(nil)),
		TypeXMLElement:      reflect.TypeOf(XMLElement("")),
		TypeNodeID:          reflect.TypeOf(NodeID{}),
		TypeExpandedNodeID:  reflect.TypeOf(ExpandedNodeID{}),
		TypeStatusCode:      reflect.TypeOf(StatusCode(0)),
		TypeQualifiedName:   reflect.TypeOf(QualifiedName{}),
		TypeLocalizedText:   reflect.TypeOf(LocalizedText{}),
		TypeExtensionObject: reflect.TypeOf((*ExtensionObject)(nil)),
		TypeDataValue:       reflect.TypeOf((*DataValue)(nil)),
		TypeVariant:         reflect.TypeOf(Variant{}),
		TypeDiagnosticInfo:  reflect.TypeOf((*DiagnosticInfo)(nil)),
		TypeEnumeration:     reflect.TypeOf(int32(0)),
		TypeNull:            typeEncodeable,
	}
)

// HostType returns the Go type used to hold a scalar of t. TypeNull maps to
// the Encodeable interface, the host of nested structures.
func (t BuiltInType) HostType() reflect.Type {
	return hostTypes[t]
}

// ZeroValue returns the default value of a scalar of type t.
func (t BuiltInType) ZeroValue() any {
	switch t {
	case TypeNull, TypeExtensionObject, TypeDataValue, TypeDiagnosticInfo:
		return nil
	case TypeByteString:
		return []byte(nil)
	case TypeVariant:
		return Variant{}
	}
	rt, ok := hostTypes[t]
	if !ok {
		return nil
	}
	return reflect.Zero(rt).Interface()
}

// TypeOf returns the built-in type whose host type matches v. Slices map to
// their element type, except []byte which is a ByteString.
func TypeOf(v any) BuiltInType {
	switch v.(type) {
	case nil:
		return TypeNull
	case []byte:
		return TypeByteString
	case Encodeable:
		return TypeExtensionObject
	}
	rt := reflect.TypeOf(v)
	if rt.Kind() == reflect.Slice {
		rt = rt.Elem()
	}
	for t, host := range hostTypes {
		if t == TypeEnumeration || t == TypeNull {
			continue
		}
		if host == rt {
			return t
		}
	}
	if rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8 {
		return TypeByteString
	}
	return TypeNull
}

func isSlice(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Slice
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
