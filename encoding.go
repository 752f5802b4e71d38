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
	"time"

	"github.com/google/uuid"
)

// NamespaceOPCUA is the XML namespace of the OPC UA base types.
const NamespaceOPCUA = "http://opcfoundation.org/UA/2008/02/Types.xsd"

// EncodingType identifies a wire encoding.
type EncodingType int

// Wire encodings.
const (
	EncodingBinary EncodingType = iota
	EncodingXML
)

// String returns the name of the encoding.
func (e EncodingType) String() string {
	switch e {
	case EncodingBinary:
		return "binary"
	case EncodingXML:
		return "xml"
	default:
		return "unknown"
	}
}

// Encodeable is a value that knows how to write itself to an Encoder and
// read itself back from a Decoder.
type Encodeable interface {
	TypeID() ExpandedNodeID
	BinaryEncodingID() ExpandedNodeID
	XMLEncodingID() ExpandedNodeID
	Encode(enc Encoder) error
	Decode(dec Decoder) error
}

// TypeNamer is implemented by encodeables that have an XML element name.
type TypeNamer interface {
	TypeName() string
}

// EncodeableFactory creates empty encodeables from an encoding or type id.
type EncodeableFactory interface {
	NewEncodeable(id ExpandedNodeID) (Encodeable, bool)
}

// Encoder writes named values to a wire encoding. Field names are ignored by
// the binary encoding and become element names in XML.
type Encoder interface {
	EncodingType() EncodingType
	// UseReversibleEncoding reports whether the encoding preserves every
	// detail needed to rebuild the value, as the binary encoding does.
	UseReversibleEncoding() bool
	PushNamespace(ns string)
	PopNamespace()

	WriteBoolean(name string, v bool)
	WriteSByte(name string, v int8)
	WriteByteValue(name string, v byte)
	WriteInt16(name string, v int16)
	WriteUInt16(name string, v uint16)
	WriteInt32(name string, v int32)
	WriteUInt32(name string, v uint32)
	WriteInt64(name string, v int64)
	WriteUInt64(name string, v uint64)
	WriteFloat(name string, v float32)
	WriteDouble(name string, v float64)
	WriteString(name string, v string)
	WriteDateTime(name string, v time.Time)
	WriteGUID(name string, v uuid.UUID)
	WriteByteString(name string, v []byte)
	WriteXMLElement(name string, v XMLElement)
	WriteNodeID(name string, v NodeID)
	WriteExpandedNodeID(name string, v ExpandedNodeID)
	WriteStatusCode(name string, v StatusCode)
	WriteQualifiedName(name string, v QualifiedName)
	WriteLocalizedText(name string, v LocalizedText)
	WriteExtensionObject(name string, v *ExtensionObject) error
	WriteDataValue(name string, v *DataValue) error
	WriteVariant(name string, v Variant) error
	WriteDiagnosticInfo(name string, v *DiagnosticInfo)

	// WriteEnumerated writes an enumerated value. symbol is the name of the
	// value and may be empty when unknown.
	WriteEnumerated(name string, v int32, symbol string)
	WriteEncodeable(name string, v Encodeable) error
	// WriteArray writes a slice (rank 1) or Matrix (rank >= 2) whose elements
	// have the host type of t.
	WriteArray(name string, v any, valueRank int32, t BuiltInType) error
}

// Decoder reads named values from a wire encoding.
type Decoder interface {
	EncodingType() EncodingType
	UseReversibleEncoding() bool
	PushNamespace(ns string)
	PopNamespace()
	// HasField reports whether the next value named name is present. The
	// binary decoder always reports true.
	HasField(name string) bool

	ReadBoolean(name string) (bool, error)
	ReadSByte(name string) (int8, error)
	ReadByteValue(name string) (byte, error)
	ReadInt16(name string) (int16, error)
	ReadUInt16(name string) (uint16, error)
	ReadInt32(name string) (int32, error)
	ReadUInt32(name string) (uint32, error)
	ReadInt64(name string) (int64, error)
	ReadUInt64(name string) (uint64, error)
	ReadFloat(name string) (float32, error)
	ReadDouble(name string) (float64, error)
	ReadString(name string) (string, error)
	ReadDateTime(name string) (time.Time, error)
	ReadGUID(name string) (uuid.UUID, error)
	ReadByteString(name string) ([]byte, error)
	ReadXMLElement(name string) (XMLElement, error)
	ReadNodeID(name string) (NodeID, error)
	ReadExpandedNodeID(name string) (ExpandedNodeID, error)
	ReadStatusCode(name string) (StatusCode, error)
	ReadQualifiedName(name string) (QualifiedName, error)
	ReadLocalizedText(name string) (LocalizedText, error)
	ReadExtensionObject(name string) (*ExtensionObject, error)
	ReadDataValue(name string) (*DataValue, error)
	ReadVariant(name string) (Variant, error)
	ReadDiagnosticInfo(name string) (*DiagnosticInfo, error)

	ReadEnumerated(name string) (int32, error)
	// ReadEncodeable decodes the value named name into v.
	ReadEncodeable(name string, v Encodeable) error
	// ReadArray reads a slice (rank 1) or Matrix (rank >= 2). newElem creates
	// the elements of TypeNull arrays and is ignored otherwise.
	ReadArray(name string, valueRank int32, t BuiltInType, newElem func() Encodeable) (any, error)
}
