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
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"
)

// epochDiff is the number of 100-ns intervals from 1601-01-01 to 1970-01-01.
const epochDiff = 116444736000000000

// Encoding mask bits shared by the binary encoder and decoder.
const (
	expandedNodeIDNamespaceURI byte = 0x80
	expandedNodeIDServerIndex  byte = 0x40

	localizedTextLocale byte = 0x01
	localizedTextText   byte = 0x02

	dataValueValue             byte = 0x01
	dataValueStatusCode        byte = 0x02
	dataValueSourceTimestamp   byte = 0x04
	dataValueServerTimestamp   byte = 0x08
	dataValueSourcePicoseconds byte = 0x10
	dataValueServerPicoseconds byte = 0x20

	variantTypeMask   byte = 0x3F
	variantDimensions byte = 0x40
	variantArray      byte = 0x80

	diagSymbolicID     byte = 0x01
	diagNamespaceURI   byte = 0x02
	diagLocalizedText  byte = 0x04
	diagLocale         byte = 0x08
	diagAdditionalInfo byte = 0x10
	diagInnerStatus    byte = 0x20
	diagInnerDiag      byte = 0x40
)

// BinaryEncoder writes the OPC UA binary encoding.
type BinaryEncoder struct {
	buf   *bytes.Buffer
	opts  *codecOptions
	ns    []string
	depth int
}

// NewBinaryEncoder creates a new binary encoder.
func NewBinaryEncoder(opts ...Option) *BinaryEncoder {
	return &BinaryEncoder{buf: new(bytes.Buffer), opts: applyOptions(opts)}
}

func (e *BinaryEncoder) nested() *BinaryEncoder {
	return &BinaryEncoder{buf: new(bytes.Buffer), opts: e.opts, depth: e.depth}
}

// Bytes returns the encoded bytes.
func (e *BinaryEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Reset resets the encoder.
func (e *BinaryEncoder) Reset() {
	e.buf.Reset()
	e.ns = e.ns[:0]
	e.depth = 0
}

// EncodingType returns EncodingBinary.
func (e *BinaryEncoder) EncodingType() EncodingType { return EncodingBinary }

// UseReversibleEncoding returns true.
func (e *BinaryEncoder) UseReversibleEncoding() bool { return true }

// PushNamespace records ns; the binary encoding does not use it.
func (e *BinaryEncoder) PushNamespace(ns string) { e.ns = append(e.ns, ns) }

// PopNamespace drops the last pushed namespace.
func (e *BinaryEncoder) PopNamespace() {
	if len(e.ns) > 0 {
		e.ns = e.ns[:len(e.ns)-1]
	}
}

// WriteBoolean writes a boolean value.
func (e *BinaryEncoder) WriteBoolean(_ string, v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

// WriteSByte writes a signed byte value.
func (e *BinaryEncoder) WriteSByte(_ string, v int8) {
	e.buf.WriteByte(byte(v))
}

// WriteByteValue writes a byte value.
func (e *BinaryEncoder) WriteByteValue(_ string, v byte) {
	e.buf.WriteByte(v)
}

// WriteInt16 writes an int16 value.
func (e *BinaryEncoder) WriteInt16(name string, v int16) {
	e.WriteUInt16(name, uint16(v))
}

// WriteUInt16 writes a uint16 value.
func (e *BinaryEncoder) WriteUInt16(_ string, v uint16) {
	e.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

// WriteInt32 writes an int32 value.
func (e *BinaryEncoder) WriteInt32(name string, v int32) {
	e.WriteUInt32(name, uint32(v))
}

// WriteUInt32 writes a uint32 value.
func (e *BinaryEncoder) WriteUInt32(_ string, v uint32) {
	e.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

// WriteInt64 writes an int64 value.
func (e *BinaryEncoder) WriteInt64(name string, v int64) {
	e.WriteUInt64(name, uint64(v))
}

// WriteUInt64 writes a uint64 value.
func (e *BinaryEncoder) WriteUInt64(_ string, v uint64) {
	e.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
}

// WriteFloat writes a float32 value.
func (e *BinaryEncoder) WriteFloat(name string, v float32) {
	e.WriteUInt32(name, math.Float32bits(v))
}

// WriteDouble writes a float64 value.
func (e *BinaryEncoder) WriteDouble(name string, v float64) {
	e.WriteUInt64(name, math.Float64bits(v))
}

// WriteString writes a string value. The empty string is written as null.
func (e *BinaryEncoder) WriteString(name string, v string) {
	if v == "" {
		e.WriteInt32(name, -1)
		return
	}
	e.WriteInt32(name, int32(len(v)))
	e.buf.WriteString(v)
}

// WriteDateTime writes a DateTime value.
func (e *BinaryEncoder) WriteDateTime(name string, t time.Time) {
	e.WriteInt64(name, toTicks(t))
}

// WriteGUID writes a GUID value as Data1, Data2, Data3 little-endian followed by Data4.
func (e *BinaryEncoder) WriteGUID(name string, v uuid.UUID) {
	e.WriteUInt32(name, binary.BigEndian.Uint32(v[0:4]))
	e.WriteUInt16(name, binary.BigEndian.Uint16(v[4:6]))
	e.WriteUInt16(name, binary.BigEndian.Uint16(v[6:8]))
	e.buf.Write(v[8:16])
}

// WriteByteString writes a byte string value.
func (e *BinaryEncoder) WriteByteString(name string, v []byte) {
	if v == nil {
		e.WriteInt32(name, -1)
		return
	}
	e.WriteInt32(name, int32(len(v)))
	e.buf.Write(v)
}

// WriteXMLElement writes an XML element as a UTF-8 byte string.
func (e *BinaryEncoder) WriteXMLElement(name string, v XMLElement) {
	if v == "" {
		e.WriteInt32(name, -1)
		return
	}
	e.WriteByteString(name, []byte(v))
}

// WriteNodeID writes a NodeID value using the most compact form.
func (e *BinaryEncoder) WriteNodeID(_ string, n NodeID) {
	e.writeNodeID(n, 0)
}

func (e *BinaryEncoder) writeNodeID(n NodeID, flags byte) {
	switch n.Type {
	case NodeIDTypeNumeric:
		switch {
		case n.Namespace == 0 && n.Numeric <= 255:
			e.buf.WriteByte(0x00 | flags)
			e.buf.WriteByte(byte(n.Numeric))
		case n.Namespace <= 255 && n.Numeric <= 65535:
			e.buf.WriteByte(0x01 | flags)
			e.buf.WriteByte(byte(n.Namespace))
			e.WriteUInt16("", uint16(n.Numeric))
		default:
			e.buf.WriteByte(0x02 | flags)
			e.WriteUInt16("", n.Namespace)
			e.WriteUInt32("", n.Numeric)
		}
	case NodeIDTypeString:
		e.buf.WriteByte(0x03 | flags)
		e.WriteUInt16("", n.Namespace)
		e.WriteString("", n.String)
	case NodeIDTypeGUID:
		e.buf.WriteByte(0x04 | flags)
		e.WriteUInt16("", n.Namespace)
		e.WriteGUID("", n.GUID)
	case NodeIDTypeOpaque:
		e.buf.WriteByte(0x05 | flags)
		e.WriteUInt16("", n.Namespace)
		e.WriteByteString("", n.Opaque)
	}
}

// WriteExpandedNodeID writes an ExpandedNodeID value.
func (e *BinaryEncoder) WriteExpandedNodeID(_ string, n ExpandedNodeID) {
	var flags byte
	if n.NamespaceURI != "" {
		flags |= expandedNodeIDNamespaceURI
	}
	if n.ServerIndex != 0 {
		flags |= expandedNodeIDServerIndex
	}
	e.writeNodeID(n.NodeID, flags)
	if n.NamespaceURI != "" {
		e.WriteString("", n.NamespaceURI)
	}
	if n.ServerIndex != 0 {
		e.WriteUInt32("", n.ServerIndex)
	}
}

// WriteStatusCode writes a StatusCode value.
func (e *BinaryEncoder) WriteStatusCode(name string, s StatusCode) {
	e.WriteUInt32(name, uint32(s))
}

// WriteQualifiedName writes a QualifiedName value.
func (e *BinaryEncoder) WriteQualifiedName(name string, q QualifiedName) {
	e.WriteUInt16(name, q.NamespaceIndex)
	e.WriteString(name, q.Name)
}

// WriteLocalizedText writes a LocalizedText value.
func (e *BinaryEncoder) WriteLocalizedText(name string, l LocalizedText) {
	var mask byte
	if l.Locale != "" {
		mask |= localizedTextLocale
	}
	if l.Text != "" {
		mask |= localizedTextText
	}
	e.buf.WriteByte(mask)
	if l.Locale != "" {
		e.WriteString(name, l.Locale)
	}
	if l.Text != "" {
		e.WriteString(name, l.Text)
	}
}

// WriteExtensionObject writes the type id, the body encoding byte and the
// length-prefixed body.
func (e *BinaryEncoder) WriteExtensionObject(name string, v *ExtensionObject) error {
	if v.IsNull() {
		var id NodeID
		if v != nil {
			id = v.TypeID.NodeID
		}
		e.writeNodeID(id, 0)
		e.buf.WriteByte(ExtensionObjectEmpty)
		return nil
	}

	switch body := v.Body.(type) {
	case Encodeable:
		id := body.BinaryEncodingID()
		if id.IsNull() {
			id = v.TypeID
		}
		inner := e.nested()
		if err := inner.WriteEncodeable(name, body); err != nil {
			return err
		}
		e.writeNodeID(id.NodeID, 0)
		e.buf.WriteByte(ExtensionObjectBinary)
		e.WriteByteString(name, inner.Bytes())
	case []byte:
		e.writeNodeID(v.TypeID.NodeID, 0)
		e.buf.WriteByte(ExtensionObjectBinary)
		e.WriteByteString(name, body)
	case XMLElement:
		e.writeNodeID(v.TypeID.NodeID, 0)
		e.buf.WriteByte(ExtensionObjectXML)
		e.WriteByteString(name, []byte(body))
	default:
		return EncodingError(name, "unsupported extension object body %T", v.Body)
	}
	return nil
}

// WriteDataValue writes a DataValue value.
func (e *BinaryEncoder) WriteDataValue(name string, v *DataValue) error {
	if v == nil {
		e.buf.WriteByte(0)
		return nil
	}
	var mask byte
	if v.Value != nil && !v.Value.IsNull() {
		mask |= dataValueValue
	}
	if v.StatusCode != StatusGood {
		mask |= dataValueStatusCode
	}
	if !v.SourceTimestamp.IsZero() {
		mask |= dataValueSourceTimestamp
	}
	if v.SourcePicoseconds != 0 {
		mask |= dataValueSourcePicoseconds
	}
	if !v.ServerTimestamp.IsZero() {
		mask |= dataValueServerTimestamp
	}
	if v.ServerPicoseconds != 0 {
		mask |= dataValueServerPicoseconds
	}
	e.buf.WriteByte(mask)

	if mask&dataValueValue != 0 {
		if err := e.WriteVariant(name, *v.Value); err != nil {
			return err
		}
	}
	if mask&dataValueStatusCode != 0 {
		e.WriteStatusCode(name, v.StatusCode)
	}
	if mask&dataValueSourceTimestamp != 0 {
		e.WriteDateTime(name, v.SourceTimestamp)
	}
	if mask&dataValueSourcePicoseconds != 0 {
		e.WriteUInt16(name, v.SourcePicoseconds)
	}
	if mask&dataValueServerTimestamp != 0 {
		e.WriteDateTime(name, v.ServerTimestamp)
	}
	if mask&dataValueServerPicoseconds != 0 {
		e.WriteUInt16(name, v.ServerPicoseconds)
	}
	return nil
}

// WriteVariant writes a Variant value.
func (e *BinaryEncoder) WriteVariant(name string, v Variant) error {
	if v.IsNull() {
		e.buf.WriteByte(byte(TypeNull))
		return nil
	}
	if e.depth >= e.opts.maxDepth {
		return &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
	}
	e.depth++
	defer func() { e.depth-- }()

	t := v.Type
	if t == TypeEnumeration {
		t = TypeInt32
	}
	array, elems, dims, err := variantShape(name, v)
	if err != nil {
		return err
	}

	mask := byte(t) & variantTypeMask
	if !array {
		e.buf.WriteByte(mask)
		return EncodeScalar(e, name, variantElemType(v.Type), v.Value)
	}

	mask |= variantArray
	if len(dims) > 1 {
		mask |= variantDimensions
	}
	e.buf.WriteByte(mask)
	e.WriteInt32(name, int32(len(elems)))
	for _, el := range elems {
		if err := EncodeScalar(e, name, variantElemType(v.Type), el); err != nil {
			return err
		}
	}
	if len(dims) > 1 {
		e.WriteInt32(name, int32(len(dims)))
		for _, d := range dims {
			e.WriteInt32(name, d)
		}
	}
	return nil
}

// WriteDiagnosticInfo writes a DiagnosticInfo value. Negative indexes are
// treated as absent.
func (e *BinaryEncoder) WriteDiagnosticInfo(name string, v *DiagnosticInfo) {
	if v == nil {
		e.buf.WriteByte(0)
		return
	}
	var mask byte
	if v.SymbolicID >= 0 {
		mask |= diagSymbolicID
	}
	if v.NamespaceURI >= 0 {
		mask |= diagNamespaceURI
	}
	if v.LocalizedText >= 0 {
		mask |= diagLocalizedText
	}
	if v.Locale >= 0 {
		mask |= diagLocale
	}
	if v.AdditionalInfo != "" {
		mask |= diagAdditionalInfo
	}
	if v.InnerStatusCode != StatusGood {
		mask |= diagInnerStatus
	}
	if v.InnerDiagnosticInfo != nil {
		mask |= diagInnerDiag
	}
	e.buf.WriteByte(mask)

	if mask&diagSymbolicID != 0 {
		e.WriteInt32(name, v.SymbolicID)
	}
	if mask&diagNamespaceURI != 0 {
		e.WriteInt32(name, v.NamespaceURI)
	}
	if mask&diagLocale != 0 {
		e.WriteInt32(name, v.Locale)
	}
	if mask&diagLocalizedText != 0 {
		e.WriteInt32(name, v.LocalizedText)
	}
	if mask&diagAdditionalInfo != 0 {
		e.WriteString(name, v.AdditionalInfo)
	}
	if mask&diagInnerStatus != 0 {
		e.WriteStatusCode(name, v.InnerStatusCode)
	}
	if mask&diagInnerDiag != 0 {
		e.WriteDiagnosticInfo(name, v.InnerDiagnosticInfo)
	}
}

// WriteEnumerated writes an enumerated value as an Int32.
func (e *BinaryEncoder) WriteEnumerated(name string, v int32, _ string) {
	e.WriteInt32(name, v)
}

// WriteEncodeable writes the fields of v in place.
func (e *BinaryEncoder) WriteEncodeable(name string, v Encodeable) error {
	if v == nil {
		return EncodingError(name, "nil encodeable")
	}
	if e.depth >= e.opts.maxDepth {
		return &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
	}
	e.depth++
	defer func() { e.depth-- }()
	return v.Encode(e)
}

// WriteArray writes a one-dimensional array as a length followed by the
// elements, and a matrix as its Int32 dimensions followed by the elements.
func (e *BinaryEncoder) WriteArray(name string, v any, valueRank int32, t BuiltInType) error {
	if valueRank < ValueRankOneDimension {
		return EncodingError(name, "unsupported value rank %d", valueRank)
	}

	if valueRank == ValueRankOneDimension {
		elems, ok := sliceElements(v)
		if !ok {
			return mismatch(name, t, v)
		}
		if elems == nil {
			e.WriteInt32(name, -1)
			return nil
		}
		e.WriteInt32(name, int32(len(elems)))
		return e.writeElements(name, elems, t)
	}

	m, ok := asMatrix(v)
	if !ok {
		return mismatch(name, t, v)
	}
	if m == nil {
		e.WriteInt32(name, -1)
		return nil
	}
	if len(m.Dimensions) != int(valueRank) {
		return EncodingError(name, "matrix has %d dimensions, want %d", len(m.Dimensions), valueRank)
	}
	elems, ok := sliceElements(m.Elements)
	if !ok || len(elems) != m.Len() {
		return EncodingError(name, "matrix elements do not match dimensions %v", m.Dimensions)
	}
	e.WriteInt32(name, int32(len(m.Dimensions)))
	for _, d := range m.Dimensions {
		e.WriteInt32(name, d)
	}
	return e.writeElements(name, elems, t)
}

func (e *BinaryEncoder) writeElements(name string, elems []any, t BuiltInType) error {
	for _, el := range elems {
		if err := EncodeScalar(e, name, t, el); err != nil {
			return err
		}
	}
	return nil
}

func toTicks(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	ticks := t.UnixNano()/100 + epochDiff
	if t.Unix() < -epochDiff/10000000 || ticks < 0 {
		return 0
	}
	return ticks
}

func fromTicks(ticks int64) time.Time {
	if ticks <= 0 {
		return time.Time{}
	}
	return time.Unix(0, (ticks-epochDiff)*100).UTC()
}

func asMatrix(v any) (*Matrix, bool) {
	switch m := v.(type) {
	case nil:
		return nil, true
	case Matrix:
		return &m, true
	case *Matrix:
		return m, true
	}
	return nil, false
}

// variantShape reports whether a variant holds an array, and returns its
// elements and dimensions.
func variantShape(name string, v Variant) (bool, []any, []int32, error) {
	if m, ok := v.Value.(Matrix); ok {
		elems, ok := sliceElements(m.Elements)
		if !ok || len(elems) != m.Len() {
			return false, nil, nil, EncodingError(name, "matrix elements do not match dimensions %v", m.Dimensions)
		}
		return true, elems, m.Dimensions, nil
	}
	if v.Type == TypeByteString {
		if _, ok := v.Value.([]byte); ok {
			return false, nil, nil, nil
		}
	}
	if isSlice(v.Value) {
		elems, _ := sliceElements(v.Value)
		return true, elems, nil, nil
	}
	return false, nil, nil, nil
}

// variantElemType maps the variant type tag to the element wire type.
func variantElemType(t BuiltInType) BuiltInType {
	if t == TypeEnumeration {
		return TypeInt32
	}
	return t
}
