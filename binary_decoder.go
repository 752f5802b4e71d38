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
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// BinaryDecoder reads the OPC UA binary encoding.
type BinaryDecoder struct {
	data  []byte
	pos   int
	opts  *codecOptions
	ns    []string
	depth int
}

// NewBinaryDecoder creates a new binary decoder over data.
func NewBinaryDecoder(data []byte, opts ...Option) *BinaryDecoder {
	return &BinaryDecoder{data: data, opts: applyOptions(opts)}
}

func (d *BinaryDecoder) nested(data []byte) *BinaryDecoder {
	return &BinaryDecoder{data: data, opts: d.opts, depth: d.depth}
}

// Remaining returns the number of remaining bytes.
func (d *BinaryDecoder) Remaining() int {
	return len(d.data) - d.pos
}

// EncodingType returns EncodingBinary.
func (d *BinaryDecoder) EncodingType() EncodingType { return EncodingBinary }

// UseReversibleEncoding returns true.
func (d *BinaryDecoder) UseReversibleEncoding() bool { return true }

// PushNamespace records ns; the binary encoding does not use it.
func (d *BinaryDecoder) PushNamespace(ns string) { d.ns = append(d.ns, ns) }

// PopNamespace drops the last pushed namespace.
func (d *BinaryDecoder) PopNamespace() {
	if len(d.ns) > 0 {
		d.ns = d.ns[:len(d.ns)-1]
	}
}

// HasField always returns true: every field is on the wire.
func (d *BinaryDecoder) HasField(string) bool { return true }

func (d *BinaryDecoder) take(name string, n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, fmt.Errorf("%w: unexpected end of data reading %q", ErrDecoding, name)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadBoolean reads a boolean value.
func (d *BinaryDecoder) ReadBoolean(name string) (bool, error) {
	b, err := d.take(name, 1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadSByte reads a signed byte value.
func (d *BinaryDecoder) ReadSByte(name string) (int8, error) {
	b, err := d.ReadByteValue(name)
	return int8(b), err
}

// ReadByteValue reads a byte value.
func (d *BinaryDecoder) ReadByteValue(name string) (byte, error) {
	b, err := d.take(name, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt16 reads an int16 value.
func (d *BinaryDecoder) ReadInt16(name string) (int16, error) {
	v, err := d.ReadUInt16(name)
	return int16(v), err
}

// ReadUInt16 reads a uint16 value.
func (d *BinaryDecoder) ReadUInt16(name string) (uint16, error) {
	b, err := d.take(name, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadInt32 reads an int32 value.
func (d *BinaryDecoder) ReadInt32(name string) (int32, error) {
	v, err := d.ReadUInt32(name)
	return int32(v), err
}

// ReadUInt32 reads a uint32 value.
func (d *BinaryDecoder) ReadUInt32(name string) (uint32, error) {
	b, err := d.take(name, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt64 reads an int64 value.
func (d *BinaryDecoder) ReadInt64(name string) (int64, error) {
	v, err := d.ReadUInt64(name)
	return int64(v), err
}

// ReadUInt64 reads a uint64 value.
func (d *BinaryDecoder) ReadUInt64(name string) (uint64, error) {
	b, err := d.take(name, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadFloat reads a float32 value.
func (d *BinaryDecoder) ReadFloat(name string) (float32, error) {
	v, err := d.ReadUInt32(name)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadDouble reads a float64 value.
func (d *BinaryDecoder) ReadDouble(name string) (float64, error) {
	v, err := d.ReadUInt64(name)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (d *BinaryDecoder) readLength(name string, limit int) (int, error) {
	n, err := d.ReadInt32(name)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return -1, nil
	}
	if limit > 0 && int(n) > limit {
		return 0, &CodecError{
			StatusCode: StatusBadEncodingLimitsExceeded,
			Field:      name,
			Message:    fmt.Sprintf("length %d exceeds limit %d", n, limit),
			Err:        ErrLimitsExceeded,
		}
	}
	return int(n), nil
}

// ReadString reads a string value. A null string decodes as "".
func (d *BinaryDecoder) ReadString(name string) (string, error) {
	n, err := d.readLength(name, d.opts.maxStringLength)
	if err != nil || n < 0 {
		return "", err
	}
	b, err := d.take(name, n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadDateTime reads a DateTime value.
func (d *BinaryDecoder) ReadDateTime(name string) (time.Time, error) {
	ticks, err := d.ReadInt64(name)
	if err != nil {
		return time.Time{}, err
	}
	return fromTicks(ticks), nil
}

// ReadGUID reads a GUID value.
func (d *BinaryDecoder) ReadGUID(name string) (uuid.UUID, error) {
	var g uuid.UUID
	b, err := d.take(name, 16)
	if err != nil {
		return g, err
	}
	binary.BigEndian.PutUint32(g[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(g[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(g[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(g[8:], b[8:16])
	return g, nil
}

// ReadByteString reads a byte string value.
func (d *BinaryDecoder) ReadByteString(name string) ([]byte, error) {
	n, err := d.readLength(name, d.opts.maxStringLength)
	if err != nil || n < 0 {
		return nil, err
	}
	b, err := d.take(name, n)
	if err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, b)
	return v, nil
}

// ReadXMLElement reads an XML element value.
func (d *BinaryDecoder) ReadXMLElement(name string) (XMLElement, error) {
	b, err := d.ReadByteString(name)
	return XMLElement(b), err
}

// ReadNodeID reads a NodeID value.
func (d *BinaryDecoder) ReadNodeID(name string) (NodeID, error) {
	id, _, err := d.readNodeID(name)
	return id, err
}

func (d *BinaryDecoder) readNodeID(name string) (NodeID, byte, error) {
	encodingByte, err := d.ReadByteValue(name)
	if err != nil {
		return NodeID{}, 0, err
	}
	flags := encodingByte & 0xC0

	switch encodingByte & 0x0F {
	case 0x00:
		id, err := d.ReadByteValue(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		return NewNumericNodeID(0, uint32(id)), flags, nil

	case 0x01:
		ns, err := d.ReadByteValue(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		id, err := d.ReadUInt16(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		return NewNumericNodeID(uint16(ns), uint32(id)), flags, nil

	case 0x02:
		ns, err := d.ReadUInt16(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		id, err := d.ReadUInt32(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		return NewNumericNodeID(ns, id), flags, nil

	case 0x03:
		ns, err := d.ReadUInt16(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		s, err := d.ReadString(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		return NewStringNodeID(ns, s), flags, nil

	case 0x04:
		ns, err := d.ReadUInt16(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		g, err := d.ReadGUID(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		return NewGUIDNodeID(ns, g), flags, nil

	case 0x05:
		ns, err := d.ReadUInt16(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		b, err := d.ReadByteString(name)
		if err != nil {
			return NodeID{}, 0, err
		}
		return NewOpaqueNodeID(ns, b), flags, nil

	default:
		return NodeID{}, 0, fmt.Errorf("%w: unknown NodeID encoding 0x%02X in %q", ErrDecoding, encodingByte, name)
	}
}

// ReadExpandedNodeID reads an ExpandedNodeID value.
func (d *BinaryDecoder) ReadExpandedNodeID(name string) (ExpandedNodeID, error) {
	id, flags, err := d.readNodeID(name)
	if err != nil {
		return ExpandedNodeID{}, err
	}
	out := ExpandedNodeID{NodeID: id}
	if flags&expandedNodeIDNamespaceURI != 0 {
		if out.NamespaceURI, err = d.ReadString(name); err != nil {
			return ExpandedNodeID{}, err
		}
	}
	if flags&expandedNodeIDServerIndex != 0 {
		if out.ServerIndex, err = d.ReadUInt32(name); err != nil {
			return ExpandedNodeID{}, err
		}
	}
	return out, nil
}

// ReadStatusCode reads a StatusCode value.
func (d *BinaryDecoder) ReadStatusCode(name string) (StatusCode, error) {
	v, err := d.ReadUInt32(name)
	return StatusCode(v), err
}

// ReadQualifiedName reads a QualifiedName value.
func (d *BinaryDecoder) ReadQualifiedName(name string) (QualifiedName, error) {
	ns, err := d.ReadUInt16(name)
	if err != nil {
		return QualifiedName{}, err
	}
	s, err := d.ReadString(name)
	if err != nil {
		return QualifiedName{}, err
	}
	return QualifiedName{NamespaceIndex: ns, Name: s}, nil
}

// ReadLocalizedText reads a LocalizedText value.
func (d *BinaryDecoder) ReadLocalizedText(name string) (LocalizedText, error) {
	mask, err := d.ReadByteValue(name)
	if err != nil {
		return LocalizedText{}, err
	}
	var lt LocalizedText
	if mask&localizedTextLocale != 0 {
		if lt.Locale, err = d.ReadString(name); err != nil {
			return LocalizedText{}, err
		}
	}
	if mask&localizedTextText != 0 {
		if lt.Text, err = d.ReadString(name); err != nil {
			return LocalizedText{}, err
		}
	}
	return lt, nil
}

// ReadExtensionObject reads an ExtensionObject. Bodies whose encoding id is
// known to the factory are decoded; others are kept as raw bytes.
func (d *BinaryDecoder) ReadExtensionObject(name string) (*ExtensionObject, error) {
	id, err := d.ReadNodeID(name)
	if err != nil {
		return nil, err
	}
	enc, err := d.ReadByteValue(name)
	if err != nil {
		return nil, err
	}
	typeID := NewExpandedNodeID(id)

	switch enc {
	case ExtensionObjectEmpty:
		if id.IsNull() {
			return nil, nil
		}
		return &ExtensionObject{TypeID: typeID}, nil

	case ExtensionObjectBinary:
		body, err := d.ReadByteString(name)
		if err != nil {
			return nil, err
		}
		if d.opts.factory != nil {
			if v, ok := d.opts.factory.NewEncodeable(typeID); ok {
				inner := d.nested(body)
				if err := inner.ReadEncodeable(name, v); err != nil {
					return nil, err
				}
				return &ExtensionObject{TypeID: v.TypeID(), Body: v}, nil
			}
		}
		return &ExtensionObject{TypeID: typeID, Body: body}, nil

	case ExtensionObjectXML:
		body, err := d.ReadByteString(name)
		if err != nil {
			return nil, err
		}
		return &ExtensionObject{TypeID: typeID, Body: XMLElement(body)}, nil

	default:
		return nil, DecodingError(name, "invalid extension object encoding 0x%02X", enc)
	}
}

// ReadDataValue reads a DataValue value.
func (d *BinaryDecoder) ReadDataValue(name string) (*DataValue, error) {
	mask, err := d.ReadByteValue(name)
	if err != nil {
		return nil, err
	}

	dv := &DataValue{}
	if mask&dataValueValue != 0 {
		v, err := d.ReadVariant(name)
		if err != nil {
			return nil, err
		}
		dv.Value = &v
	}
	if mask&dataValueStatusCode != 0 {
		if dv.StatusCode, err = d.ReadStatusCode(name); err != nil {
			return nil, err
		}
	}
	if mask&dataValueSourceTimestamp != 0 {
		if dv.SourceTimestamp, err = d.ReadDateTime(name); err != nil {
			return nil, err
		}
	}
	if mask&dataValueSourcePicoseconds != 0 {
		if dv.SourcePicoseconds, err = d.ReadUInt16(name); err != nil {
			return nil, err
		}
	}
	if mask&dataValueServerTimestamp != 0 {
		if dv.ServerTimestamp, err = d.ReadDateTime(name); err != nil {
			return nil, err
		}
	}
	if mask&dataValueServerPicoseconds != 0 {
		if dv.ServerPicoseconds, err = d.ReadUInt16(name); err != nil {
			return nil, err
		}
	}
	return dv, nil
}

// ReadVariant reads a Variant value.
func (d *BinaryDecoder) ReadVariant(name string) (Variant, error) {
	mask, err := d.ReadByteValue(name)
	if err != nil {
		return Variant{}, err
	}
	t := BuiltInType(mask & variantTypeMask)
	if t > TypeDiagnosticInfo {
		return Variant{}, DecodingError(name, "invalid variant type %d", t)
	}
	if t == TypeNull {
		return Variant{}, nil
	}
	if d.depth >= d.opts.maxDepth {
		return Variant{}, &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
	}
	d.depth++
	defer func() { d.depth-- }()

	if mask&variantArray == 0 {
		v, err := DecodeScalar(d, name, t)
		if err != nil {
			return Variant{}, err
		}
		return Variant{Type: t, Value: v}, nil
	}

	n, err := d.readLength(name, d.opts.maxArrayLength)
	if err != nil {
		return Variant{}, err
	}
	var value any = nilSlice(t)
	if n >= 0 {
		elems := make([]any, n)
		for i := range elems {
			if elems[i], err = DecodeScalar(d, name, t); err != nil {
				return Variant{}, err
			}
		}
		value = makeSlice(t, elems)
	}

	if mask&variantDimensions != 0 {
		dims, err := d.readDimensions(name)
		if err != nil {
			return Variant{}, err
		}
		m := Matrix{Dimensions: dims, Elements: value}
		if m.Len() < 0 {
			return Variant{}, &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "matrix too large", Err: ErrLimitsExceeded}
		}
		if m.Len() != max(n, 0) {
			return Variant{}, DecodingError(name, "array length %d does not match dimensions %v", n, dims)
		}
		value = m
	}
	return Variant{Type: t, Value: value}, nil
}

func (d *BinaryDecoder) readDimensions(name string) ([]int32, error) {
	n, err := d.readLength(name, d.opts.maxArrayLength)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	dims := make([]int32, n)
	for i := range dims {
		if dims[i], err = d.ReadInt32(name); err != nil {
			return nil, err
		}
	}
	return dims, nil
}

// ReadDiagnosticInfo reads a DiagnosticInfo value. Absent indexes decode as -1.
func (d *BinaryDecoder) ReadDiagnosticInfo(name string) (*DiagnosticInfo, error) {
	mask, err := d.ReadByteValue(name)
	if err != nil {
		return nil, err
	}
	if mask == 0 {
		return nil, nil
	}
	di := &DiagnosticInfo{SymbolicID: -1, NamespaceURI: -1, Locale: -1, LocalizedText: -1}
	if mask&diagSymbolicID != 0 {
		if di.SymbolicID, err = d.ReadInt32(name); err != nil {
			return nil, err
		}
	}
	if mask&diagNamespaceURI != 0 {
		if di.NamespaceURI, err = d.ReadInt32(name); err != nil {
			return nil, err
		}
	}
	if mask&diagLocale != 0 {
		if di.Locale, err = d.ReadInt32(name); err != nil {
			return nil, err
		}
	}
	if mask&diagLocalizedText != 0 {
		if di.LocalizedText, err = d.ReadInt32(name); err != nil {
			return nil, err
		}
	}
	if mask&diagAdditionalInfo != 0 {
		if di.AdditionalInfo, err = d.ReadString(name); err != nil {
			return nil, err
		}
	}
	if mask&diagInnerStatus != 0 {
		if di.InnerStatusCode, err = d.ReadStatusCode(name); err != nil {
			return nil, err
		}
	}
	if mask&diagInnerDiag != 0 {
		if d.depth >= d.opts.maxDepth {
			return nil, &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
		}
		d.depth++
		di.InnerDiagnosticInfo, err = d.ReadDiagnosticInfo(name)
		d.depth--
		if err != nil {
			return nil, err
		}
	}
	return di, nil
}

// ReadEnumerated reads an enumerated value.
func (d *BinaryDecoder) ReadEnumerated(name string) (int32, error) {
	return d.ReadInt32(name)
}

// ReadEncodeable decodes the fields of v in place.
func (d *BinaryDecoder) ReadEncodeable(name string, v Encodeable) error {
	if v == nil {
		return DecodingError(name, "nil encodeable")
	}
	if d.depth >= d.opts.maxDepth {
		return &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
	}
	d.depth++
	defer func() { d.depth-- }()
	return v.Decode(d)
}

// ReadArray reads a one-dimensional array or a matrix.
func (d *BinaryDecoder) ReadArray(name string, valueRank int32, t BuiltInType, newElem func() Encodeable) (any, error) {
	if valueRank < ValueRankOneDimension {
		return nil, DecodingError(name, "unsupported value rank %d", valueRank)
	}

	count := 0
	var dims []int32
	if valueRank == ValueRankOneDimension {
		n, err := d.readLength(name, d.opts.maxArrayLength)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nilSlice(t), nil
		}
		count = n
	} else {
		var err error
		if dims, err = d.readDimensions(name); err != nil {
			return nil, err
		}
		if dims == nil {
			return nil, nil
		}
		count = Matrix{Dimensions: dims}.Len()
		if count < 0 || (d.opts.maxArrayLength > 0 && count > d.opts.maxArrayLength) {
			return nil, &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "matrix too large", Err: ErrLimitsExceeded}
		}
	}

	elems := make([]any, count)
	for i := range elems {
		if t == TypeNull {
			if newElem == nil {
				return nil, DecodingError(name, "no element factory for structure array")
			}
			el := newElem()
			if err := d.ReadEncodeable(name, el); err != nil {
				return nil, err
			}
			elems[i] = el
			continue
		}
		v, err := DecodeScalar(d, name, t)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}

	if dims != nil {
		return Matrix{Dimensions: dims, Elements: makeSlice(t, elems)}, nil
	}
	return makeSlice(t, elems), nil
}
