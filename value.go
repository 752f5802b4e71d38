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
	"reflect"
	"time"

	"github.com/google/uuid"
)

// EncodeScalar writes a scalar host value as wire type t.
func EncodeScalar(enc Encoder, name string, t BuiltInType, v any) error {
	switch t {
	case TypeBoolean:
		x, ok := v.(bool)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteBoolean(name, x)
	case TypeSByte:
		x, ok := v.(int8)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteSByte(name, x)
	case TypeByte:
		x, ok := v.(byte)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteByteValue(name, x)
	case TypeInt16:
		x, ok := v.(int16)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteInt16(name, x)
	case TypeUInt16:
		x, ok := v.(uint16)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteUInt16(name, x)
	case TypeInt32:
		x, ok := v.(int32)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteInt32(name, x)
	case TypeUInt32:
		x, ok := v.(uint32)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteUInt32(name, x)
	case TypeInt64:
		x, ok := v.(int64)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteInt64(name, x)
	case TypeUInt64:
		x, ok := v.(uint64)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteUInt64(name, x)
	case TypeFloat:
		x, ok := v.(float32)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteFloat(name, x)
	case TypeDouble:
		x, ok := v.(float64)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteDouble(name, x)
	case TypeString:
		x, ok := v.(string)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteString(name, x)
	case TypeDateTime:
		x, ok := v.(time.Time)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteDateTime(name, x)
	case TypeGUID:
		x, ok := v.(uuid.UUID)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteGUID(name, x)
	case TypeByteString:
		x, ok := v.([]byte)
		if !ok && v != nil {
			return mismatch(name, t, v)
		}
		enc.WriteByteString(name, x)
	case TypeXMLElement:
		x, ok := v.(XMLElement)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteXMLElement(name, x)
	case TypeNodeID:
		x, ok := v.(NodeID)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteNodeID(name, x)
	case TypeExpandedNodeID:
		x, ok := v.(ExpandedNodeID)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteExpandedNodeID(name, x)
	case TypeStatusCode:
		x, ok := v.(StatusCode)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteStatusCode(name, x)
	case TypeQualifiedName:
		x, ok := v.(QualifiedName)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteQualifiedName(name, x)
	case TypeLocalizedText:
		x, ok := v.(LocalizedText)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteLocalizedText(name, x)
	case TypeExtensionObject:
		switch x := v.(type) {
		case nil:
			return enc.WriteExtensionObject(name, nil)
		case *ExtensionObject:
			return enc.WriteExtensionObject(name, x)
		case Encodeable:
			return enc.WriteExtensionObject(name, NewExtensionObject(x))
		default:
			return mismatch(name, t, v)
		}
	case TypeDataValue:
		x, ok := v.(*DataValue)
		if !ok && v != nil {
			return mismatch(name, t, v)
		}
		return enc.WriteDataValue(name, x)
	case TypeVariant:
		x, ok := v.(Variant)
		if !ok {
			if v != nil {
				return mismatch(name, t, v)
			}
		}
		return enc.WriteVariant(name, x)
	case TypeDiagnosticInfo:
		x, ok := v.(*DiagnosticInfo)
		if !ok && v != nil {
			return mismatch(name, t, v)
		}
		enc.WriteDiagnosticInfo(name, x)
	case TypeEnumeration:
		x, ok := toInt32(v)
		if !ok {
			return mismatch(name, t, v)
		}
		enc.WriteEnumerated(name, x, "")
	case TypeNull:
		x, ok := v.(Encodeable)
		if !ok {
			return mismatch(name, t, v)
		}
		return enc.WriteEncodeable(name, x)
	default:
		return EncodingError(name, "unsupported wire type %d", t)
	}
	return nil
}

// DecodeScalar reads a scalar of wire type t and returns its host value.
func DecodeScalar(dec Decoder, name string, t BuiltInType) (any, error) {
	switch t {
	case TypeBoolean:
		return dec.ReadBoolean(name)
	case TypeSByte:
		return dec.ReadSByte(name)
	case TypeByte:
		return dec.ReadByteValue(name)
	case TypeInt16:
		return dec.ReadInt16(name)
	case TypeUInt16:
		return dec.ReadUInt16(name)
	case TypeInt32:
		return dec.ReadInt32(name)
	case TypeUInt32:
		return dec.ReadUInt32(name)
	case TypeInt64:
		return dec.ReadInt64(name)
	case TypeUInt64:
		return dec.ReadUInt64(name)
	case TypeFloat:
		return dec.ReadFloat(name)
	case TypeDouble:
		return dec.ReadDouble(name)
	case TypeString:
		return dec.ReadString(name)
	case TypeDateTime:
		return dec.ReadDateTime(name)
	case TypeGUID:
		return dec.ReadGUID(name)
	case TypeByteString:
		return dec.ReadByteString(name)
	case TypeXMLElement:
		return dec.ReadXMLElement(name)
	case TypeNodeID:
		return dec.ReadNodeID(name)
	case TypeExpandedNodeID:
		return dec.ReadExpandedNodeID(name)
	case TypeStatusCode:
		return dec.ReadStatusCode(name)
	case TypeQualifiedName:
		return dec.ReadQualifiedName(name)
	case TypeLocalizedText:
		return dec.ReadLocalizedText(name)
	case TypeExtensionObject:
		return dec.ReadExtensionObject(name)
	case TypeDataValue:
		return dec.ReadDataValue(name)
	case TypeVariant:
		return dec.ReadVariant(name)
	case TypeDiagnosticInfo:
		return dec.ReadDiagnosticInfo(name)
	case TypeEnumeration:
		return dec.ReadEnumerated(name)
	default:
		return nil, DecodingError(name, "unsupported wire type %d", t)
	}
}

func mismatch(name string, t BuiltInType, v any) error {
	return &CodecError{
		StatusCode: StatusBadEncodingError,
		Field:      name,
		Message:    "cannot encode " + reflect.TypeOf(v).String() + " as " + t.String(),
		Err:        ErrTypeMismatch,
	}
}

// toInt32 converts any integer kind to int32, which lets named enum types be
// written as enumerations.
func toInt32(v any) (int32, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int32(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int32(rv.Uint()), true
	}
	return 0, false
}

// sliceElements returns the elements of a slice host value. A nil slice
// yields (nil, true).
func sliceElements(v any) ([]any, bool) {
	if v == nil {
		return nil, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	if rv.IsNil() {
		return nil, true
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// makeSlice builds a typed slice of t's host type from decoded elements.
func makeSlice(t BuiltInType, elems []any) any {
	host := t.HostType()
	if host == nil {
		return elems
	}
	rv := reflect.MakeSlice(reflect.SliceOf(host), len(elems), len(elems))
	for i, e := range elems {
		if e == nil {
			continue
		}
		rv.Index(i).Set(reflect.ValueOf(e))
	}
	return rv.Interface()
}

// nilSlice returns a typed nil slice of t's host type.
func nilSlice(t BuiltInType) any {
	host := t.HostType()
	if host == nil {
		return nil
	}
	return reflect.Zero(reflect.SliceOf(host)).Interface()
}
