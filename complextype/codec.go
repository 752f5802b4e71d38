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

package complextype

import (
	"github.com/edgeo-scada/uacodec"
)

// Wire names of the structure headers.
const (
	encodingMaskName = "EncodingMask"
	switchFieldName  = "SwitchField"
	unionValueName   = "Value"
	unionNullText    = "null"
)

// Encode writes the record fields in schema order.
//
// A StructureWithOptionalFields is prefixed with its encoding mask and skips
// absent optional fields. A Union is written as its switch field followed by
// the active arm under the name "Value". Non-reversible encodings such as
// XML omit both headers: the mask is implied by which elements are present
// and the active union arm is written under its own name.
func (r *Record) Encode(enc uacodec.Encoder) error {
	enc.PushNamespace(r.schema.Namespace)
	defer enc.PopNamespace()

	if r.schema.Kind == Union {
		return r.encodeUnion(enc)
	}

	mask := r.encodingMask & r.schema.optionMask
	if r.schema.Kind == StructureWithOptionalFields && enc.UseReversibleEncoding() {
		enc.WriteUInt32(encodingMaskName, mask)
	}
	for _, f := range r.schema.fields {
		if f.maskBit != 0 && mask&f.maskBit == 0 {
			continue
		}
		if err := encodeField(enc, f.Name, f, r.valueOf(f)); err != nil {
			return uacodec.WrapField(f.Name, err)
		}
	}
	return nil
}

func (r *Record) encodeUnion(enc uacodec.Encoder) error {
	sw := r.switchField
	if int(sw) > len(r.schema.fields) {
		return uacodec.EncodingError(switchFieldName, "switch field %d out of range for %s", sw, r.schema.Name)
	}

	if enc.UseReversibleEncoding() {
		enc.WriteUInt32(switchFieldName, sw)
		if sw == 0 {
			return nil
		}
		f := r.schema.fields[sw-1]
		return uacodec.WrapField(f.Name, encodeField(enc, unionValueName, f, r.valueOf(f)))
	}

	if sw == 0 {
		enc.WriteString(unionValueName, unionNullText)
		return nil
	}
	f := r.schema.fields[sw-1]
	return uacodec.WrapField(f.Name, encodeField(enc, f.Name, f, r.valueOf(f)))
}

func encodeField(enc uacodec.Encoder, name string, f *Field, v any) error {
	switch {
	case f.IsArray():
		return enc.WriteArray(name, v, f.ValueRank, f.ElementType())
	case f.Nested != nil:
		rec, ok := v.(*Record)
		if !ok || rec == nil {
			rec = NewRecord(f.Nested)
		}
		return enc.WriteEncodeable(name, rec)
	case f.Enum != nil:
		n, ok := toInt32(v)
		if !ok {
			return typeError(f, v)
		}
		enc.WriteEnumerated(name, n, f.Enum.Symbol(n))
		return nil
	default:
		return uacodec.EncodeScalar(enc, name, f.WireType, v)
	}
}

// Decode replaces the record contents with values read from dec.
//
// With a non-reversible decoder the encoding mask of a
// StructureWithOptionalFields is rebuilt from the optional fields that are
// present, and the active arm of a Union is the first field present.
func (r *Record) Decode(dec uacodec.Decoder) error {
	dec.PushNamespace(r.schema.Namespace)
	defer dec.PopNamespace()

	r.Reset()
	if r.schema.Kind == Union {
		return r.decodeUnion(dec)
	}

	reversible := dec.UseReversibleEncoding()
	if r.schema.Kind == StructureWithOptionalFields && reversible {
		mask, err := dec.ReadUInt32(encodingMaskName)
		if err != nil {
			return uacodec.WrapField(encodingMaskName, err)
		}
		r.encodingMask = mask & r.schema.optionMask
	}

	for _, f := range r.schema.fields {
		if !reversible && !dec.HasField(f.Name) {
			continue
		}
		if f.maskBit != 0 {
			if reversible && r.encodingMask&f.maskBit == 0 {
				continue
			}
			r.encodingMask |= f.maskBit
		}
		v, err := decodeField(dec, f.Name, f)
		if err != nil {
			return uacodec.WrapField(f.Name, err)
		}
		r.values[f.index] = v
	}
	return nil
}

func (r *Record) decodeUnion(dec uacodec.Decoder) error {
	if dec.UseReversibleEncoding() {
		sw, err := dec.ReadUInt32(switchFieldName)
		if err != nil {
			return uacodec.WrapField(switchFieldName, err)
		}
		if sw == 0 {
			return nil
		}
		if int(sw) > len(r.schema.fields) {
			return uacodec.DecodingError(switchFieldName, "switch field %d out of range for %s with %d fields",
				sw, r.schema.Name, len(r.schema.fields))
		}
		f := r.schema.fields[sw-1]
		v, err := decodeField(dec, unionValueName, f)
		if err != nil {
			return uacodec.WrapField(f.Name, err)
		}
		r.values[f.index] = v
		r.switchField = sw
		return nil
	}

	for _, f := range r.schema.fields {
		if !dec.HasField(f.Name) {
			continue
		}
		v, err := decodeField(dec, f.Name, f)
		if err != nil {
			return uacodec.WrapField(f.Name, err)
		}
		r.values[f.index] = v
		r.switchField = uint32(f.index + 1)
		return nil
	}
	if dec.HasField(unionValueName) {
		if _, err := dec.ReadString(unionValueName); err != nil {
			return uacodec.WrapField(unionValueName, err)
		}
	}
	return nil
}

func decodeField(dec uacodec.Decoder, name string, f *Field) (any, error) {
	switch {
	case f.IsArray():
		var newElem func() uacodec.Encodeable
		if f.Nested != nil {
			nested := f.Nested
			newElem = func() uacodec.Encodeable { return NewRecord(nested) }
		}
		v, err := dec.ReadArray(name, f.ValueRank, f.ElementType(), newElem)
		if err != nil || f.Nested == nil {
			return v, err
		}
		return recordArray(v), nil
	case f.Nested != nil:
		rec := NewRecord(f.Nested)
		if err := dec.ReadEncodeable(name, rec); err != nil {
			return nil, err
		}
		return rec, nil
	case f.Enum != nil:
		return dec.ReadEnumerated(name)
	default:
		return uacodec.DecodeScalar(dec, name, f.WireType)
	}
}

// recordArray converts decoded structure arrays to []*Record, keeping the
// matrix shape.
func recordArray(v any) any {
	switch a := v.(type) {
	case []uacodec.Encodeable:
		if a == nil {
			return []*Record(nil)
		}
		out := make([]*Record, len(a))
		for i, e := range a {
			out[i], _ = e.(*Record)
		}
		return out
	case uacodec.Matrix:
		a.Elements = recordArray(a.Elements)
		return a
	}
	return v
}
