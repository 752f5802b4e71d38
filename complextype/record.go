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
	"fmt"
	"reflect"

	"github.com/edgeo-scada/uacodec"
)

// Record is one value of a structure described by a Schema. A nil slot is
// an absent field; it encodes as the field default.
type Record struct {
	schema       *Schema
	values       []any
	encodingMask uint32
	switchField  uint32
}

// NewRecord creates an empty record.
func NewRecord(s *Schema) *Record {
	return &Record{schema: s, values: make([]any, len(s.fields))}
}

// Schema returns the schema of the record.
func (r *Record) Schema() *Schema { return r.schema }

// TypeID returns the data type id.
func (r *Record) TypeID() uacodec.ExpandedNodeID { return r.schema.typeID }

// BinaryEncodingID returns the id of the binary encoding.
func (r *Record) BinaryEncodingID() uacodec.ExpandedNodeID { return r.schema.binaryID }

// XMLEncodingID returns the id of the XML encoding.
func (r *Record) XMLEncodingID() uacodec.ExpandedNodeID { return r.schema.xmlID }

// TypeName returns the schema name, used as the XML element name.
func (r *Record) TypeName() string { return r.schema.Name }

// EncodingMask returns the optional-field mask.
func (r *Record) EncodingMask() uint32 { return r.encodingMask }

// SetEncodingMask replaces the optional-field mask. Fields whose bit is
// cleared become absent regardless of their stored value.
func (r *Record) SetEncodingMask(mask uint32) { r.encodingMask = mask }

// SwitchField returns the 1-based position of the active union arm, or 0.
func (r *Record) SwitchField() uint32 { return r.switchField }

// SetSwitchField selects the active union arm. 0 clears the union.
func (r *Record) SetSwitchField(n uint32) error {
	if int(n) > len(r.schema.fields) {
		return uacodec.NewCodecError(uacodec.StatusBadOutOfRange, "SwitchField",
			"switch field %d out of range for %s with %d fields", n, r.schema.Name, len(r.schema.fields))
	}
	for i := range r.values {
		if uint32(i+1) != n {
			r.values[i] = nil
		}
	}
	r.switchField = n
	return nil
}

func (r *Record) lookup(name string) (*Field, error) {
	f, ok := r.schema.Field(name)
	if !ok {
		return nil, &uacodec.CodecError{
			StatusCode: uacodec.StatusBadNotFound,
			Field:      name,
			Message:    "not a field of " + r.schema.Name,
			Err:        uacodec.ErrUnknownField,
		}
	}
	return f, nil
}

// Set assigns a field.
//
// For optional fields, setting nil or the field default clears the field's
// mask bit; any other value sets it. For unions, a non-nil value makes the
// field the active arm and clears the others, and nil clears the union.
func (r *Record) Set(name string, v any) error {
	f, err := r.lookup(name)
	if err != nil {
		return err
	}
	if v != nil {
		if v, err = normalize(f, v); err != nil {
			return err
		}
	}

	switch r.schema.Kind {
	case StructureWithOptionalFields:
		if f.IsOptional {
			if v == nil || uacodec.ValueEqual(v, f.DefaultValue()) {
				r.values[f.index] = nil
				r.encodingMask &^= f.maskBit
				return nil
			}
			r.encodingMask |= f.maskBit
		}
		r.values[f.index] = v
	case Union:
		for i := range r.values {
			r.values[i] = nil
		}
		if v == nil {
			r.switchField = 0
			return nil
		}
		r.values[f.index] = v
		r.switchField = uint32(f.index + 1)
	default:
		r.values[f.index] = v
	}
	return nil
}

// MustSet is like Set but panics on error.
func (r *Record) MustSet(name string, v any) *Record {
	if err := r.Set(name, v); err != nil {
		panic(err)
	}
	return r
}

// IsSet reports whether the field is present: its optional bit is set, it
// is the active union arm, or for plain fields it holds a value.
func (r *Record) IsSet(name string) bool {
	f, ok := r.schema.Field(name)
	if !ok {
		return false
	}
	return r.present(f)
}

func (r *Record) present(f *Field) bool {
	switch r.schema.Kind {
	case StructureWithOptionalFields:
		if f.IsOptional {
			return r.encodingMask&f.maskBit != 0
		}
	case Union:
		return r.switchField == uint32(f.index+1)
	}
	return r.values[f.index] != nil
}

// Get returns the value of a field and whether it is present. An absent
// field yields its default.
func (r *Record) Get(name string) (any, bool) {
	f, ok := r.schema.Field(name)
	if !ok {
		return nil, false
	}
	if !r.present(f) {
		return f.DefaultValue(), false
	}
	return r.valueOf(f), true
}

// Value returns the value of a field, or its default when absent.
func (r *Record) Value(name string) any {
	v, _ := r.Get(name)
	return v
}

// valueOf returns the stored value, substituting the default for an empty slot.
func (r *Record) valueOf(f *Field) any {
	if v := r.values[f.index]; v != nil {
		return v
	}
	return f.DefaultValue()
}

// Clone returns a shallow copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{
		schema:       r.schema,
		values:       make([]any, len(r.values)),
		encodingMask: r.encodingMask,
		switchField:  r.switchField,
	}
	copy(c.values, r.values)
	return c
}

// Reset clears every field.
func (r *Record) Reset() {
	for i := range r.values {
		r.values[i] = nil
	}
	r.encodingMask = 0
	r.switchField = 0
}

// normalize checks v against the field type. Integers of any kind are
// accepted for enumerations.
func normalize(f *Field, v any) (any, error) {
	if f.Enum != nil && !f.IsArray() {
		if n, ok := toInt32(v); ok {
			return n, nil
		}
	}
	if err := checkValue(f, v); err != nil {
		return nil, err
	}
	return v, nil
}

func checkValue(f *Field, v any) error {
	if v == nil {
		return nil
	}
	if f.IsArray() {
		if f.ValueRank > uacodec.ValueRankOneDimension {
			m, ok := v.(uacodec.Matrix)
			if !ok {
				return typeError(f, v)
			}
			return checkSlice(f, m.Elements)
		}
		return checkSlice(f, v)
	}
	if f.Nested != nil {
		rec, ok := v.(*Record)
		if !ok {
			return typeError(f, v)
		}
		if rec.schema != f.Nested {
			return uacodec.NewCodecError(uacodec.StatusBadTypeMismatch, f.Name,
				"record of %s assigned to field of %s", rec.schema.Name, f.Nested.Name)
		}
		return nil
	}
	if f.WireType == uacodec.TypeExtensionObject {
		if _, ok := v.(uacodec.Encodeable); ok {
			return nil
		}
	}
	if reflect.TypeOf(v) != f.ElementType().HostType() {
		return typeError(f, v)
	}
	return nil
}

func checkSlice(f *Field, v any) error {
	rt := reflect.TypeOf(v)
	if rt.Kind() != reflect.Slice {
		return typeError(f, v)
	}
	want := f.ElementType().HostType()
	if f.Nested != nil {
		want = reflect.TypeOf((*Record)(nil))
	}
	if rt.Elem() != want {
		return typeError(f, v)
	}
	return nil
}

func typeError(f *Field, v any) error {
	return &uacodec.CodecError{
		StatusCode: uacodec.StatusBadTypeMismatch,
		Field:      f.Name,
		Message:    fmt.Sprintf("%T is not a valid %s", v, f.TypeString()),
		Err:        uacodec.ErrTypeMismatch,
	}
}

func toInt32(v any) (int32, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int32(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int32(rv.Uint()), true
	}
	return 0, false
}
