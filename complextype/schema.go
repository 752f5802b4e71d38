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

// Package complextype encodes structured OPC UA values described by
// metadata: plain structures, structures with optional fields and unions.
//
// A Schema holds the ordered field descriptors of one kind of structure and
// is shared by every Record of that kind. Records implement
// uacodec.Encodeable and can be written to any uacodec.Encoder.
package complextype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/edgeo-scada/uacodec"
)

// MaxOptionalFields is the number of bits in the optional-field mask.
const MaxOptionalFields = 32

// StructureType is the kind of a structure.
type StructureType int

// Structure kinds.
const (
	Structure                   StructureType = 0
	StructureWithOptionalFields StructureType = 1
	Union                       StructureType = 2
)

// String returns the name of the kind.
func (s StructureType) String() string {
	switch s {
	case Structure:
		return "Structure"
	case StructureWithOptionalFields:
		return "StructureWithOptionalFields"
	case Union:
		return "Union"
	default:
		return fmt.Sprintf("StructureType(%d)", int(s))
	}
}

// ParseStructureType returns the kind with the given name.
func ParseStructureType(s string) (StructureType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "structure":
		return Structure, nil
	case "structurewithoptionalfields", "optional":
		return StructureWithOptionalFields, nil
	case "union":
		return Union, nil
	}
	return Structure, uacodec.SchemaError("", "unknown structure type %q", s)
}

// EnumValue is one member of an enumeration.
type EnumValue struct {
	Name  string
	Value int32
}

// EnumDefinition describes the symbols of an enumerated field.
type EnumDefinition struct {
	Name   string
	Values []EnumValue

	symbol func(int32) string
}

// Symbol returns the name of v, or "" when v is not a member.
func (e *EnumDefinition) Symbol(v int32) string {
	if e == nil {
		return ""
	}
	for _, ev := range e.Values {
		if ev.Value == v {
			return ev.Name
		}
	}
	if e.symbol != nil {
		return e.symbol(v)
	}
	return ""
}

// Lookup returns the value of the member named name.
func (e *EnumDefinition) Lookup(name string) (int32, bool) {
	if e == nil {
		return 0, false
	}
	for _, ev := range e.Values {
		if ev.Name == name {
			return ev.Value, true
		}
	}
	return 0, false
}

// Field describes one field of a structure.
type Field struct {
	// Name is the wire name of the field.
	Name string
	// Order positions the field; fields are encoded in ascending order.
	Order int
	// WireType is the scalar or element type. TypeNull marks a nested
	// structure described by Nested.
	WireType uacodec.BuiltInType
	// ValueRank is -1 for scalars and the number of dimensions for arrays.
	// Any other value is rejected, including the zero value.
	ValueRank int32
	// IsOptional marks fields that may be omitted by a
	// StructureWithOptionalFields.
	IsOptional bool
	// Default is the value of an absent field. nil selects the zero value
	// of the wire type.
	Default any
	// Enum promotes an Int32 field to an enumeration.
	Enum *EnumDefinition
	// Nested describes the structure carried by a TypeNull field.
	Nested *Schema

	index   int
	maskBit uint32
}

// Index returns the position of the field within its schema.
func (f *Field) Index() int { return f.index }

// OptionalMaskBit returns the encoding-mask bit of an optional field, or 0.
func (f *Field) OptionalMaskBit() uint32 { return f.maskBit }

// IsArray reports whether the field holds an array.
func (f *Field) IsArray() bool { return f.ValueRank >= uacodec.ValueRankOneDimension }

// ElementType returns the wire type of the scalar or of each array element.
func (f *Field) ElementType() uacodec.BuiltInType {
	if f.Enum != nil {
		return uacodec.TypeEnumeration
	}
	return f.WireType
}

// DefaultValue returns the value an absent field encodes as.
func (f *Field) DefaultValue() any {
	if f.Default != nil {
		return f.Default
	}
	if f.IsArray() {
		return nil
	}
	if f.Nested != nil {
		return NewRecord(f.Nested)
	}
	return f.ElementType().ZeroValue()
}

// TypeString describes the field type, e.g. "UInt32[]" or "Point".
func (f *Field) TypeString() string {
	s := f.WireType.String()
	switch {
	case f.Nested != nil:
		s = f.Nested.Name
	case f.Enum != nil && f.Enum.Name != "":
		s = f.Enum.Name
	}
	for i := int32(0); i < f.ValueRank; i++ {
		s += "[]"
	}
	return s
}

// Schema is the immutable description of one kind of structure.
type Schema struct {
	Name      string
	Kind      StructureType
	Namespace string

	typeID     uacodec.ExpandedNodeID
	binaryID   uacodec.ExpandedNodeID
	xmlID      uacodec.ExpandedNodeID
	fields     []*Field
	byName     map[string]int
	optionals  int
	optionMask uint32
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// WithTypeID sets the data type id.
func WithTypeID(id uacodec.ExpandedNodeID) SchemaOption {
	return func(s *Schema) { s.typeID = id }
}

// WithBinaryEncodingID sets the id of the binary encoding.
func WithBinaryEncodingID(id uacodec.ExpandedNodeID) SchemaOption {
	return func(s *Schema) { s.binaryID = id }
}

// WithXMLEncodingID sets the id of the XML encoding.
func WithXMLEncodingID(id uacodec.ExpandedNodeID) SchemaOption {
	return func(s *Schema) { s.xmlID = id }
}

// WithNamespace sets the XML namespace of the fields.
func WithNamespace(ns string) SchemaOption {
	return func(s *Schema) { s.Namespace = ns }
}

// NewSchema validates fields, orders them and assigns optional mask bits.
func NewSchema(name string, kind StructureType, fields []Field, opts ...SchemaOption) (*Schema, error) {
	if name == "" {
		return nil, uacodec.SchemaError("", "schema name is required")
	}
	if kind < Structure || kind > Union {
		return nil, uacodec.SchemaError("", "schema %s: unknown structure type %d", name, kind)
	}

	s := &Schema{
		Name:      name,
		Kind:      kind,
		Namespace: uacodec.NamespaceOPCUA,
		byName:    make(map[string]int, len(fields)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.fields = make([]*Field, len(fields))
	orders := make(map[int]string, len(fields))
	for i := range fields {
		f := fields[i]
		if err := validateField(name, &f); err != nil {
			return nil, err
		}
		if prev, dup := orders[f.Order]; dup {
			return nil, uacodec.SchemaError(f.Name, "schema %s: order %d already used by %q", name, f.Order, prev)
		}
		orders[f.Order] = f.Name
		s.fields[i] = &f
	}

	sort.SliceStable(s.fields, func(i, j int) bool {
		return s.fields[i].Order < s.fields[j].Order
	})

	var bit uint32 = 1
	for i, f := range s.fields {
		if _, dup := s.byName[f.Name]; dup {
			return nil, uacodec.SchemaError(f.Name, "schema %s: duplicate field name", name)
		}
		s.byName[f.Name] = i
		f.index = i
		if kind != StructureWithOptionalFields || !f.IsOptional {
			f.maskBit = 0
			continue
		}
		if s.optionals == MaxOptionalFields {
			return nil, uacodec.SchemaError(f.Name, "schema %s: more than %d optional fields", name, MaxOptionalFields)
		}
		f.maskBit = bit
		s.optionMask |= bit
		s.optionals++
		bit <<= 1
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is intended for
// package-level schema declarations.
func MustSchema(name string, kind StructureType, fields []Field, opts ...SchemaOption) *Schema {
	s, err := NewSchema(name, kind, fields, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func validateField(schema string, f *Field) error {
	if f.Name == "" {
		return uacodec.SchemaError("", "schema %s: field name is required", schema)
	}
	if f.Nested != nil {
		f.WireType = uacodec.TypeNull
	}
	if f.WireType == uacodec.TypeNull && f.Nested == nil {
		return uacodec.SchemaError(f.Name, "schema %s: nested structure field has no schema", schema)
	}
	if f.WireType == uacodec.TypeEnumeration {
		f.WireType = uacodec.TypeInt32
		if f.Enum == nil {
			f.Enum = &EnumDefinition{}
		}
	}
	if !f.WireType.IsValid() {
		return uacodec.SchemaError(f.Name, "schema %s: unknown wire type %d", schema, f.WireType)
	}
	if f.Enum != nil && f.WireType != uacodec.TypeInt32 {
		return uacodec.SchemaError(f.Name, "schema %s: enumeration must be carried as Int32, not %s", schema, f.WireType)
	}
	if f.ValueRank != uacodec.ValueRankScalar && f.ValueRank < uacodec.ValueRankOneDimension {
		return uacodec.SchemaError(f.Name, "schema %s: unsupported value rank %d", schema, f.ValueRank)
	}
	if f.Default != nil {
		if err := checkValue(f, f.Default); err != nil {
			return uacodec.SchemaError(f.Name, "schema %s: invalid default: %v", schema, err)
		}
	}
	return nil
}

// TypeID returns the data type id.
func (s *Schema) TypeID() uacodec.ExpandedNodeID { return s.typeID }

// BinaryEncodingID returns the id of the binary encoding.
func (s *Schema) BinaryEncodingID() uacodec.ExpandedNodeID { return s.binaryID }

// XMLEncodingID returns the id of the XML encoding.
func (s *Schema) XMLEncodingID() uacodec.ExpandedNodeID { return s.xmlID }

// Fields returns the fields in encoding order.
func (s *Schema) Fields() []*Field {
	out := make([]*Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// NumFields returns the number of fields.
func (s *Schema) NumFields() int { return len(s.fields) }

// Field returns the field named name.
func (s *Schema) Field(name string) (*Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

// FieldAt returns the field at position i.
func (s *Schema) FieldAt(i int) *Field { return s.fields[i] }

// OptionalMask returns the union of all optional-field bits.
func (s *Schema) OptionalMask() uint32 { return s.optionMask }

// NumOptional returns the number of optional fields.
func (s *Schema) NumOptional() int { return s.optionals }

// New creates an empty record of this kind.
func (s *Schema) New() *Record { return NewRecord(s) }
