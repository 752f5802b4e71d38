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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/edgeo-scada/uacodec"
)

// SchemaFile is the YAML form of a set of structure declarations:
//
//	namespace: http://example.com/UA/Types.xsd
//	enums:
//	  - name: Color
//	    values: {Red: 0, Green: 1}
//	schemas:
//	  - name: Sample
//	    kind: StructureWithOptionalFields
//	    typeId: ns=2;i=3001
//	    binaryEncodingId: ns=2;i=3002
//	    fields:
//	      - {name: Id, type: UInt32}
//	      - {name: Tint, enum: Color, optional: true}
//	      - {name: Points, structure: Point, rank: 1}
type SchemaFile struct {
	Namespace string          `yaml:"namespace"`
	Enums     []EnumDecl      `yaml:"enums"`
	Schemas   []StructureDecl `yaml:"schemas"`
}

// EnumDecl declares an enumeration.
type EnumDecl struct {
	Name   string           `yaml:"name"`
	Values map[string]int32 `yaml:"values"`
}

// StructureDecl declares a structure.
type StructureDecl struct {
	Name             string      `yaml:"name"`
	Kind             string      `yaml:"kind"`
	Namespace        string      `yaml:"namespace"`
	TypeID           string      `yaml:"typeId"`
	BinaryEncodingID string      `yaml:"binaryEncodingId"`
	XMLEncodingID    string      `yaml:"xmlEncodingId"`
	Fields           []FieldDecl `yaml:"fields"`
}

// FieldDecl declares a field. Order defaults to the declaration position.
type FieldDecl struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Structure string `yaml:"structure"`
	Enum      string `yaml:"enum"`
	Rank      *int32 `yaml:"rank"`
	Optional  bool   `yaml:"optional"`
	Default   any    `yaml:"default"`
	Order     *int   `yaml:"order"`
}

// LoadSchemaFile reads structure declarations from a YAML file.
func LoadSchemaFile(path string, opts ...Option) (*Registry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return LoadSchemas(bytes.NewReader(data), opts...)
}

// LoadSchemas parses YAML structure declarations into a new registry.
// Unknown keys are rejected. A structure may reference enumerations and
// structures declared before it.
func LoadSchemas(r io.Reader, opts ...Option) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file SchemaFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, &uacodec.CodecError{
			StatusCode: uacodec.StatusBadConfigurationError,
			Message:    "failed to parse schema file",
			Err:        err,
		}
	}

	reg := NewRegistry(opts...)
	if err := file.register(reg); err != nil {
		return nil, err
	}
	reg.opts.logger.Info("loaded structure schemas", "schemas", len(file.Schemas), "enums", len(file.Enums))
	return reg, nil
}

func (file *SchemaFile) register(reg *Registry) error {
	enums := make(map[string]*EnumDefinition, len(file.Enums))
	for _, e := range file.Enums {
		if e.Name == "" {
			return uacodec.SchemaError("", "enumeration name is required")
		}
		def := &EnumDefinition{Name: e.Name}
		for name, v := range e.Values {
			def.Values = append(def.Values, EnumValue{Name: name, Value: v})
		}
		sort.Slice(def.Values, func(i, j int) bool { return def.Values[i].Value < def.Values[j].Value })
		enums[e.Name] = def
	}

	for _, decl := range file.Schemas {
		s, err := decl.build(file.Namespace, reg, enums)
		if err != nil {
			return err
		}
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

func (decl *StructureDecl) build(namespace string, reg *Registry, enums map[string]*EnumDefinition) (*Schema, error) {
	kind, err := ParseStructureType(decl.Kind)
	if err != nil {
		return nil, uacodec.SchemaError("", "schema %s: unknown kind %q", decl.Name, decl.Kind)
	}

	var opts []SchemaOption
	if decl.Namespace != "" {
		namespace = decl.Namespace
	}
	if namespace != "" {
		opts = append(opts, WithNamespace(namespace))
	}
	for _, id := range []struct {
		text string
		opt  func(uacodec.ExpandedNodeID) SchemaOption
	}{
		{decl.TypeID, WithTypeID},
		{decl.BinaryEncodingID, WithBinaryEncodingID},
		{decl.XMLEncodingID, WithXMLEncodingID},
	} {
		if id.text == "" {
			continue
		}
		n, err := uacodec.ParseExpandedNodeID(id.text)
		if err != nil {
			return nil, uacodec.SchemaError("", "schema %s: %v", decl.Name, err)
		}
		opts = append(opts, id.opt(n))
	}

	fields := make([]Field, len(decl.Fields))
	for i, fd := range decl.Fields {
		f := Field{
			Name:       fd.Name,
			Order:      i,
			ValueRank:  uacodec.ValueRankScalar,
			IsOptional: fd.Optional,
		}
		if fd.Order != nil {
			f.Order = *fd.Order
		}
		if fd.Rank != nil {
			f.ValueRank = *fd.Rank
		}
		switch {
		case fd.Structure != "":
			nested, ok := reg.Lookup(fd.Structure)
			if !ok {
				return nil, uacodec.SchemaError(fd.Name, "schema %s: unknown structure %q", decl.Name, fd.Structure)
			}
			f.Nested = nested
		case fd.Enum != "":
			def, ok := enums[fd.Enum]
			if !ok {
				return nil, uacodec.SchemaError(fd.Name, "schema %s: unknown enumeration %q", decl.Name, fd.Enum)
			}
			f.WireType = uacodec.TypeInt32
			f.Enum = def
		default:
			t, ok := uacodec.ParseBuiltInType(fd.Type)
			if !ok {
				return nil, uacodec.SchemaError(fd.Name, "schema %s: unknown type %q", decl.Name, fd.Type)
			}
			f.WireType = t
		}
		if fd.Default != nil {
			v, err := coerce(&f, fd.Default)
			if err != nil {
				return nil, uacodec.SchemaError(fd.Name, "schema %s: default: %v", decl.Name, err)
			}
			f.Default = v
		}
		fields[i] = f
	}
	return NewSchema(decl.Name, kind, fields, opts...)
}

// RecordFromMap builds a record of schema s from a generic map, as produced
// by decoding YAML or JSON into map[string]any.
func RecordFromMap(s *Schema, m map[string]any) (*Record, error) {
	rec := NewRecord(s)
	if err := rec.setFromMap(m); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Record) setFromMap(m map[string]any) error {
	for _, f := range r.schema.fields {
		raw, ok := m[f.Name]
		if !ok {
			continue
		}
		v, err := coerce(f, raw)
		if err != nil {
			return &uacodec.CodecError{StatusCode: uacodec.StatusBadTypeMismatch, Field: f.Name, Err: err}
		}
		if err := r.Set(f.Name, v); err != nil {
			return err
		}
	}
	for name := range m {
		if _, ok := r.schema.Field(name); !ok {
			return &uacodec.CodecError{
				StatusCode: uacodec.StatusBadNotFound,
				Field:      name,
				Message:    "not a field of " + r.schema.Name,
				Err:        uacodec.ErrUnknownField,
			}
		}
	}
	return nil
}

// SetFromYAML assigns the fields listed in a YAML mapping. Fields that are
// not mentioned keep their current values.
func (r *Record) SetFromYAML(data []byte) error {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return &uacodec.CodecError{StatusCode: uacodec.StatusBadSyntaxError, Message: "invalid YAML value", Err: err}
	}
	return r.setFromMap(m)
}

// RecordToMap returns the present fields of r as a generic map. Identifiers,
// timestamps and byte strings are rendered as text.
func RecordToMap(r *Record) map[string]any {
	if r == nil {
		return nil
	}
	m := make(map[string]any, len(r.values))
	for _, f := range r.schema.fields {
		if !r.rendered(f) {
			continue
		}
		m[f.Name] = plain(r.valueOf(f))
	}
	return m
}

// MarshalYAML implements yaml.Marshaler.
func (r *Record) MarshalYAML() (any, error) {
	return RecordToMap(r), nil
}
