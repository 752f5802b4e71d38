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
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/edgeo-scada/uacodec"
)

// Struct tags read by SchemaOf.
const (
	fieldTag = "opcua"
	nameTag  = "xml"
)

// SchemaInfo identifies the structure derived from a Go type.
type SchemaInfo struct {
	Name             string
	Kind             StructureType
	Namespace        string
	TypeID           uacodec.ExpandedNodeID
	BinaryEncodingID uacodec.ExpandedNodeID
	XMLEncodingID    uacodec.ExpandedNodeID
}

// SchemaIdentity is implemented by tagged structs that carry type ids or are
// not plain structures. It is called on the zero value.
type SchemaIdentity interface {
	SchemaInfo() SchemaInfo
}

var (
	schemaCache  sync.Map // reflect.Type -> *cachedSchema
	schemaGroup  singleflight.Group
	derivations  atomic.Int64
	identityType = reflect.TypeOf((*SchemaIdentity)(nil)).Elem()
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

type cachedSchema struct {
	schema *Schema
	err    error
}

// SchemaOf returns the schema of a tagged struct type, deriving it on first
// use. Fields take part only when they carry both an `opcua:"..."` tag and
// an `xml:"Name"` tag:
//
//	type Sample struct {
//		ID    uint32   `opcua:"order=1" xml:"Id"`
//		Label *string  `opcua:"order=2,optional" xml:"Label"`
//		Raw   []uint16 `opcua:"order=3,rank=1" xml:"Raw"`
//	}
//
// The opcua tag accepts order=N, type=Name, rank=N, optional, default=V and
// enum=Name. The derived schema is cached for the lifetime of the process.
func SchemaOf(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if c, ok := schemaCache.Load(t); ok {
		return c.(*cachedSchema).schema, c.(*cachedSchema).err
	}
	v, _, _ := schemaGroup.Do(t.PkgPath()+"."+t.String(), func() (any, error) {
		s, err := derive(t, map[reflect.Type]bool{})
		return &cachedSchema{schema: s, err: err}, nil
	})
	c := v.(*cachedSchema)
	return c.schema, c.err
}

// SchemaFor returns the schema of the type of v.
func SchemaFor(v any) (*Schema, error) {
	if v == nil {
		return nil, uacodec.SchemaError("", "nil value has no schema")
	}
	return SchemaOf(reflect.TypeOf(v))
}

func derive(t reflect.Type, visiting map[reflect.Type]bool) (*Schema, error) {
	if c, ok := schemaCache.Load(t); ok {
		return c.(*cachedSchema).schema, c.(*cachedSchema).err
	}
	if t.Kind() != reflect.Struct {
		return nil, uacodec.SchemaError("", "%s is not a struct", t)
	}
	if visiting[t] {
		return nil, uacodec.SchemaError("", "%s contains itself", t)
	}
	visiting[t] = true
	defer delete(visiting, t)

	s, err := deriveStruct(t, visiting)
	derivations.Add(1)
	slog.Debug("derived structure schema", "type", t.String(), "fields", fieldCount(s), "error", err)
	c, _ := schemaCache.LoadOrStore(t, &cachedSchema{schema: s, err: err})
	return c.(*cachedSchema).schema, c.(*cachedSchema).err
}

func fieldCount(s *Schema) int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

func deriveStruct(t reflect.Type, visiting map[reflect.Type]bool) (*Schema, error) {
	info := SchemaInfo{Name: t.Name()}
	if t.Implements(identityType) {
		info = reflect.Zero(t).Interface().(SchemaIdentity).SchemaInfo()
	} else if reflect.PointerTo(t).Implements(identityType) {
		info = reflect.New(t).Interface().(SchemaIdentity).SchemaInfo()
	}
	if info.Name == "" {
		info.Name = t.Name()
	}
	if info.Name == "" {
		info.Name = "Structure"
	}

	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, hasTag := sf.Tag.Lookup(fieldTag)
		name, hasName := sf.Tag.Lookup(nameTag)
		if !hasTag || !hasName || !sf.IsExported() {
			continue
		}
		if i := strings.IndexByte(name, ','); i >= 0 {
			name = name[:i]
		}
		if name == "" || name == "-" {
			continue
		}
		f, err := fieldOf(sf, name, tag, visiting)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}

	opts := []SchemaOption{
		WithTypeID(info.TypeID),
		WithBinaryEncodingID(info.BinaryEncodingID),
		WithXMLEncodingID(info.XMLEncodingID),
	}
	if info.Namespace != "" {
		opts = append(opts, WithNamespace(info.Namespace))
	}
	return NewSchema(info.Name, info.Kind, fields, opts...)
}

func fieldOf(sf reflect.StructField, name, tag string, visiting map[reflect.Type]bool) (Field, error) {
	f := Field{Name: name, Order: sf.Index[0], ValueRank: uacodec.ValueRankScalar}
	var (
		typeName   string
		enumName   string
		defaultStr string
		hasDefault bool
		hasRank    bool
	)
	for _, part := range strings.Split(tag, ",") {
		key, val, _ := strings.Cut(strings.TrimSpace(part), "=")
		var err error
		switch key {
		case "":
		case "order":
			f.Order, err = strconv.Atoi(val)
		case "type":
			typeName = val
		case "rank":
			var r int64
			r, err = strconv.ParseInt(val, 10, 32)
			f.ValueRank = int32(r)
			hasRank = true
		case "optional":
			f.IsOptional = true
		case "default":
			defaultStr, hasDefault = val, true
		case "enum":
			enumName = val
		default:
			err = fmt.Errorf("unknown tag key %q", key)
		}
		if err != nil {
			return f, uacodec.SchemaError(name, "field %s: %v", sf.Name, err)
		}
	}

	host := sf.Type
	if host.Kind() == reflect.Pointer && !isHostType(host) {
		host = host.Elem()
	}
	if host == matrixType {
		if typeName == "" || f.ValueRank < uacodec.ValueRankTwoDimensions {
			return f, uacodec.SchemaError(name, "field %s: matrix fields need type= and rank>=2", sf.Name)
		}
	} else if host.Kind() == reflect.Slice && host != bytesType && !hasRank {
		f.ValueRank = uacodec.ValueRankOneDimension
	}
	elem := host
	if f.IsArray() && host.Kind() == reflect.Slice {
		elem = host.Elem()
		if elem.Kind() == reflect.Pointer && !isHostType(elem) {
			elem = elem.Elem()
		}
	}

	if typeName != "" {
		bt, ok := uacodec.ParseBuiltInType(typeName)
		if !ok {
			return f, uacodec.SchemaError(name, "field %s: unknown wire type %q", sf.Name, typeName)
		}
		f.WireType = bt
	} else if elem.Kind() == reflect.Struct && !isHostType(elem) {
		nested, err := derive(elem, visiting)
		if err != nil {
			return f, err
		}
		f.Nested = nested
	} else {
		bt, ok := wireTypeOf(elem)
		if !ok {
			return f, uacodec.SchemaError(name, "field %s: no wire type for %s", sf.Name, elem)
		}
		f.WireType = bt
	}

	if f.WireType == uacodec.TypeEnumeration || enumName != "" {
		f.WireType = uacodec.TypeInt32
		f.Enum = enumOf(elem, enumName)
	}

	if hasDefault {
		v, err := ParseScalar(f.WireType, defaultStr)
		if err != nil {
			return f, uacodec.SchemaError(name, "field %s: default: %v", sf.Name, err)
		}
		f.Default = v
	}
	return f, nil
}

var (
	bytesType  = reflect.TypeOf([]byte(nil))
	matrixType = reflect.TypeOf(uacodec.Matrix{})
)

// isHostType reports whether t holds a built-in wire value.
func isHostType(t reflect.Type) bool {
	_, ok := wireTypeOf(t)
	return ok
}

func wireTypeOf(t reflect.Type) (uacodec.BuiltInType, bool) {
	if t == bytesType {
		return uacodec.TypeByteString, true
	}
	for bt := uacodec.TypeBoolean; bt <= uacodec.TypeDiagnosticInfo; bt++ {
		if bt.HostType() == t {
			return bt, true
		}
	}
	if isEnumType(t) {
		return uacodec.TypeEnumeration, true
	}
	return uacodec.TypeNull, false
}

// isEnumType reports whether t is a named integer type other than the
// built-in host types.
func isEnumType(t reflect.Type) bool {
	if t.PkgPath() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint16, reflect.Uint32:
	default:
		return false
	}
	return t != uacodec.TypeStatusCode.HostType()
}

func enumOf(t reflect.Type, name string) *EnumDefinition {
	if name == "" && t.PkgPath() != "" {
		name = t.Name()
	}
	e := &EnumDefinition{Name: name}
	if t.Implements(stringerType) {
		e.symbol = func(v int32) string {
			return reflect.ValueOf(v).Convert(t).Interface().(fmt.Stringer).String()
		}
	}
	return e
}

// Bind copies the tagged fields of the struct pointed to by ptr into a new
// record. Nil pointers and nil slices of optional fields stay absent. For a
// union the first non-zero field becomes the active arm.
func Bind(ptr any) (*Record, error) {
	rv := reflect.ValueOf(ptr)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, uacodec.SchemaError("", "nil pointer")
		}
		rv = rv.Elem()
	}
	s, err := SchemaOf(rv.Type())
	if err != nil {
		return nil, err
	}
	return bindStruct(s, rv)
}

func bindStruct(s *Schema, rv reflect.Value) (*Record, error) {
	rec := NewRecord(s)
	for _, sf := range reflect.VisibleFields(rv.Type()) {
		name, ok := wireName(sf)
		if !ok {
			continue
		}
		f, ok := s.Field(name)
		if !ok {
			continue
		}
		fv := rv.FieldByIndex(sf.Index)
		if s.Kind != Structure && fv.IsZero() {
			if s.Kind == Union || fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Slice {
				continue
			}
		}
		v, err := toRecordValue(f, fv)
		if err != nil {
			return nil, uacodec.WrapField(name, err)
		}
		if v == nil {
			continue
		}
		if s.Kind == Union && rec.switchField != 0 {
			continue
		}
		if err := rec.Set(name, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func wireName(sf reflect.StructField) (string, bool) {
	if _, ok := sf.Tag.Lookup(fieldTag); !ok {
		return "", false
	}
	name, ok := sf.Tag.Lookup(nameTag)
	if !ok {
		return "", false
	}
	if i := strings.IndexByte(name, ','); i >= 0 {
		name = name[:i]
	}
	return name, name != "" && name != "-"
}

func toRecordValue(f *Field, fv reflect.Value) (any, error) {
	if fv.Kind() == reflect.Pointer && !isHostType(fv.Type()) {
		if fv.IsNil() {
			return nil, nil
		}
		fv = fv.Elem()
	}

	switch {
	case f.IsArray() && f.Nested != nil:
		if fv.Kind() != reflect.Slice {
			return nil, typeError(f, fv.Interface())
		}
		if fv.IsNil() {
			return []*Record(nil), nil
		}
		out := make([]*Record, fv.Len())
		for i := range out {
			ev := fv.Index(i)
			if ev.Kind() == reflect.Pointer {
				if ev.IsNil() {
					out[i] = NewRecord(f.Nested)
					continue
				}
				ev = ev.Elem()
			}
			rec, err := bindStruct(f.Nested, ev)
			if err != nil {
				return nil, err
			}
			out[i] = rec
		}
		return out, nil
	case f.Nested != nil:
		return bindStruct(f.Nested, fv)
	case f.IsArray() && f.Enum != nil:
		if fv.Kind() != reflect.Slice {
			return fv.Interface(), nil
		}
		if fv.IsNil() {
			return []int32(nil), nil
		}
		out := make([]int32, fv.Len())
		for i := range out {
			out[i], _ = toInt32(fv.Index(i).Interface())
		}
		return out, nil
	}
	return fv.Interface(), nil
}

// Unbind copies a record into the tagged struct pointed to by ptr. Absent
// optional fields leave pointer fields nil.
func Unbind(rec *Record, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return uacodec.SchemaError("", "Unbind needs a non-nil pointer, got %T", ptr)
	}
	rv = rv.Elem()
	s, err := SchemaOf(rv.Type())
	if err != nil {
		return err
	}
	if !sameSchema(s, rec.schema) {
		return uacodec.NewCodecError(uacodec.StatusBadTypeMismatch, "",
			"record of %s cannot be stored in %s", rec.schema.Name, rv.Type())
	}
	return unbindStruct(rec, rv)
}

func unbindStruct(rec *Record, rv reflect.Value) error {
	for _, sf := range reflect.VisibleFields(rv.Type()) {
		name, ok := wireName(sf)
		if !ok {
			continue
		}
		f, ok := rec.schema.Field(name)
		if !ok {
			continue
		}
		fv := rv.FieldByIndex(sf.Index)
		v, present := rec.Get(name)
		if !present && (v == nil || fv.Kind() == reflect.Pointer && !isHostType(fv.Type())) {
			fv.Set(reflect.Zero(fv.Type()))
			continue
		}
		if err := fromRecordValue(f, v, fv); err != nil {
			return uacodec.WrapField(name, err)
		}
	}
	return nil
}

func fromRecordValue(f *Field, v any, fv reflect.Value) error {
	if fv.Kind() == reflect.Pointer && !isHostType(fv.Type()) {
		if v == nil {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		p := reflect.New(fv.Type().Elem())
		if err := fromRecordValue(f, v, p.Elem()); err != nil {
			return err
		}
		fv.Set(p)
		return nil
	}

	switch {
	case f.IsArray() && f.Nested != nil:
		recs, _ := v.([]*Record)
		if recs == nil {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		out := reflect.MakeSlice(fv.Type(), len(recs), len(recs))
		for i, r := range recs {
			ev := out.Index(i)
			if ev.Kind() == reflect.Pointer {
				ev.Set(reflect.New(ev.Type().Elem()))
				ev = ev.Elem()
			}
			if r != nil {
				if err := unbindStruct(r, ev); err != nil {
					return err
				}
			}
		}
		fv.Set(out)
		return nil
	case f.Nested != nil:
		r, ok := v.(*Record)
		if !ok {
			return typeError(f, v)
		}
		return unbindStruct(r, fv)
	}

	if v == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	src := reflect.ValueOf(v)
	switch {
	case src.Type().AssignableTo(fv.Type()):
		fv.Set(src)
	case src.Kind() == reflect.Slice && fv.Kind() == reflect.Slice &&
		isInteger(src.Type().Elem().Kind()) && isInteger(fv.Type().Elem().Kind()):
		out := reflect.MakeSlice(fv.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			out.Index(i).Set(src.Index(i).Convert(fv.Type().Elem()))
		}
		fv.Set(out)
	case isInteger(src.Kind()) && isInteger(fv.Kind()):
		fv.Set(src.Convert(fv.Type()))
	default:
		return typeError(f, v)
	}
	return nil
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
