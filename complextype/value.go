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
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgeo-scada/uacodec"
)

// ParseScalar parses the textual form of a scalar of wire type t.
func ParseScalar(t uacodec.BuiltInType, s string) (any, error) {
	s = strings.TrimSpace(s)
	switch t {
	case uacodec.TypeBoolean:
		return strconv.ParseBool(s)
	case uacodec.TypeSByte:
		v, err := strconv.ParseInt(s, 0, 8)
		return int8(v), err
	case uacodec.TypeByte:
		v, err := strconv.ParseUint(s, 0, 8)
		return byte(v), err
	case uacodec.TypeInt16:
		v, err := strconv.ParseInt(s, 0, 16)
		return int16(v), err
	case uacodec.TypeUInt16:
		v, err := strconv.ParseUint(s, 0, 16)
		return uint16(v), err
	case uacodec.TypeInt32, uacodec.TypeEnumeration:
		v, err := strconv.ParseInt(s, 0, 32)
		return int32(v), err
	case uacodec.TypeUInt32:
		v, err := strconv.ParseUint(s, 0, 32)
		return uint32(v), err
	case uacodec.TypeInt64:
		return strconv.ParseInt(s, 0, 64)
	case uacodec.TypeUInt64:
		return strconv.ParseUint(s, 0, 64)
	case uacodec.TypeFloat:
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	case uacodec.TypeDouble:
		return strconv.ParseFloat(s, 64)
	case uacodec.TypeString:
		return s, nil
	case uacodec.TypeDateTime:
		return time.Parse(time.RFC3339Nano, s)
	case uacodec.TypeGUID:
		return uuid.Parse(s)
	case uacodec.TypeByteString:
		return base64.StdEncoding.DecodeString(s)
	case uacodec.TypeXMLElement:
		return uacodec.XMLElement(s), nil
	case uacodec.TypeNodeID:
		return uacodec.ParseNodeID(s)
	case uacodec.TypeExpandedNodeID:
		return uacodec.ParseExpandedNodeID(s)
	case uacodec.TypeStatusCode:
		v, err := strconv.ParseUint(s, 0, 32)
		return uacodec.StatusCode(v), err
	case uacodec.TypeQualifiedName:
		if ns, name, ok := strings.Cut(s, ":"); ok {
			if n, err := strconv.ParseUint(ns, 10, 16); err == nil {
				return uacodec.NewQualifiedName(uint16(n), name), nil
			}
		}
		return uacodec.NewQualifiedName(0, s), nil
	case uacodec.TypeLocalizedText:
		return uacodec.NewLocalizedText(s), nil
	case uacodec.TypeVariant:
		return uacodec.NewVariant(s), nil
	}
	return nil, fmt.Errorf("%s values cannot be parsed from text", t)
}

// coerce converts a loosely typed value, as produced by a YAML decoder, to
// the host type of field f.
func coerce(f *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case f.IsArray() && f.ValueRank > uacodec.ValueRankOneDimension:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("matrix needs dimensions and elements, got %T", v)
		}
		dimsAny, _ := m["dimensions"].([]any)
		dims := make([]int32, len(dimsAny))
		for i, d := range dimsAny {
			n, err := coerceScalar(uacodec.TypeInt32, d)
			if err != nil {
				return nil, fmt.Errorf("dimension %d: %w", i, err)
			}
			dims[i] = n.(int32)
		}
		elems, err := coerceList(f, m["elements"])
		if err != nil {
			return nil, err
		}
		return uacodec.Matrix{Dimensions: dims, Elements: elems}, nil
	case f.IsArray():
		return coerceList(f, v)
	case f.Nested != nil:
		return coerceRecord(f.Nested, v)
	case f.Enum != nil:
		return coerceEnum(f.Enum, v)
	}
	return coerceScalar(f.WireType, v)
}

func coerceList(f *Field, v any) (any, error) {
	list, ok := v.([]any)
	if !ok && v != nil {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	if f.Nested != nil {
		out := make([]*Record, len(list))
		for i, e := range list {
			r, err := coerceRecord(f.Nested, e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	}
	host := f.ElementType().HostType()
	out := reflect.MakeSlice(reflect.SliceOf(host), len(list), len(list))
	for i, e := range list {
		var (
			x   any
			err error
		)
		if f.Enum != nil {
			x, err = coerceEnum(f.Enum, e)
		} else {
			x, err = coerceScalar(f.WireType, e)
		}
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if x != nil {
			out.Index(i).Set(reflect.ValueOf(x))
		}
	}
	return out.Interface(), nil
}

func coerceRecord(s *Schema, v any) (*Record, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("structure %s needs a mapping, got %T", s.Name, v)
	}
	return RecordFromMap(s, m)
}

func coerceEnum(e *EnumDefinition, v any) (any, error) {
	if s, ok := v.(string); ok {
		if n, ok := e.Lookup(s); ok {
			return n, nil
		}
		if i := strings.LastIndexByte(s, '_'); i >= 0 {
			s = s[i+1:]
		}
		return ParseScalar(uacodec.TypeInt32, s)
	}
	return coerceScalar(uacodec.TypeInt32, v)
}

func coerceScalar(t uacodec.BuiltInType, v any) (any, error) {
	switch x := v.(type) {
	case string:
		return ParseScalar(t, x)
	case bool:
		if t == uacodec.TypeBoolean {
			return x, nil
		}
		if t == uacodec.TypeVariant {
			return uacodec.NewVariant(x), nil
		}
	case int:
		return coerceInt(t, int64(x))
	case int64:
		return coerceInt(t, x)
	case uint64:
		if x > math.MaxInt64 {
			if t == uacodec.TypeUInt64 {
				return x, nil
			}
			return nil, fmt.Errorf("%d out of range for %s", x, t)
		}
		return coerceInt(t, int64(x))
	case float64:
		switch t {
		case uacodec.TypeFloat:
			return float32(x), nil
		case uacodec.TypeDouble:
			return x, nil
		case uacodec.TypeVariant:
			return uacodec.NewVariant(x), nil
		}
	case time.Time:
		if t == uacodec.TypeDateTime {
			return x, nil
		}
	}
	if host := t.HostType(); host != nil && reflect.TypeOf(v) == host {
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

func coerceInt(t uacodec.BuiltInType, n int64) (any, error) {
	inRange := func(lo, hi int64) error {
		if n < lo || n > hi {
			return fmt.Errorf("%d out of range for %s", n, t)
		}
		return nil
	}
	switch t {
	case uacodec.TypeSByte:
		return int8(n), inRange(math.MinInt8, math.MaxInt8)
	case uacodec.TypeByte:
		return byte(n), inRange(0, math.MaxUint8)
	case uacodec.TypeInt16:
		return int16(n), inRange(math.MinInt16, math.MaxInt16)
	case uacodec.TypeUInt16:
		return uint16(n), inRange(0, math.MaxUint16)
	case uacodec.TypeInt32, uacodec.TypeEnumeration:
		return int32(n), inRange(math.MinInt32, math.MaxInt32)
	case uacodec.TypeUInt32:
		return uint32(n), inRange(0, math.MaxUint32)
	case uacodec.TypeInt64:
		return n, nil
	case uacodec.TypeUInt64:
		return uint64(n), inRange(0, math.MaxInt64)
	case uacodec.TypeFloat:
		return float32(n), nil
	case uacodec.TypeDouble:
		return float64(n), nil
	case uacodec.TypeStatusCode:
		return uacodec.StatusCode(n), inRange(0, math.MaxUint32)
	case uacodec.TypeNodeID:
		return uacodec.NewNumericNodeID(0, uint32(n)), inRange(0, math.MaxUint32)
	case uacodec.TypeVariant:
		return uacodec.NewVariant(n), nil
	}
	return nil, fmt.Errorf("cannot use integer as %s", t)
}

// plain converts a host value to a form suitable for YAML or JSON output.
func plain(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *Record:
		return RecordToMap(x)
	case []*Record:
		out := make([]any, len(x))
		for i, r := range x {
			out[i] = plain(r)
		}
		return out
	case uacodec.Matrix:
		return map[string]any{"dimensions": x.Dimensions, "elements": plain(x.Elements)}
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return x.String()
	case uacodec.NodeID:
		return x.Format()
	case uacodec.ExpandedNodeID:
		return x.Format()
	case uacodec.QualifiedName:
		return x.Format()
	case uacodec.LocalizedText:
		return x.Text
	case uacodec.XMLElement:
		return string(x)
	case uacodec.StatusCode:
		return uint32(x)
	case uacodec.Variant:
		return plain(x.Value)
	case bool, string, int8, byte, int16, uint16, int32, uint32, int64, uint64, float32, float64:
		return x
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = plain(rv.Index(i).Interface())
		}
		return out
	}
	return uacodec.FormatValue(v)
}
