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
	"reflect"
	"time"
)

// Equaler is implemented by values with their own notion of equality.
type Equaler interface {
	IsEqual(other Encodeable) bool
}

// ValueEqual compares two host values by wire semantics. Nil and empty
// slices are distinct, but a nil interface equals a nil slice.
func ValueEqual(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}

	switch x := a.(type) {
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case NodeID:
		y, ok := b.(NodeID)
		return ok && x.Equal(y)
	case ExpandedNodeID:
		y, ok := b.(ExpandedNodeID)
		return ok && x.Equal(y)
	case *ExtensionObject:
		return extensionObjectEqual(x, b)
	case *DataValue:
		y, ok := b.(*DataValue)
		return ok && dataValueEqual(x, y)
	case Variant:
		y, ok := b.(Variant)
		return ok && x.Type == y.Type && ValueEqual(x.Value, y.Value)
	case Matrix:
		y, ok := b.(Matrix)
		return ok && reflect.DeepEqual(x.Dimensions, y.Dimensions) && ValueEqual(x.Elements, y.Elements)
	case Equaler:
		y, ok := b.(Encodeable)
		return ok && x.IsEqual(y)
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.Slice && rb.Kind() == reflect.Slice {
		if ra.Type() != rb.Type() || ra.Len() != rb.Len() {
			return false
		}
		for i := 0; i < ra.Len(); i++ {
			if !ValueEqual(ra.Index(i).Interface(), rb.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func extensionObjectEqual(x *ExtensionObject, b any) bool {
	switch y := b.(type) {
	case *ExtensionObject:
		_, xe := x.Body.(Encodeable)
		_, ye := y.Body.(Encodeable)
		if !(xe && ye) && !x.TypeID.Equal(y.TypeID) {
			return false
		}
		return ValueEqual(x.Body, y.Body)
	case Encodeable:
		return ValueEqual(x.Body, y)
	}
	return false
}

func dataValueEqual(x, y *DataValue) bool {
	if x.StatusCode != y.StatusCode ||
		x.SourcePicoseconds != y.SourcePicoseconds ||
		x.ServerPicoseconds != y.ServerPicoseconds ||
		!x.SourceTimestamp.Equal(y.SourceTimestamp) ||
		!x.ServerTimestamp.Equal(y.ServerTimestamp) {
		return false
	}
	if x.Value == nil || y.Value == nil {
		return x.Value == nil && y.Value == nil
	}
	return ValueEqual(*x.Value, *y.Value)
}
