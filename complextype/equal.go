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
	"strings"

	"github.com/edgeo-scada/uacodec"
)

// Equal reports whether two records hold the same values. Absent fields
// compare as their defaults, masked-out optional fields are ignored and
// unions compare only their active arm.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r == o {
		return true
	}
	if !sameSchema(r.schema, o.schema) {
		return false
	}

	switch r.schema.Kind {
	case Union:
		if r.switchField != o.switchField {
			return false
		}
		if r.switchField == 0 || int(r.switchField) > len(r.schema.fields) {
			return true
		}
		f := r.schema.fields[r.switchField-1]
		return uacodec.ValueEqual(r.valueOf(f), o.valueOf(f))
	case StructureWithOptionalFields:
		mask := r.schema.optionMask
		if r.encodingMask&mask != o.encodingMask&mask {
			return false
		}
	}

	for _, f := range r.schema.fields {
		if f.maskBit != 0 && r.encodingMask&f.maskBit == 0 {
			continue
		}
		if !uacodec.ValueEqual(r.valueOf(f), o.valueOf(f)) {
			return false
		}
	}
	return true
}

// IsEqual compares r with another encodeable.
func (r *Record) IsEqual(other uacodec.Encodeable) bool {
	o, ok := other.(*Record)
	return ok && r.Equal(o)
}

func sameSchema(a, b *Schema) bool {
	if a == b {
		return true
	}
	if a.Name != b.Name || a.Kind != b.Kind || len(a.fields) != len(b.fields) ||
		!a.typeID.Equal(b.typeID) {
		return false
	}
	for i, fa := range a.fields {
		fb := b.fields[i]
		if fa.Name != fb.Name || fa.WireType != fb.WireType || fa.ValueRank != fb.ValueRank ||
			fa.IsOptional != fb.IsOptional || fa.maskBit != fb.maskBit {
			return false
		}
		if (fa.Nested == nil) != (fb.Nested == nil) {
			return false
		}
		if fa.Nested != nil && !sameSchema(fa.Nested, fb.Nested) {
			return false
		}
	}
	return true
}

// String renders the field values as "{v1|v2|...}". Masked-out optional
// fields are skipped and a union shows only its active arm.
func (r *Record) String() string {
	if r == nil {
		return "(null)"
	}
	if len(r.schema.fields) == 0 {
		if r.schema.typeID.IsNull() {
			return "(null)"
		}
		return "{" + r.schema.typeID.Format() + "}"
	}

	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for _, f := range r.schema.fields {
		if !r.rendered(f) {
			continue
		}
		if !first {
			sb.WriteByte('|')
		}
		first = false
		sb.WriteString(uacodec.FormatValue(r.valueOf(f)))
	}
	sb.WriteByte('}')
	return sb.String()
}

func (r *Record) rendered(f *Field) bool {
	switch r.schema.Kind {
	case Union:
		return r.switchField == uint32(f.index+1)
	case StructureWithOptionalFields:
		return f.maskBit == 0 || r.encodingMask&f.maskBit != 0
	}
	return true
}
