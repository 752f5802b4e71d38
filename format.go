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
	"fmt"
	"reflect"
	"strings"
	"time"
)

// FormatValue renders a host value for display. Byte strings show their
// length, arrays are bracketed and matrices nest one bracket per dimension.
func FormatValue(v any) string {
	var sb strings.Builder
	formatValue(&sb, v)
	return sb.String()
}

func formatValue(sb *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("(null)")
	case []byte:
		if x == nil {
			sb.WriteString("(null)")
			return
		}
		fmt.Fprintf(sb, "Byte[%d]", len(x))
	case string:
		sb.WriteString(x)
	case time.Time:
		sb.WriteString(x.UTC().Format(time.RFC3339Nano))
	case XMLElement:
		sb.WriteString("<" + x.Name() + ">")
	case NodeID:
		sb.WriteString(x.Format())
	case ExpandedNodeID:
		sb.WriteString(x.Format())
	case QualifiedName:
		sb.WriteString(x.Format())
	case LocalizedText:
		sb.WriteString(x.Text)
	case StatusCode:
		sb.WriteString(x.String())
	case Variant:
		formatValue(sb, x.Value)
	case *DataValue:
		if x == nil || x.Value == nil {
			sb.WriteString("(null)")
			return
		}
		formatValue(sb, x.Value.Value)
	case *ExtensionObject:
		if x.IsNull() {
			sb.WriteString("(null)")
			return
		}
		formatValue(sb, x.Body)
	case Matrix:
		elems, ok := sliceElements(x.Elements)
		if !ok || len(elems) != x.Len() {
			sb.WriteString("[?]")
			return
		}
		formatMatrix(sb, elems, x.Dimensions)
	case fmt.Stringer:
		if isNil(x) {
			sb.WriteString("(null)")
			return
		}
		sb.WriteString(x.String())
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			fmt.Fprint(sb, v)
			return
		}
		if rv.IsNil() {
			sb.WriteString("(null)")
			return
		}
		elems, _ := sliceElements(v)
		formatList(sb, elems)
	}
}

func formatList(sb *strings.Builder, elems []any) {
	sb.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			sb.WriteByte(',')
		}
		formatValue(sb, e)
	}
	sb.WriteByte(']')
}

func formatMatrix(sb *strings.Builder, elems []any, dims []int32) {
	if len(dims) <= 1 || dims[0] <= 0 {
		formatList(sb, elems)
		return
	}
	stride := len(elems) / int(dims[0])
	sb.WriteByte('[')
	for i := 0; i < int(dims[0]); i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		formatMatrix(sb, elems[i*stride:(i+1)*stride], dims[1:])
	}
	sb.WriteByte(']')
}
