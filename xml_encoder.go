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
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// XMLEncoder writes the OPC UA XML encoding. It is not reversible: union
// arms are written under their own names and the optional-field mask is not
// written at all.
type XMLEncoder struct {
	buf   *bytes.Buffer
	enc   *xml.Encoder
	opts  *codecOptions
	ns    []string
	open  []string
	depth int
	err   error
}

// NewXMLEncoder creates a new XML encoder.
func NewXMLEncoder(opts ...Option) *XMLEncoder {
	o := applyOptions(opts)
	buf := new(bytes.Buffer)
	enc := xml.NewEncoder(buf)
	if o.indent != "" {
		enc.Indent("", o.indent)
	}
	return &XMLEncoder{buf: buf, enc: enc, opts: o}
}

// Bytes flushes pending tokens and returns the document.
func (e *XMLEncoder) Bytes() ([]byte, error) {
	if err := e.enc.Flush(); err != nil && e.err == nil {
		e.err = err
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.buf.Bytes(), nil
}

// EncodingType returns EncodingXML.
func (e *XMLEncoder) EncodingType() EncodingType { return EncodingXML }

// UseReversibleEncoding returns false.
func (e *XMLEncoder) UseReversibleEncoding() bool { return false }

// PushNamespace makes ns the namespace of subsequently started elements.
func (e *XMLEncoder) PushNamespace(ns string) { e.ns = append(e.ns, ns) }

// PopNamespace restores the previous namespace.
func (e *XMLEncoder) PopNamespace() {
	if len(e.ns) > 0 {
		e.ns = e.ns[:len(e.ns)-1]
	}
}

func (e *XMLEncoder) namespace() string {
	if len(e.ns) > 0 {
		return e.ns[len(e.ns)-1]
	}
	return e.opts.namespace
}

func (e *XMLEncoder) token(t xml.Token) {
	if e.err != nil {
		return
	}
	e.err = e.enc.EncodeToken(t)
}

// start opens an element, declaring the namespace only where it changes.
func (e *XMLEncoder) start(name string) {
	ns := e.namespace()
	se := xml.StartElement{Name: xml.Name{Local: name}}
	if ns != "" && (len(e.open) == 0 || e.open[len(e.open)-1] != ns) {
		se.Attr = []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: ns}}
	}
	e.open = append(e.open, ns)
	e.token(se)
}

func (e *XMLEncoder) end(name string) {
	if len(e.open) > 0 {
		e.open = e.open[:len(e.open)-1]
	}
	e.token(xml.EndElement{Name: xml.Name{Local: name}})
}

func (e *XMLEncoder) text(name, s string) {
	e.start(name)
	if s != "" {
		e.token(xml.CharData(s))
	}
	e.end(name)
}

// WriteBoolean writes a boolean value.
func (e *XMLEncoder) WriteBoolean(name string, v bool) {
	e.text(name, strconv.FormatBool(v))
}

// WriteSByte writes a signed byte value.
func (e *XMLEncoder) WriteSByte(name string, v int8) {
	e.text(name, strconv.FormatInt(int64(v), 10))
}

// WriteByteValue writes a byte value.
func (e *XMLEncoder) WriteByteValue(name string, v byte) {
	e.text(name, strconv.FormatUint(uint64(v), 10))
}

// WriteInt16 writes an int16 value.
func (e *XMLEncoder) WriteInt16(name string, v int16) {
	e.text(name, strconv.FormatInt(int64(v), 10))
}

// WriteUInt16 writes a uint16 value.
func (e *XMLEncoder) WriteUInt16(name string, v uint16) {
	e.text(name, strconv.FormatUint(uint64(v), 10))
}

// WriteInt32 writes an int32 value.
func (e *XMLEncoder) WriteInt32(name string, v int32) {
	e.text(name, strconv.FormatInt(int64(v), 10))
}

// WriteUInt32 writes a uint32 value.
func (e *XMLEncoder) WriteUInt32(name string, v uint32) {
	e.text(name, strconv.FormatUint(uint64(v), 10))
}

// WriteInt64 writes an int64 value.
func (e *XMLEncoder) WriteInt64(name string, v int64) {
	e.text(name, strconv.FormatInt(v, 10))
}

// WriteUInt64 writes a uint64 value.
func (e *XMLEncoder) WriteUInt64(name string, v uint64) {
	e.text(name, strconv.FormatUint(v, 10))
}

// WriteFloat writes a float32 value.
func (e *XMLEncoder) WriteFloat(name string, v float32) {
	e.text(name, formatFloat(float64(v), 32))
}

// WriteDouble writes a float64 value.
func (e *XMLEncoder) WriteDouble(name string, v float64) {
	e.text(name, formatFloat(v, 64))
}

func formatFloat(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "INF"
	case math.IsInf(v, -1):
		return "-INF"
	}
	return strconv.FormatFloat(v, 'g', -1, bits)
}

// WriteString writes a string value.
func (e *XMLEncoder) WriteString(name string, v string) {
	e.text(name, v)
}

// WriteDateTime writes a DateTime value in RFC 3339 form.
func (e *XMLEncoder) WriteDateTime(name string, v time.Time) {
	e.text(name, v.UTC().Format(time.RFC3339Nano))
}

// WriteGUID writes a GUID value.
func (e *XMLEncoder) WriteGUID(name string, v uuid.UUID) {
	e.start(name)
	e.text("String", v.String())
	e.end(name)
}

// WriteByteString writes a byte string as base64. A nil value writes nothing.
func (e *XMLEncoder) WriteByteString(name string, v []byte) {
	if v == nil {
		return
	}
	e.text(name, encodeBase64(v))
}

// WriteXMLElement writes an XML fragment as the content of the element.
func (e *XMLEncoder) WriteXMLElement(name string, v XMLElement) {
	if v == "" {
		return
	}
	e.start(name)
	e.copyFragment(string(v))
	e.end(name)
}

func (e *XMLEncoder) copyFragment(s string) {
	dec := xml.NewDecoder(strings.NewReader(s))
	for e.err == nil {
		tok, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			e.err = EncodingError("", "invalid xml element: %v", err)
			return
		}
		switch t := tok.(type) {
		case xml.ProcInst, xml.Directive:
			continue
		case xml.StartElement:
			t.Name.Space = ""
			e.token(t.Copy())
		case xml.EndElement:
			t.Name.Space = ""
			e.token(t)
		default:
			e.token(xml.CopyToken(tok))
		}
	}
}

// WriteNodeID writes a NodeID value.
func (e *XMLEncoder) WriteNodeID(name string, v NodeID) {
	e.start(name)
	e.text("Identifier", v.Format())
	e.end(name)
}

// WriteExpandedNodeID writes an ExpandedNodeID value.
func (e *XMLEncoder) WriteExpandedNodeID(name string, v ExpandedNodeID) {
	e.start(name)
	e.text("Identifier", v.Format())
	e.end(name)
}

// WriteStatusCode writes a StatusCode value.
func (e *XMLEncoder) WriteStatusCode(name string, v StatusCode) {
	e.start(name)
	e.WriteUInt32("Code", uint32(v))
	e.end(name)
}

// WriteQualifiedName writes a QualifiedName value.
func (e *XMLEncoder) WriteQualifiedName(name string, v QualifiedName) {
	e.start(name)
	e.WriteUInt16("NamespaceIndex", v.NamespaceIndex)
	e.WriteString("Name", v.Name)
	e.end(name)
}

// WriteLocalizedText writes a LocalizedText value.
func (e *XMLEncoder) WriteLocalizedText(name string, v LocalizedText) {
	e.start(name)
	if v.Locale != "" {
		e.WriteString("Locale", v.Locale)
	}
	if v.Text != "" {
		e.WriteString("Text", v.Text)
	}
	e.end(name)
}

// WriteExtensionObject writes the type id and the body of v.
func (e *XMLEncoder) WriteExtensionObject(name string, v *ExtensionObject) error {
	if v == nil {
		return nil
	}
	e.start(name)
	defer e.end(name)

	switch body := v.Body.(type) {
	case nil:
		e.WriteExpandedNodeID("TypeId", v.TypeID)
	case Encodeable:
		id := body.XMLEncodingID()
		if id.IsNull() {
			id = v.TypeID
		}
		e.WriteExpandedNodeID("TypeId", id)
		e.start("Body")
		err := e.WriteEncodeable(elementName(body), body)
		e.end("Body")
		return err
	case []byte:
		e.WriteExpandedNodeID("TypeId", v.TypeID)
		e.start("Body")
		e.WriteByteString("ByteString", body)
		e.end("Body")
	case XMLElement:
		e.WriteExpandedNodeID("TypeId", v.TypeID)
		e.WriteXMLElement("Body", body)
	default:
		return EncodingError(name, "unsupported extension object body %T", v.Body)
	}
	return e.err
}

// WriteDataValue writes a DataValue value.
func (e *XMLEncoder) WriteDataValue(name string, v *DataValue) error {
	if v == nil {
		return nil
	}
	e.start(name)
	defer e.end(name)

	if v.Value != nil && !v.Value.IsNull() {
		if err := e.WriteVariant("Value", *v.Value); err != nil {
			return err
		}
	}
	if v.StatusCode != StatusGood {
		e.WriteStatusCode("StatusCode", v.StatusCode)
	}
	if !v.SourceTimestamp.IsZero() {
		e.WriteDateTime("SourceTimestamp", v.SourceTimestamp)
	}
	if v.SourcePicoseconds != 0 {
		e.WriteUInt16("SourcePicoseconds", v.SourcePicoseconds)
	}
	if !v.ServerTimestamp.IsZero() {
		e.WriteDateTime("ServerTimestamp", v.ServerTimestamp)
	}
	if v.ServerPicoseconds != 0 {
		e.WriteUInt16("ServerPicoseconds", v.ServerPicoseconds)
	}
	return e.err
}

// WriteVariant writes a Variant as a Value element holding an element named
// after the type, "ListOf<Type>" for arrays or "Matrix" for matrices.
func (e *XMLEncoder) WriteVariant(name string, v Variant) error {
	if v.IsNull() {
		return nil
	}
	if e.depth >= e.opts.maxDepth {
		return &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
	}
	e.depth++
	defer func() { e.depth-- }()

	t := variantElemType(v.Type)
	array, elems, dims, err := variantShape(name, v)
	if err != nil {
		return err
	}

	e.start(name)
	e.start("Value")
	switch {
	case !array:
		err = EncodeScalar(e, t.String(), t, v.Value)
	case len(dims) > 1:
		e.start("Matrix")
		err = e.WriteArray("Dimensions", dims, ValueRankOneDimension, TypeInt32)
		if err == nil {
			e.start("Elements")
			err = e.writeElements(elems, t)
			e.end("Elements")
		}
		e.end("Matrix")
	default:
		e.start("ListOf" + t.String())
		err = e.writeElements(elems, t)
		e.end("ListOf" + t.String())
	}
	e.end("Value")
	e.end(name)
	if err != nil {
		return err
	}
	return e.err
}

// WriteDiagnosticInfo writes a DiagnosticInfo value.
func (e *XMLEncoder) WriteDiagnosticInfo(name string, v *DiagnosticInfo) {
	if v == nil {
		return
	}
	e.start(name)
	if v.SymbolicID >= 0 {
		e.WriteInt32("SymbolicId", v.SymbolicID)
	}
	if v.NamespaceURI >= 0 {
		e.WriteInt32("NamespaceUri", v.NamespaceURI)
	}
	if v.Locale >= 0 {
		e.WriteInt32("Locale", v.Locale)
	}
	if v.LocalizedText >= 0 {
		e.WriteInt32("LocalizedText", v.LocalizedText)
	}
	if v.AdditionalInfo != "" {
		e.WriteString("AdditionalInfo", v.AdditionalInfo)
	}
	if v.InnerStatusCode != StatusGood {
		e.WriteStatusCode("InnerStatusCode", v.InnerStatusCode)
	}
	if v.InnerDiagnosticInfo != nil {
		e.WriteDiagnosticInfo("InnerDiagnosticInfo", v.InnerDiagnosticInfo)
	}
	e.end(name)
}

// WriteEnumerated writes an enumerated value as "Symbol_Value", or just the
// number when the symbol is unknown.
func (e *XMLEncoder) WriteEnumerated(name string, v int32, symbol string) {
	s := strconv.FormatInt(int64(v), 10)
	if symbol != "" {
		s = symbol + "_" + s
	}
	e.text(name, s)
}

// WriteEncodeable writes v as an element containing its fields.
func (e *XMLEncoder) WriteEncodeable(name string, v Encodeable) error {
	if v == nil {
		return EncodingError(name, "nil encodeable")
	}
	if e.depth >= e.opts.maxDepth {
		return &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
	}
	e.depth++
	defer func() { e.depth-- }()

	e.start(name)
	err := v.Encode(e)
	e.end(name)
	if err != nil {
		return err
	}
	return e.err
}

// WriteArray writes an array as an element whose children are named after
// the element type. A matrix holds Dimensions and Elements children. A nil
// array writes nothing.
func (e *XMLEncoder) WriteArray(name string, v any, valueRank int32, t BuiltInType) error {
	if valueRank < ValueRankOneDimension {
		return EncodingError(name, "unsupported value rank %d", valueRank)
	}

	if valueRank == ValueRankOneDimension {
		elems, ok := sliceElements(v)
		if !ok {
			return mismatch(name, t, v)
		}
		if elems == nil {
			return nil
		}
		e.start(name)
		err := e.writeElements(elems, t)
		e.end(name)
		if err != nil {
			return err
		}
		return e.err
	}

	m, ok := asMatrix(v)
	if !ok {
		return mismatch(name, t, v)
	}
	if m == nil {
		return nil
	}
	if len(m.Dimensions) != int(valueRank) {
		return EncodingError(name, "matrix has %d dimensions, want %d", len(m.Dimensions), valueRank)
	}
	elems, ok := sliceElements(m.Elements)
	if !ok || len(elems) != m.Len() {
		return EncodingError(name, "matrix elements do not match dimensions %v", m.Dimensions)
	}
	e.start(name)
	err := e.WriteArray("Dimensions", m.Dimensions, ValueRankOneDimension, TypeInt32)
	if err == nil {
		e.start("Elements")
		err = e.writeElements(elems, t)
		e.end("Elements")
	}
	e.end(name)
	if err != nil {
		return err
	}
	return e.err
}

func (e *XMLEncoder) writeElements(elems []any, t BuiltInType) error {
	for _, el := range elems {
		n := t.String()
		switch t {
		case TypeNull:
			if enc, ok := el.(Encodeable); ok {
				n = elementName(enc)
			}
		case TypeEnumeration:
			n = TypeInt32.String()
		}
		if err := EncodeScalar(e, n, t, el); err != nil {
			return err
		}
	}
	return nil
}

func elementName(v Encodeable) string {
	if tn, ok := v.(TypeNamer); ok && tn.TypeName() != "" {
		return tn.TypeName()
	}
	return "Structure"
}
