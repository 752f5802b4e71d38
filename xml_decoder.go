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
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// xmlNode is one element of a parsed document.
type xmlNode struct {
	name     string
	text     string
	children []*xmlNode
}

// parseXML builds the element tree of a document.
func parseXML(r io.Reader) (*xmlNode, error) {
	dec := xml.NewDecoder(r)

	var stack []*xmlNode
	var root *xmlNode
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecoding, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			} else {
				return nil, fmt.Errorf("%w: unexpected element %s after document end", ErrDecoding, t.Name.Local)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrDecoding)
	}
	return root, nil
}

// render serialises the children of n back to XML.
func (n *xmlNode) render() string {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	var walk func(c *xmlNode)
	walk = func(c *xmlNode) {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: c.name}})
		if len(c.children) == 0 && c.text != "" {
			_ = enc.EncodeToken(xml.CharData(c.text))
		}
		for _, cc := range c.children {
			walk(cc)
		}
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: c.name}})
	}
	for _, c := range n.children {
		walk(c)
	}
	_ = enc.Flush()
	return buf.String()
}

type xmlFrame struct {
	node *xmlNode
	pos  int
}

// XMLDecoder reads the OPC UA XML encoding. Fields are matched by element
// name in document order; a missing element decodes as the zero value.
type XMLDecoder struct {
	root   *xmlNode
	frames []*xmlFrame
	opts   *codecOptions
	ns     []string
	depth  int
}

// NewXMLDecoder parses data and returns a decoder positioned inside the
// root element.
func NewXMLDecoder(data []byte, opts ...Option) (*XMLDecoder, error) {
	root, err := parseXML(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &XMLDecoder{
		root:   root,
		frames: []*xmlFrame{{node: &xmlNode{children: []*xmlNode{root}}}},
		opts:   applyOptions(opts),
	}, nil
}

// RootName returns the local name of the document element.
func (d *XMLDecoder) RootName() string {
	return d.root.name
}

// EncodingType returns EncodingXML.
func (d *XMLDecoder) EncodingType() EncodingType { return EncodingXML }

// UseReversibleEncoding returns false.
func (d *XMLDecoder) UseReversibleEncoding() bool { return false }

// PushNamespace records ns. Elements are matched by local name only.
func (d *XMLDecoder) PushNamespace(ns string) { d.ns = append(d.ns, ns) }

// PopNamespace drops the last pushed namespace.
func (d *XMLDecoder) PopNamespace() {
	if len(d.ns) > 0 {
		d.ns = d.ns[:len(d.ns)-1]
	}
}

func (d *XMLDecoder) frame() *xmlFrame {
	return d.frames[len(d.frames)-1]
}

func (d *XMLDecoder) push(n *xmlNode) {
	d.frames = append(d.frames, &xmlFrame{node: n})
}

func (d *XMLDecoder) pop() {
	d.frames = d.frames[:len(d.frames)-1]
}

func (d *XMLDecoder) peek(name string) (*xmlNode, int) {
	f := d.frame()
	for i := f.pos; i < len(f.node.children); i++ {
		if f.node.children[i].name == name {
			return f.node.children[i], i
		}
	}
	return nil, -1
}

// next consumes the next element named name, or returns nil when absent.
func (d *XMLDecoder) next(name string) *xmlNode {
	n, i := d.peek(name)
	if n != nil {
		d.frame().pos = i + 1
	}
	return n
}

// HasField reports whether an element named name follows.
func (d *XMLDecoder) HasField(name string) bool {
	n, _ := d.peek(name)
	return n != nil
}

func (d *XMLDecoder) scalar(name string) (string, bool) {
	n := d.next(name)
	if n == nil {
		return "", false
	}
	return strings.TrimSpace(n.text), true
}

func (d *XMLDecoder) parseInt(name string, bits int) (int64, error) {
	s, ok := d.scalar(name)
	if !ok || s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return 0, DecodingError(name, "invalid integer %q", s)
	}
	return v, nil
}

func (d *XMLDecoder) parseUint(name string, bits int) (uint64, error) {
	s, ok := d.scalar(name)
	if !ok || s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, DecodingError(name, "invalid unsigned integer %q", s)
	}
	return v, nil
}

// ReadBoolean reads a boolean value.
func (d *XMLDecoder) ReadBoolean(name string) (bool, error) {
	s, ok := d.scalar(name)
	if !ok || s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, DecodingError(name, "invalid boolean %q", s)
	}
	return v, nil
}

// ReadSByte reads a signed byte value.
func (d *XMLDecoder) ReadSByte(name string) (int8, error) {
	v, err := d.parseInt(name, 8)
	return int8(v), err
}

// ReadByteValue reads a byte value.
func (d *XMLDecoder) ReadByteValue(name string) (byte, error) {
	v, err := d.parseUint(name, 8)
	return byte(v), err
}

// ReadInt16 reads an int16 value.
func (d *XMLDecoder) ReadInt16(name string) (int16, error) {
	v, err := d.parseInt(name, 16)
	return int16(v), err
}

// ReadUInt16 reads a uint16 value.
func (d *XMLDecoder) ReadUInt16(name string) (uint16, error) {
	v, err := d.parseUint(name, 16)
	return uint16(v), err
}

// ReadInt32 reads an int32 value.
func (d *XMLDecoder) ReadInt32(name string) (int32, error) {
	v, err := d.parseInt(name, 32)
	return int32(v), err
}

// ReadUInt32 reads a uint32 value.
func (d *XMLDecoder) ReadUInt32(name string) (uint32, error) {
	v, err := d.parseUint(name, 32)
	return uint32(v), err
}

// ReadInt64 reads an int64 value.
func (d *XMLDecoder) ReadInt64(name string) (int64, error) {
	return d.parseInt(name, 64)
}

// ReadUInt64 reads a uint64 value.
func (d *XMLDecoder) ReadUInt64(name string) (uint64, error) {
	return d.parseUint(name, 64)
}

func (d *XMLDecoder) parseFloat(name string, bits int) (float64, error) {
	s, ok := d.scalar(name)
	if !ok || s == "" {
		return 0, nil
	}
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0, DecodingError(name, "invalid float %q", s)
	}
	return v, nil
}

// ReadFloat reads a float32 value.
func (d *XMLDecoder) ReadFloat(name string) (float32, error) {
	v, err := d.parseFloat(name, 32)
	return float32(v), err
}

// ReadDouble reads a float64 value.
func (d *XMLDecoder) ReadDouble(name string) (float64, error) {
	return d.parseFloat(name, 64)
}

// ReadString reads a string value.
func (d *XMLDecoder) ReadString(name string) (string, error) {
	n := d.next(name)
	if n == nil {
		return "", nil
	}
	if d.opts.maxStringLength > 0 && len(n.text) > d.opts.maxStringLength {
		return "", &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "string too long", Err: ErrLimitsExceeded}
	}
	return n.text, nil
}

// ReadDateTime reads a DateTime value.
func (d *XMLDecoder) ReadDateTime(name string) (time.Time, error) {
	s, ok := d.scalar(name)
	if !ok || s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, DecodingError(name, "invalid date time %q", s)
	}
	if t.IsZero() {
		return time.Time{}, nil
	}
	return t.UTC(), nil
}

// ReadGUID reads a GUID value.
func (d *XMLDecoder) ReadGUID(name string) (uuid.UUID, error) {
	n := d.next(name)
	if n == nil {
		return uuid.Nil, nil
	}
	d.push(n)
	defer d.pop()
	s, ok := d.scalar("String")
	if !ok || s == "" {
		return uuid.Nil, nil
	}
	g, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, DecodingError(name, "invalid guid %q", s)
	}
	return g, nil
}

// ReadByteString reads a base64 byte string. A missing element decodes as nil.
func (d *XMLDecoder) ReadByteString(name string) ([]byte, error) {
	n := d.next(name)
	if n == nil {
		return nil, nil
	}
	b, err := decodeBase64(n.text)
	if err != nil {
		return nil, DecodingError(name, "invalid base64: %v", err)
	}
	if d.opts.maxStringLength > 0 && len(b) > d.opts.maxStringLength {
		return nil, &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "byte string too long", Err: ErrLimitsExceeded}
	}
	return b, nil
}

// ReadXMLElement reads the content of the element as an XML fragment.
func (d *XMLDecoder) ReadXMLElement(name string) (XMLElement, error) {
	n := d.next(name)
	if n == nil {
		return "", nil
	}
	return XMLElement(n.render()), nil
}

func (d *XMLDecoder) identifier(name string) (string, bool) {
	n := d.next(name)
	if n == nil {
		return "", false
	}
	d.push(n)
	defer d.pop()
	return d.scalar("Identifier")
}

// ReadNodeID reads a NodeID value.
func (d *XMLDecoder) ReadNodeID(name string) (NodeID, error) {
	s, ok := d.identifier(name)
	if !ok || s == "" {
		return NodeID{}, nil
	}
	id, err := ParseNodeID(s)
	if err != nil {
		return NodeID{}, WrapField(name, err)
	}
	return id, nil
}

// ReadExpandedNodeID reads an ExpandedNodeID value.
func (d *XMLDecoder) ReadExpandedNodeID(name string) (ExpandedNodeID, error) {
	s, ok := d.identifier(name)
	if !ok || s == "" {
		return ExpandedNodeID{}, nil
	}
	id, err := ParseExpandedNodeID(s)
	if err != nil {
		return ExpandedNodeID{}, WrapField(name, err)
	}
	return id, nil
}

// ReadStatusCode reads a StatusCode value.
func (d *XMLDecoder) ReadStatusCode(name string) (StatusCode, error) {
	n := d.next(name)
	if n == nil {
		return StatusGood, nil
	}
	d.push(n)
	defer d.pop()
	v, err := d.ReadUInt32("Code")
	return StatusCode(v), err
}

// ReadQualifiedName reads a QualifiedName value.
func (d *XMLDecoder) ReadQualifiedName(name string) (QualifiedName, error) {
	n := d.next(name)
	if n == nil {
		return QualifiedName{}, nil
	}
	d.push(n)
	defer d.pop()
	ns, err := d.ReadUInt16("NamespaceIndex")
	if err != nil {
		return QualifiedName{}, err
	}
	s, err := d.ReadString("Name")
	if err != nil {
		return QualifiedName{}, err
	}
	return QualifiedName{NamespaceIndex: ns, Name: s}, nil
}

// ReadLocalizedText reads a LocalizedText value.
func (d *XMLDecoder) ReadLocalizedText(name string) (LocalizedText, error) {
	n := d.next(name)
	if n == nil {
		return LocalizedText{}, nil
	}
	d.push(n)
	defer d.pop()
	locale, err := d.ReadString("Locale")
	if err != nil {
		return LocalizedText{}, err
	}
	text, err := d.ReadString("Text")
	if err != nil {
		return LocalizedText{}, err
	}
	return LocalizedText{Locale: locale, Text: text}, nil
}

// ReadExtensionObject reads an ExtensionObject. Bodies whose encoding id is
// known to the factory are decoded; others are kept as raw content.
func (d *XMLDecoder) ReadExtensionObject(name string) (*ExtensionObject, error) {
	n := d.next(name)
	if n == nil {
		return nil, nil
	}
	d.push(n)
	defer d.pop()

	id, err := d.ReadExpandedNodeID("TypeId")
	if err != nil {
		return nil, err
	}
	body := d.next("Body")
	if body == nil || len(body.children) == 0 {
		if id.IsNull() {
			return nil, nil
		}
		return &ExtensionObject{TypeID: id}, nil
	}

	if d.opts.factory != nil {
		if v, ok := d.opts.factory.NewEncodeable(id); ok {
			d.push(body)
			err := d.ReadEncodeable(body.children[0].name, v)
			d.pop()
			if err != nil {
				return nil, err
			}
			return &ExtensionObject{TypeID: v.TypeID(), Body: v}, nil
		}
	}

	if len(body.children) == 1 && body.children[0].name == "ByteString" {
		b, err := decodeBase64(body.children[0].text)
		if err != nil {
			return nil, DecodingError(name, "invalid base64: %v", err)
		}
		return &ExtensionObject{TypeID: id, Body: b}, nil
	}
	return &ExtensionObject{TypeID: id, Body: XMLElement(body.render())}, nil
}

// ReadDataValue reads a DataValue value.
func (d *XMLDecoder) ReadDataValue(name string) (*DataValue, error) {
	n := d.next(name)
	if n == nil {
		return nil, nil
	}
	d.push(n)
	defer d.pop()

	dv := &DataValue{}
	var err error
	if d.HasField("Value") {
		v, err := d.ReadVariant("Value")
		if err != nil {
			return nil, err
		}
		dv.Value = &v
	}
	if dv.StatusCode, err = d.ReadStatusCode("StatusCode"); err != nil {
		return nil, err
	}
	if dv.SourceTimestamp, err = d.ReadDateTime("SourceTimestamp"); err != nil {
		return nil, err
	}
	if dv.SourcePicoseconds, err = d.ReadUInt16("SourcePicoseconds"); err != nil {
		return nil, err
	}
	if dv.ServerTimestamp, err = d.ReadDateTime("ServerTimestamp"); err != nil {
		return nil, err
	}
	if dv.ServerPicoseconds, err = d.ReadUInt16("ServerPicoseconds"); err != nil {
		return nil, err
	}
	return dv, nil
}

// ReadVariant reads a Variant value.
func (d *XMLDecoder) ReadVariant(name string) (Variant, error) {
	n := d.next(name)
	if n == nil {
		return Variant{}, nil
	}
	d.push(n)
	defer d.pop()

	val := d.next("Value")
	if val == nil || len(val.children) == 0 {
		return Variant{}, nil
	}
	if d.depth >= d.opts.maxDepth {
		return Variant{}, &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
	}
	d.depth++
	defer func() { d.depth-- }()

	d.push(val)
	defer d.pop()
	body := val.children[0]

	switch {
	case body.name == "Matrix":
		d.next("Matrix")
		d.push(body)
		defer d.pop()
		dimsAny, err := d.ReadArray("Dimensions", ValueRankOneDimension, TypeInt32, nil)
		if err != nil {
			return Variant{}, err
		}
		dims, _ := dimsAny.([]int32)
		elemsNode := d.next("Elements")
		if elemsNode == nil || len(elemsNode.children) == 0 {
			return Variant{}, nil
		}
		t, ok := ParseBuiltInType(elemsNode.children[0].name)
		if !ok {
			return Variant{}, DecodingError(name, "unknown variant type %q", elemsNode.children[0].name)
		}
		d.push(elemsNode)
		elems, err := d.readChildren(name, t, nil)
		d.pop()
		if err != nil {
			return Variant{}, err
		}
		m := Matrix{Dimensions: dims, Elements: elems}
		if m.Len() != len(elemsNode.children) {
			return Variant{}, DecodingError(name, "matrix elements do not match dimensions %v", dims)
		}
		return Variant{Type: t, Value: m}, nil

	case strings.HasPrefix(body.name, "ListOf"):
		t, ok := ParseBuiltInType(strings.TrimPrefix(body.name, "ListOf"))
		if !ok {
			return Variant{}, DecodingError(name, "unknown variant type %q", body.name)
		}
		d.next(body.name)
		d.push(body)
		elems, err := d.readChildren(name, t, nil)
		d.pop()
		if err != nil {
			return Variant{}, err
		}
		return Variant{Type: t, Value: elems}, nil

	default:
		t, ok := ParseBuiltInType(body.name)
		if !ok || t == TypeEnumeration || t == TypeNull {
			return Variant{}, DecodingError(name, "unknown variant type %q", body.name)
		}
		v, err := DecodeScalar(d, body.name, t)
		if err != nil {
			return Variant{}, err
		}
		return Variant{Type: t, Value: v}, nil
	}
}

// ReadDiagnosticInfo reads a DiagnosticInfo value.
func (d *XMLDecoder) ReadDiagnosticInfo(name string) (*DiagnosticInfo, error) {
	n := d.next(name)
	if n == nil {
		return nil, nil
	}
	d.push(n)
	defer d.pop()

	di := &DiagnosticInfo{SymbolicID: -1, NamespaceURI: -1, Locale: -1, LocalizedText: -1}
	var err error
	if d.HasField("SymbolicId") {
		if di.SymbolicID, err = d.ReadInt32("SymbolicId"); err != nil {
			return nil, err
		}
	}
	if d.HasField("NamespaceUri") {
		if di.NamespaceURI, err = d.ReadInt32("NamespaceUri"); err != nil {
			return nil, err
		}
	}
	if d.HasField("Locale") {
		if di.Locale, err = d.ReadInt32("Locale"); err != nil {
			return nil, err
		}
	}
	if d.HasField("LocalizedText") {
		if di.LocalizedText, err = d.ReadInt32("LocalizedText"); err != nil {
			return nil, err
		}
	}
	if di.AdditionalInfo, err = d.ReadString("AdditionalInfo"); err != nil {
		return nil, err
	}
	if di.InnerStatusCode, err = d.ReadStatusCode("InnerStatusCode"); err != nil {
		return nil, err
	}
	if d.HasField("InnerDiagnosticInfo") {
		if d.depth >= d.opts.maxDepth {
			return nil, &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
		}
		d.depth++
		di.InnerDiagnosticInfo, err = d.ReadDiagnosticInfo("InnerDiagnosticInfo")
		d.depth--
		if err != nil {
			return nil, err
		}
	}
	return di, nil
}

// ReadEnumerated reads an enumerated value written as "Symbol_Value" or as
// a bare number.
func (d *XMLDecoder) ReadEnumerated(name string) (int32, error) {
	s, ok := d.scalar(name)
	if !ok || s == "" {
		return 0, nil
	}
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, DecodingError(name, "invalid enumerated value %q", s)
	}
	return int32(v), nil
}

// ReadEncodeable decodes the element named name into v. A missing element
// leaves v untouched.
func (d *XMLDecoder) ReadEncodeable(name string, v Encodeable) error {
	if v == nil {
		return DecodingError(name, "nil encodeable")
	}
	n := d.next(name)
	if n == nil {
		return nil
	}
	if d.depth >= d.opts.maxDepth {
		return &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "maximum nesting depth exceeded"}
	}
	d.depth++
	defer func() { d.depth-- }()
	d.push(n)
	defer d.pop()
	return v.Decode(d)
}

// ReadArray reads an array element. A missing element decodes as a nil array.
func (d *XMLDecoder) ReadArray(name string, valueRank int32, t BuiltInType, newElem func() Encodeable) (any, error) {
	if valueRank < ValueRankOneDimension {
		return nil, DecodingError(name, "unsupported value rank %d", valueRank)
	}
	n := d.next(name)
	if n == nil {
		if valueRank == ValueRankOneDimension {
			return nilSlice(t), nil
		}
		return nil, nil
	}
	d.push(n)
	defer d.pop()

	if valueRank == ValueRankOneDimension {
		return d.readChildren(name, t, newElem)
	}

	dimsAny, err := d.ReadArray("Dimensions", ValueRankOneDimension, TypeInt32, nil)
	if err != nil {
		return nil, err
	}
	dims, _ := dimsAny.([]int32)
	m := Matrix{Dimensions: dims}
	elemsNode := d.next("Elements")
	if elemsNode == nil {
		m.Elements = makeSlice(t, nil)
	} else {
		d.push(elemsNode)
		m.Elements, err = d.readChildren(name, t, newElem)
		d.pop()
		if err != nil {
			return nil, err
		}
	}
	if count := elemCount(elemsNode); count != m.Len() {
		return nil, DecodingError(name, "matrix has %d elements, dimensions %v", count, dims)
	}
	return m, nil
}

// readChildren decodes every child of the current element as type t.
func (d *XMLDecoder) readChildren(name string, t BuiltInType, newElem func() Encodeable) (any, error) {
	f := d.frame()
	if d.opts.maxArrayLength > 0 && len(f.node.children) > d.opts.maxArrayLength {
		return nil, &CodecError{StatusCode: StatusBadEncodingLimitsExceeded, Field: name, Message: "array too long", Err: ErrLimitsExceeded}
	}
	elems := make([]any, 0, len(f.node.children))
	for f.pos < len(f.node.children) {
		child := f.node.children[f.pos]
		if t == TypeNull {
			if newElem == nil {
				return nil, DecodingError(name, "no element factory for structure array")
			}
			el := newElem()
			if err := d.ReadEncodeable(child.name, el); err != nil {
				return nil, err
			}
			elems = append(elems, el)
			continue
		}
		v, err := DecodeScalar(d, child.name, t)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
	return makeSlice(t, elems), nil
}

func elemCount(n *xmlNode) int {
	if n == nil {
		return 0
	}
	return len(n.children)
}
