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

import "time"

// EncodeBinary returns the binary encoding of v.
func EncodeBinary(v Encodeable, opts ...Option) ([]byte, error) {
	if v == nil {
		return nil, EncodingError("", "nil value")
	}
	start := time.Now()
	enc := NewBinaryEncoder(opts...)
	err := enc.WriteEncodeable("", v)
	out := enc.Bytes()
	enc.opts.metrics.observeEncode(start, len(out), err)
	if err != nil {
		enc.opts.logger.Debug("binary encode failed", "type", v.TypeID().NodeID.Format(), "error", err)
		return nil, err
	}
	return out, nil
}

// DecodeBinary decodes data into v. Trailing bytes are an error.
func DecodeBinary(data []byte, v Encodeable, opts ...Option) error {
	if v == nil {
		return DecodingError("", "nil target")
	}
	start := time.Now()
	dec := NewBinaryDecoder(data, opts...)
	err := dec.ReadEncodeable("", v)
	if err == nil && dec.Remaining() != 0 {
		err = DecodingError("", "%d trailing bytes", dec.Remaining())
	}
	dec.opts.metrics.observeDecode(start, len(data), err)
	if err != nil {
		dec.opts.logger.Debug("binary decode failed", "type", v.TypeID().NodeID.Format(), "error", err)
	}
	return err
}

// EncodeXML returns the XML encoding of v as a document whose root element
// is named after the type of v.
func EncodeXML(v Encodeable, opts ...Option) ([]byte, error) {
	if v == nil {
		return nil, EncodingError("", "nil value")
	}
	start := time.Now()
	enc := NewXMLEncoder(opts...)
	err := enc.WriteEncodeable(elementName(v), v)
	var out []byte
	if err == nil {
		out, err = enc.Bytes()
	}
	enc.opts.metrics.observeEncode(start, len(out), err)
	if err != nil {
		enc.opts.logger.Debug("xml encode failed", "type", v.TypeID().NodeID.Format(), "error", err)
		return nil, err
	}
	return out, nil
}

// DecodeXML decodes an XML document into v.
func DecodeXML(data []byte, v Encodeable, opts ...Option) error {
	if v == nil {
		return DecodingError("", "nil target")
	}
	start := time.Now()
	o := applyOptions(opts)
	dec, err := NewXMLDecoder(data, opts...)
	if err == nil {
		err = dec.ReadEncodeable(dec.RootName(), v)
	}
	o.metrics.observeDecode(start, len(data), err)
	if err != nil {
		o.logger.Debug("xml decode failed", "type", v.TypeID().NodeID.Format(), "error", err)
	}
	return err
}
