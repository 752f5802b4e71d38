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
	"errors"
	"fmt"
)

// StatusCode severity levels.
const (
	StatusSeverityGood      uint32 = 0x00000000
	StatusSeverityUncertain uint32 = 0x40000000
	StatusSeverityBad       uint32 = 0x80000000
	StatusSeverityMask      uint32 = 0xC0000000
)

// Status codes raised or interpreted by the codecs.
const (
	StatusGood                       StatusCode = 0x00000000
	StatusUncertain                  StatusCode = 0x40000000
	StatusBad                        StatusCode = 0x80000000
	StatusBadUnexpectedError         StatusCode = 0x80010000
	StatusBadInternalError           StatusCode = 0x80020000
	StatusBadEncodingError           StatusCode = 0x80060000
	StatusBadDecodingError           StatusCode = 0x80070000
	StatusBadEncodingLimitsExceeded  StatusCode = 0x80080000
	StatusBadTimeout                 StatusCode = 0x800A0000
	StatusBadDataTypeIdUnknown       StatusCode = 0x80110000
	StatusBadUserAccessDenied        StatusCode = 0x801F0000
	StatusBadNodeIdInvalid           StatusCode = 0x80330000
	StatusBadNodeIdUnknown           StatusCode = 0x80340000
	StatusBadAttributeIdInvalid      StatusCode = 0x80350000
	StatusBadIndexRangeInvalid       StatusCode = 0x80360000
	StatusBadDataEncodingInvalid     StatusCode = 0x80380000
	StatusBadDataEncodingUnsupported StatusCode = 0x80390000
	StatusBadNotReadable             StatusCode = 0x803A0000
	StatusBadNotWritable             StatusCode = 0x803B0000
	StatusBadOutOfRange              StatusCode = 0x803C0000
	StatusBadNotSupported            StatusCode = 0x803D0000
	StatusBadNotFound                StatusCode = 0x803E0000
	StatusBadStructureMissing        StatusCode = 0x80460000
	StatusBadNodeClassInvalid        StatusCode = 0x805F0000
	StatusBadBrowseNameInvalid       StatusCode = 0x80600000
	StatusBadNodeAttributesInvalid   StatusCode = 0x80620000
	StatusBadWriteNotSupported       StatusCode = 0x80730000
	StatusBadTypeMismatch            StatusCode = 0x80740000
	StatusBadConfigurationError      StatusCode = 0x80890000
	StatusBadInvalidArgument         StatusCode = 0x80AB0000
	StatusBadSyntaxError             StatusCode = 0x80B60000
)

// statusCodeInfo contains name and description for a status code.
type statusCodeInfo struct {
	name        string
	description string
}

// statusCodeMap maps status codes to their info.
var statusCodeMap = map[StatusCode]statusCodeInfo{
	StatusGood:                       {"Good", "The operation completed successfully"},
	StatusUncertain:                  {"Uncertain", "The operation completed with uncertain result"},
	StatusBad:                        {"Bad", "The operation failed"},
	StatusBadUnexpectedError:         {"BadUnexpectedError", "An unexpected error occurred"},
	StatusBadInternalError:           {"BadInternalError", "An internal error occurred"},
	StatusBadEncodingError:           {"BadEncodingError", "Encoding halted because of invalid data"},
	StatusBadDecodingError:           {"BadDecodingError", "Decoding halted because of invalid data"},
	StatusBadEncodingLimitsExceeded:  {"BadEncodingLimitsExceeded", "The message encoding/decoding limits have been exceeded"},
	StatusBadTimeout:                 {"BadTimeout", "The operation timed out"},
	StatusBadDataTypeIdUnknown:       {"BadDataTypeIdUnknown", "The extension object cannot be decoded because the data type is not known"},
	StatusBadUserAccessDenied:        {"BadUserAccessDenied", "User access denied"},
	StatusBadNodeIdInvalid:           {"BadNodeIdInvalid", "The node ID format is not valid"},
	StatusBadNodeIdUnknown:           {"BadNodeIdUnknown", "The node ID refers to a node that does not exist"},
	StatusBadAttributeIdInvalid:      {"BadAttributeIdInvalid", "The attribute ID is not valid for this node"},
	StatusBadIndexRangeInvalid:       {"BadIndexRangeInvalid", "The index range is invalid"},
	StatusBadDataEncodingInvalid:     {"BadDataEncodingInvalid", "The data encoding is invalid"},
	StatusBadDataEncodingUnsupported: {"BadDataEncodingUnsupported", "The requested data encoding is not supported"},
	StatusBadNotReadable:             {"BadNotReadable", "The access level does not allow reading the value"},
	StatusBadNotWritable:             {"BadNotWritable", "The access level does not allow writing the value"},
	StatusBadOutOfRange:              {"BadOutOfRange", "The value was out of range"},
	StatusBadNotSupported:            {"BadNotSupported", "The requested operation is not supported"},
	StatusBadNotFound:                {"BadNotFound", "A requested item was not found"},
	StatusBadStructureMissing:        {"BadStructureMissing", "A mandatory structured parameter was missing or null"},
	StatusBadNodeClassInvalid:        {"BadNodeClassInvalid", "The node class is not valid"},
	StatusBadBrowseNameInvalid:       {"BadBrowseNameInvalid", "The browse name is invalid"},
	StatusBadNodeAttributesInvalid:   {"BadNodeAttributesInvalid", "The node attributes are not valid for the node class"},
	StatusBadWriteNotSupported:       {"BadWriteNotSupported", "Writing to this attribute is not supported"},
	StatusBadTypeMismatch:            {"BadTypeMismatch", "The value provided does not match the expected data type"},
	StatusBadConfigurationError:      {"BadConfigurationError", "There is a configuration error"},
	StatusBadInvalidArgument:         {"BadInvalidArgument", "One or more arguments are invalid"},
	StatusBadSyntaxError:             {"BadSyntaxError", "A value had an invalid syntax"},
}

// String returns the string representation of the status code.
func (s StatusCode) String() string {
	if info, ok := statusCodeMap[s]; ok {
		return info.name
	}
	return fmt.Sprintf("StatusCode(0x%08X)", uint32(s))
}

// Description returns a human-readable description of the status code.
func (s StatusCode) Description() string {
	if info, ok := statusCodeMap[s]; ok {
		return info.description
	}
	switch {
	case s.IsGood():
		return "The operation completed successfully"
	case s.IsUncertain():
		return "The operation completed with uncertain result"
	case s.IsBad():
		return "The operation failed"
	default:
		return "Unknown status"
	}
}

// Error returns a formatted error string with code, name, and description.
func (s StatusCode) Error() string {
	if info, ok := statusCodeMap[s]; ok {
		return fmt.Sprintf("%s (0x%08X): %s", info.name, uint32(s), info.description)
	}
	return fmt.Sprintf("StatusCode 0x%08X", uint32(s))
}

// IsGood returns true if the status code indicates success.
func (s StatusCode) IsGood() bool {
	return (uint32(s) & StatusSeverityMask) == StatusSeverityGood
}

// IsUncertain returns true if the status code indicates uncertainty.
func (s StatusCode) IsUncertain() bool {
	return (uint32(s) & StatusSeverityMask) == StatusSeverityUncertain
}

// IsBad returns true if the status code indicates failure.
func (s StatusCode) IsBad() bool {
	return (uint32(s) & StatusSeverityMask) == StatusSeverityBad
}

// Common errors.
var (
	// ErrEncoding indicates a value could not be written to the wire.
	ErrEncoding = errors.New("uacodec: encoding error")

	// ErrDecoding indicates malformed or truncated wire data.
	ErrDecoding = errors.New("uacodec: decoding error")

	// ErrSchema indicates an invalid structure or attribute description.
	ErrSchema = errors.New("uacodec: invalid schema")

	// ErrLimitsExceeded indicates a string or array exceeded the configured limits.
	ErrLimitsExceeded = errors.New("uacodec: encoding limits exceeded")

	// ErrNodeAttributesInvalid indicates an attribute not allowed for the node class.
	ErrNodeAttributesInvalid = errors.New("uacodec: node attributes invalid")

	// ErrNodeClassInvalid indicates an unknown or unspecified node class.
	ErrNodeClassInvalid = errors.New("uacodec: node class invalid")

	// ErrAttributeIDInvalid indicates an attribute id outside the known range.
	ErrAttributeIDInvalid = errors.New("uacodec: attribute id invalid")

	// ErrUnknownField indicates a field name not present in a schema.
	ErrUnknownField = errors.New("uacodec: unknown field")

	// ErrTypeMismatch indicates a host value that does not match the declared wire type.
	ErrTypeMismatch = errors.New("uacodec: type mismatch")
)

var sentinelStatus = map[error]StatusCode{
	ErrEncoding:              StatusBadEncodingError,
	ErrDecoding:              StatusBadDecodingError,
	ErrSchema:                StatusBadConfigurationError,
	ErrLimitsExceeded:        StatusBadEncodingLimitsExceeded,
	ErrNodeAttributesInvalid: StatusBadNodeAttributesInvalid,
	ErrNodeClassInvalid:      StatusBadNodeClassInvalid,
	ErrAttributeIDInvalid:    StatusBadAttributeIdInvalid,
	ErrUnknownField:          StatusBadNotFound,
	ErrTypeMismatch:          StatusBadTypeMismatch,
}

// CodecError is an error raised while processing a named field.
type CodecError struct {
	StatusCode StatusCode
	Field      string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("uacodec: %s: field %q: %s", e.StatusCode.String(), e.Field, msg)
	}
	return fmt.Sprintf("uacodec: %s: %s", e.StatusCode.String(), msg)
}

// Is matches another CodecError with the same status code, or the sentinel
// that carries the same status code.
func (e *CodecError) Is(target error) bool {
	if t, ok := target.(*CodecError); ok {
		return e.StatusCode == t.StatusCode
	}
	if code, ok := sentinelStatus[target]; ok {
		return code == e.StatusCode
	}
	return false
}

// Unwrap returns the underlying cause.
func (e *CodecError) Unwrap() error {
	return e.Err
}

// NewCodecError creates a CodecError for a field.
func NewCodecError(sc StatusCode, field, format string, args ...any) *CodecError {
	return &CodecError{
		StatusCode: sc,
		Field:      field,
		Message:    fmt.Sprintf(format, args...),
	}
}

// EncodingError creates a BadEncodingError for a field.
func EncodingError(field, format string, args ...any) error {
	return NewCodecError(StatusBadEncodingError, field, format, args...)
}

// DecodingError creates a BadDecodingError for a field.
func DecodingError(field, format string, args ...any) error {
	return NewCodecError(StatusBadDecodingError, field, format, args...)
}

// SchemaError creates a schema definition error.
func SchemaError(field, format string, args ...any) error {
	return NewCodecError(StatusBadConfigurationError, field, format, args...)
}

// WrapField annotates err with a field name unless it already names one.
func WrapField(field string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CodecError
	if errors.As(err, &ce) && ce.Field != "" {
		return err
	}
	if ce, ok := err.(*CodecError); ok {
		named := *ce
		named.Field = field
		return &named
	}
	return &CodecError{StatusCode: StatusCodeOf(err), Field: field, Err: err}
}

// StatusCodeOf returns the status code carried by err, or BadUnexpectedError
// when err carries none.
func StatusCodeOf(err error) StatusCode {
	if err == nil {
		return StatusGood
	}
	var ce *CodecError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	var sc StatusCode
	if errors.As(err, &sc) {
		return sc
	}
	for sentinel, code := range sentinelStatus {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return StatusBadUnexpectedError
}

// IsStatusCode checks if an error has a specific status code.
func IsStatusCode(err error, code StatusCode) bool {
	return err != nil && StatusCodeOf(err) == code
}

// IsEncodingError checks if the error is an encoding failure.
func IsEncodingError(err error) bool {
	return IsStatusCode(err, StatusBadEncodingError)
}

// IsDecodingError checks if the error is a decoding failure.
func IsDecodingError(err error) bool {
	return IsStatusCode(err, StatusBadDecodingError)
}

// IsSchemaError checks if the error reports an invalid schema.
func IsSchemaError(err error) bool {
	return IsStatusCode(err, StatusBadConfigurationError)
}

// IsNodeAttributesInvalid checks if the error reports an attribute not valid for a node class.
func IsNodeAttributesInvalid(err error) bool {
	return IsStatusCode(err, StatusBadNodeAttributesInvalid)
}

// IsNodeClassInvalid checks if the error reports an invalid node class.
func IsNodeClassInvalid(err error) bool {
	return IsStatusCode(err, StatusBadNodeClassInvalid)
}

// IsAttributeInvalid checks if the error indicates an invalid attribute.
func IsAttributeInvalid(err error) bool {
	return IsStatusCode(err, StatusBadAttributeIdInvalid)
}
