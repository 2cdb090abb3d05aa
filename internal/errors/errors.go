// Package errors provides the structured error type shared by the capture,
// crop and scroll packages. Import it as perr.
package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies failures of the recording core
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodePermissionDenied is for camera or microphone authorization refusals
	ErrorCodePermissionDenied

	// ErrorCodeDeviceUnavailable is for missing capture inputs
	ErrorCodeDeviceUnavailable

	// ErrorCodeWriteFailed is for recordings that could not be finalized
	ErrorCodeWriteFailed

	// ErrorCodeCropFailed is for probe or re-encode failures of the crop export
	ErrorCodeCropFailed

	// ErrorCodeInvalidConfig is for rejected configuration or request input
	ErrorCodeInvalidConfig

	// ErrorCodeNotReady is for operations attempted before the session is configured
	ErrorCodeNotReady
)

var codeNames = map[ErrorCode]string{
	ErrorCodeUnknown:           "unknown",
	ErrorCodePermissionDenied:  "permission_denied",
	ErrorCodeDeviceUnavailable: "device_unavailable",
	ErrorCodeWriteFailed:       "write_failed",
	ErrorCodeCropFailed:        "crop_failed",
	ErrorCodeInvalidConfig:     "invalid_config",
	ErrorCodeNotReady:          "not_ready",
}

// String returns the stable snake_case name of the code
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// HTTPStatusCode turns an ErrorCode into an http status code
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodePermissionDenied:
		return http.StatusForbidden
	case ErrorCodeDeviceUnavailable, ErrorCodeNotReady:
		return http.StatusServiceUnavailable
	case ErrorCodeInvalidConfig:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error type with wrapping and metadata
type Error struct {
	orig error
	msg  string
	code ErrorCode
	op   string
}

// Wire is the JSON form returned by the control API
type Wire struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// WireFrom converts any error into a Wire payload
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return Wire{Code: e.code.String(), Message: e.Error()}
	}
	return Wire{Code: ErrorCodeUnknown.String(), Message: err.Error()}
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return err != nil && CodeOf(err) == code }

// HTTPStatus returns the mapped HTTP status for any error
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// WithOp attaches an operation label (copy-on-write). Foreign errors are returned unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// PermissionDeniedf returns a permission error
func PermissionDeniedf(format string, a ...any) error {
	return Newf(ErrorCodePermissionDenied, format, a...)
}

// DeviceUnavailablef returns a device error
func DeviceUnavailablef(format string, a ...any) error {
	return Newf(ErrorCodeDeviceUnavailable, format, a...)
}

// InvalidConfigf returns a configuration error
func InvalidConfigf(format string, a ...any) error {
	return Newf(ErrorCodeInvalidConfig, format, a...)
}

// NotReadyf returns a not ready error
func NotReadyf(format string, a ...any) error { return Newf(ErrorCodeNotReady, format, a...) }
