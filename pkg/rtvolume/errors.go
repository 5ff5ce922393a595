// Package rtvolume defines the error type shared across the volume
// boundary: storage layer, dispatcher, and HTTP handlers all produce
// *rtvolume.Error so callers can errors.Is against a stable code rather
// than matching on message text.
package rtvolume

import (
	"errors"
	"fmt"
)

// Error is the error type returned across the volume's storage and
// request-handling layers. Code is a stable sentinel string.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	// CodeENOENT: read or unlink referenced a path that doesn't exist.
	CodeENOENT = "ENOENT"
	// CodeENOTDIR reserved for future directory semantics.
	CodeENOTDIR = "ENOTDIR"
	// CodeEEXIST reserved for future directory semantics.
	CodeEEXIST = "EEXIST"
	// CodeENOTEMPTY reserved for future directory semantics.
	CodeENOTEMPTY = "ENOTEMPTY"
	// CodeESTALE: a text patch referenced a session that's missing or evicted.
	CodeESTALE = "ESTALE"
	// CodeCONFLICT: a JSON patch test op or similar precondition failed.
	CodeCONFLICT = "CONFLICT"
	// CodeInternal: anything else, reported generically to clients.
	CodeInternal = "INTERNAL_SERVER_ERROR"
)

// ErrNotExist is the sentinel for CodeENOENT; compare with errors.Is.
var ErrNotExist = &Error{Code: CodeENOENT}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NotFound builds an ENOENT error referencing key.
func NotFound(key string) error {
	return &Error{Code: CodeENOENT, Message: key}
}

// IsNotFound reports whether err is (or wraps) an ENOENT error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// Internal wraps err as a CodeInternal error whose Message is err's
// text. The HTTP layer logs it and sends clients only a generic 500
// body, never Message.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: err.Error()}
}
