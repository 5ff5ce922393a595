package kvstore

import "github.com/styrainc/rtvolume/pkg/rtvolume"

// Error is an alias for the volume-wide error type; kept here so
// existing call sites can keep writing kvstore.Error without an import
// change, while the storage and HTTP layers share one typed error.
type Error = rtvolume.Error

const (
	CodeENOENT    = rtvolume.CodeENOENT
	CodeENOTDIR   = rtvolume.CodeENOTDIR
	CodeEEXIST    = rtvolume.CodeEEXIST
	CodeENOTEMPTY = rtvolume.CodeENOTEMPTY
	CodeESTALE    = rtvolume.CodeESTALE
)

// ErrNotExist is the sentinel for CodeENOENT; compare with errors.Is.
var ErrNotExist = rtvolume.ErrNotExist

// NotFound builds an ENOENT error referencing key.
func NotFound(key string) error { return rtvolume.NotFound(key) }

// IsNotFound reports whether err is (or wraps) an ENOENT error.
func IsNotFound(err error) bool { return rtvolume.IsNotFound(err) }
