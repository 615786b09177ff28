package convert

import (
	"unsafe"
)

// UnsafeStringToBytes converts strings to []byte without memcopy.
//
// The returned slice must not be mutated.
func UnsafeStringToBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// UnsafeBytesToString converts []byte to string without a memcopy.
//
// The input slice must not be mutated afterwards.
func UnsafeBytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}
