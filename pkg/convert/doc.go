// Package convert provides some helpers for fast conversion between strings and byte slices.
//
// Conversion operations are essentially unsafe and avoid the use of memcpy(): callers
// must guarantee that converted byte slices are never mutated.
package convert
