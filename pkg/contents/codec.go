package contents

import (
	"bytes"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/irmin/pkg/core/status"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Codec converts typed values to and from stored contents
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
	Equal(a, b T) bool
	Compare(a, b T) int
}

// StringCodec stores strings as UTF-8 text
type StringCodec struct{}

// Encode a string
func (StringCodec) Encode(s string) ([]byte, error) {
	return []byte(s), nil
}

// Decode a string
func (StringCodec) Decode(data []byte) (string, error) {
	if err := String.Validate(data); err != nil {
		return "", err
	}
	return string(data), nil
}

// Equal strings
func (StringCodec) Equal(a, b string) bool {
	return a == b
}

// Compare strings
func (StringCodec) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// JSONCodec stores values as JSON documents.
//
// Values are compared through their encoding, with object keys in sorted order.
type JSONCodec[T any] struct{}

// Encode a value as JSON
func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.ErrInvalidContents.Wrap(err)
	}
	return data, nil
}

// Decode a JSON document
func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, status.ErrInvalidContents.Wrap(err)
	}
	return v, nil
}

// Equal values have the same encoding
func (c JSONCodec[T]) Equal(a, b T) bool {
	return c.Compare(a, b) == 0
}

// Compare the encodings of two values. Values which do not encode sort first.
func (c JSONCodec[T]) Compare(a, b T) int {
	ea, errA := c.Encode(a)
	eb, errB := c.Encode(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return bytes.Compare(ea, eb)
}

var (
	_ Codec[string]         = StringCodec{}
	_ Codec[map[string]int] = JSONCodec[map[string]int]{}
)
