package contents

import (
	"sort"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/merge"
)

// Type of the contents held by a repository
type Type interface {
	Name() string

	// Validate raw contents before they are written
	Validate([]byte) error

	// Merge resolves conflicting contents, or nil when such contents never merge
	Merge() merge.Resolver
}

var (
	// String contents are UTF-8 text, which never merge
	String Type = stringType{}

	// Bytes contents are opaque, and never merge
	Bytes Type = bytesType{}

	// JSON contents hold JSON objects, which merge key by key
	JSON Type = jsonType{}

	// JSONValue contents hold any JSON value. Objects merge key by key.
	JSONValue Type = jsonValueType{}
)

var types = map[string]Type{
	String.Name():    String,
	Bytes.Name():     Bytes,
	JSON.Name():      JSON,
	JSONValue.Name(): JSONValue,
}

// ByName finds a type of contents
func ByName(name string) (Type, error) {
	t, ok := types[name]
	if !ok {
		return nil, status.ErrInvalidConfig.WrapMessage("unknown contents type %q, expected one of %v", name, Names())
	}
	return t, nil
}

// Names of the available types of contents
func Names() []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Validate(data []byte) error {
	if !utf8.Valid(data) {
		return status.ErrInvalidContents.WrapMessage("not valid UTF-8 text")
	}
	return nil
}

func (stringType) Merge() merge.Resolver { return nil }

type bytesType struct{}

func (bytesType) Name() string { return "bytes" }

func (bytesType) Validate([]byte) error { return nil }

func (bytesType) Merge() merge.Resolver { return nil }

type jsonType struct{}

func (jsonType) Name() string { return "json" }

func (jsonType) Validate(data []byte) error {
	if !json.Valid(data) {
		return status.ErrInvalidContents.WrapMessage("not a valid JSON document")
	}
	if json.Get(data).ValueType() != jsoniter.ObjectValue {
		return status.ErrInvalidContents.WrapMessage("not a JSON object")
	}
	return nil
}

func (jsonType) Merge() merge.Resolver { return merge.JSON() }

type jsonValueType struct{}

func (jsonValueType) Name() string { return "json-value" }

func (jsonValueType) Validate(data []byte) error {
	if !json.Valid(data) {
		return status.ErrInvalidContents.WrapMessage("not a valid JSON value")
	}
	return nil
}

func (jsonValueType) Merge() merge.Resolver { return merge.JSONValue() }
