package merge

import (
	"bytes"
	"context"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/tree"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Side of a conflict: absent, contents, or a subtree
type Side struct {
	Present  bool
	Entry    tree.Entry // zero for contents built by a resolver
	Data     []byte     // contents, when Entry holds contents
	Metadata model.Metadata
}

// IsTree tells if this side is a subtree
func (s Side) IsTree() bool {
	return s.Present && s.Entry.IsTree()
}

// IsContents tells if this side holds contents
func (s Side) IsContents() bool {
	return s.Present && !s.Entry.IsTree()
}

// Contents makes a side holding new contents
func Contents(data []byte, m model.Metadata) Side {
	return Side{Present: true, Data: data, Metadata: m}
}

// Absent makes a side with nothing, resolving a conflict by removing the path
func Absent() Side {
	return Side{}
}

// Conflict at some path, where both sides changed the base differently
type Conflict struct {
	Path   model.Path
	Base   Side
	Ours   Side
	Theirs Side
}

// Resolver settles conflicts. A resolver declines to settle a conflict by returning false.
type Resolver interface {
	Resolve(context.Context, Conflict) (Side, bool, error)
}

// ResolverFunc is a function resolving conflicts
type ResolverFunc func(context.Context, Conflict) (Side, bool, error)

// Resolve a conflict
func (f ResolverFunc) Resolve(ctx context.Context, c Conflict) (Side, bool, error) {
	return f(ctx, c)
}

// Ours settles all conflicts with our side
func Ours() Resolver {
	return ResolverFunc(func(_ context.Context, c Conflict) (Side, bool, error) {
		return c.Ours, true, nil
	})
}

// Theirs settles all conflicts with their side
func Theirs() Resolver {
	return ResolverFunc(func(_ context.Context, c Conflict) (Side, bool, error) {
		return c.Theirs, true, nil
	})
}

// Chain tries resolvers in order, until one of them settles the conflict
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context, c Conflict) (Side, bool, error) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			side, ok, err := r.Resolve(ctx, c)
			if err != nil || ok {
				return side, ok, err
			}
		}
		return Side{}, false, nil
	})
}

// JSON merges contents holding JSON objects, key by key.
//
// A key changed on one side only takes that side, nested objects are merged recursively,
// and keys changed differently on both sides are a conflict. A missing base counts as an
// empty object. The resolver declines anything else: removed contents, subtrees, values
// which are not JSON objects, or conflicting keys.
func JSON() Resolver {
	return ResolverFunc(func(_ context.Context, c Conflict) (Side, bool, error) {
		if !c.Ours.IsContents() || !c.Theirs.IsContents() || c.Base.IsTree() {
			return Side{}, false, nil
		}

		base := map[string]interface{}{}
		if c.Base.Present {
			if err := json.Unmarshal(c.Base.Data, &base); err != nil {
				return Side{}, false, nil
			}
		}
		var ours, theirs map[string]interface{}
		if err := json.Unmarshal(c.Ours.Data, &ours); err != nil || ours == nil {
			return Side{}, false, nil
		}
		if err := json.Unmarshal(c.Theirs.Data, &theirs); err != nil || theirs == nil {
			return Side{}, false, nil
		}

		merged, ok := mergeObjects(base, ours, theirs)
		if !ok {
			return Side{}, false, nil
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return Side{}, false, err
		}

		m := c.Ours.Metadata
		if c.Ours.Metadata == c.Base.Metadata {
			m = c.Theirs.Metadata
		}
		return Contents(data, m), true, nil
	})
}

// JSONValue merges contents holding any JSON value.
//
// Objects merge as with JSON. Other values settle when both sides agree, or when one side kept
// the base value. A missing or non-object base counts as an empty object for objects.
func JSONValue() Resolver {
	return ResolverFunc(func(_ context.Context, c Conflict) (Side, bool, error) {
		if !c.Ours.IsContents() || !c.Theirs.IsContents() || c.Base.IsTree() {
			return Side{}, false, nil
		}

		var base, ours, theirs interface{}
		hasBase := c.Base.Present
		if hasBase {
			if err := json.Unmarshal(c.Base.Data, &base); err != nil {
				return Side{}, false, nil
			}
		}
		if err := json.Unmarshal(c.Ours.Data, &ours); err != nil {
			return Side{}, false, nil
		}
		if err := json.Unmarshal(c.Theirs.Data, &theirs); err != nil {
			return Side{}, false, nil
		}

		var merged interface{}
		switch {
		case sameValue(ours, true, theirs, true):
			merged = ours
		case sameValue(base, hasBase, ours, true):
			merged = theirs
		case sameValue(base, hasBase, theirs, true):
			merged = ours
		default:
			oo, isObject := ours.(map[string]interface{})
			to, isObjectToo := theirs.(map[string]interface{})
			if !isObject || !isObjectToo {
				return Side{}, false, nil
			}
			bo, _ := base.(map[string]interface{})
			if bo == nil {
				bo = map[string]interface{}{}
			}
			object, ok := mergeObjects(bo, oo, to)
			if !ok {
				return Side{}, false, nil
			}
			merged = object
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return Side{}, false, err
		}

		m := c.Ours.Metadata
		if c.Ours.Metadata == c.Base.Metadata {
			m = c.Theirs.Metadata
		}
		return Contents(data, m), true, nil
	})
}

func mergeObjects(base, ours, theirs map[string]interface{}) (map[string]interface{}, bool) {
	keys := make(map[string]struct{}, len(ours)+len(theirs))
	for _, m := range []map[string]interface{}{base, ours, theirs} {
		for k := range m {
			keys[k] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	merged := make(map[string]interface{}, len(keys))
	for _, k := range sorted {
		b, inBase := base[k]
		o, inOurs := ours[k]
		t, inTheirs := theirs[k]

		var (
			value   interface{}
			present bool
		)
		switch {
		case sameValue(o, inOurs, t, inTheirs):
			value, present = o, inOurs
		case sameValue(b, inBase, o, inOurs):
			value, present = t, inTheirs
		case sameValue(b, inBase, t, inTheirs):
			value, present = o, inOurs
		default:
			bo, _ := b.(map[string]interface{})
			oo, isObject := o.(map[string]interface{})
			to, isObjectToo := t.(map[string]interface{})
			if !isObject || !isObjectToo {
				return nil, false
			}
			if bo == nil {
				bo = map[string]interface{}{}
			}
			nested, ok := mergeObjects(bo, oo, to)
			if !ok {
				return nil, false
			}
			value, present = nested, true
		}
		if present {
			merged[k] = value
		}
	}
	return merged, true
}

// sameValue compares decoded JSON values by their canonical encoding
func sameValue(a interface{}, hasA bool, b interface{}, hasB bool) bool {
	if !hasA || !hasB {
		return hasA == hasB
	}
	ea, errA := json.Marshal(a)
	eb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ea, eb)
}
