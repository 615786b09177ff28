package model

import (
	"strings"
)

// PathSeparator separates segments in the string representation of a path
const PathSeparator = "/"

// Path is an ordered sequence of segments. The empty path denotes the root.
type Path []string

// Root path
var Root = Path{}

// ParsePath splits a string on "/", ignoring empty segments.
//
// "/a//b/" and "a/b" denote the same path.
func ParsePath(s string) Path {
	parts := strings.Split(s, PathSeparator)
	p := make(Path, 0, len(parts))
	for _, segment := range parts {
		if segment == "" {
			continue
		}
		p = append(p, segment)
	}
	return p
}

// NewPath from segments
func NewPath(segments ...string) Path {
	p := make(Path, len(segments))
	copy(p, segments)
	return p
}

func (p Path) String() string {
	return PathSeparator + strings.Join(p, PathSeparator)
}

// IsRoot tells if this is the empty path
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent path, or false for the root
func (p Path) Parent() (Path, bool) {
	if p.IsRoot() {
		return nil, false
	}
	return p[: len(p)-1 : len(p)-1], true
}

// Base is the last segment, or "" for the root
func (p Path) Base() string {
	if p.IsRoot() {
		return ""
	}
	return p[len(p)-1]
}

// Append a segment. The receiver is never modified.
func (p Path) Append(segment string) Path {
	res := make(Path, 0, len(p)+1)
	res = append(res, p...)
	return append(res, segment)
}

// AppendPath concatenates two paths. The receiver is never modified.
func (p Path) AppendPath(other Path) Path {
	res := make(Path, 0, len(p)+len(other))
	res = append(res, p...)
	return append(res, other...)
}

// Equal is segment-wise equality
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Compare paths segment-wise
func (p Path) Compare(other Path) int {
	for i := 0; i < len(p) && i < len(other); i++ {
		if c := strings.Compare(p[i], other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(p) < len(other):
		return -1
	case len(p) > len(other):
		return 1
	default:
		return 0
	}
}

// HasPrefix tells if p is located under prefix (or is equal to it)
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Validate that all segments are usable as node entry names
func (p Path) Validate() error {
	for _, segment := range p {
		if err := ValidateSegment(segment); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSegment checks a single entry name
func ValidateSegment(segment string) error {
	if segment == "" {
		return ErrInvalidSegment.WrapMessage("empty segment")
	}
	if strings.Contains(segment, PathSeparator) {
		return ErrInvalidSegment.WrapMessage("segment %q contains %q", segment, PathSeparator)
	}
	return nil
}

// MarshalText renders the path as a string
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a path
func (p *Path) UnmarshalText(text []byte) error {
	*p = ParsePath(string(text))
	return nil
}
