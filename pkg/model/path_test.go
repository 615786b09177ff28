package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	for _, toPin := range []struct {
		Input    string
		Expected Path
		String   string
	}{
		{Input: "", Expected: Path{}, String: "/"},
		{Input: "/", Expected: Path{}, String: "/"},
		{Input: "/a/b", Expected: Path{"a", "b"}, String: "/a/b"},
		{Input: "a/b", Expected: Path{"a", "b"}, String: "/a/b"},
		{Input: "//a///b/", Expected: Path{"a", "b"}, String: "/a/b"},
		{Input: "a b/c.json", Expected: Path{"a b", "c.json"}, String: "/a b/c.json"},
	} {
		fixture := toPin
		t.Run(fixture.Input, func(t *testing.T) {
			p := ParsePath(fixture.Input)
			assert.True(t, fixture.Expected.Equal(p))
			assert.Equal(t, fixture.String, p.String())
			assert.NoError(t, p.Validate())
		})
	}
}

func TestPathOperations(t *testing.T) {
	p := NewPath("a", "b", "c")

	parent, ok := p.Parent()
	require.True(t, ok)
	assert.Equal(t, "/a/b", parent.String())
	assert.Equal(t, "c", p.Base())

	_, ok = Root.Parent()
	assert.False(t, ok)
	assert.True(t, Root.IsRoot())
	assert.Equal(t, "", Root.Base())

	// appending to a parent never clobbers the original path
	sibling := parent.Append("d")
	assert.Equal(t, "/a/b/d", sibling.String())
	assert.Equal(t, "/a/b/c", p.String())

	joined := parent.AppendPath(ParsePath("x/y"))
	assert.Equal(t, "/a/b/x/y", joined.String())
	assert.True(t, joined.HasPrefix(parent))
	assert.True(t, joined.HasPrefix(Root))
	assert.False(t, parent.HasPrefix(joined))

	assert.Equal(t, 0, p.Compare(NewPath("a", "b", "c")))
	assert.Equal(t, -1, parent.Compare(p))
	assert.Equal(t, 1, p.Compare(parent))
	assert.Equal(t, -1, p.Compare(sibling))
	assert.False(t, p.Equal(sibling))

	text, err := p.MarshalText()
	require.NoError(t, err)
	var back Path
	require.NoError(t, back.UnmarshalText(text))
	assert.True(t, p.Equal(back))
}

func TestValidateSegment(t *testing.T) {
	assert.NoError(t, ValidateSegment("a"))
	assert.Error(t, ValidateSegment(""))
	assert.Error(t, ValidateSegment("a/b"))
	assert.Error(t, Path{"a", ""}.Validate())
}
