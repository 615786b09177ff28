package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	clock := func() time.Time { return time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC) }
	info := NewInfoAt(clock, "alice", "first")
	assert.Equal(t, "alice", info.Author)
	assert.Equal(t, "first", info.Message)
	assert.Equal(t, clock().Unix(), info.Date)
	assert.Equal(t, clock(), info.Time())
	assert.Contains(t, info.String(), "2020-01-02T03:04:05Z")

	updated := info.Update("", "second")
	assert.Equal(t, "alice", updated.Author)
	assert.Equal(t, "second", updated.Message)
	assert.GreaterOrEqual(t, updated.Date, info.Date)
	assert.Equal(t, "first", info.Message, "update never mutates the original")

	updated = info.Update("bob", "")
	assert.Equal(t, "bob", updated.Author)
	assert.Equal(t, "first", updated.Message)

	assert.Equal(t, Info{}, EmptyInfo())
}

func TestMetadata(t *testing.T) {
	for _, m := range []Metadata{Normal, Executable} {
		parsed, err := ParseMetadata(m.String())
		assert.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMetadata("setuid")
	assert.Error(t, err)
	assert.Equal(t, Normal, DefaultMetadata)
}
