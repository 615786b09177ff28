package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnsafeConversions(t *testing.T) {
	for _, toPin := range []string{"", "a", "path/to/some/entry", "é∂"} {
		fixture := toPin
		t.Run(fixture, func(t *testing.T) {
			b := UnsafeStringToBytes(fixture)
			assert.Equal(t, []byte(fixture), append([]byte(nil), b...))
			assert.Equal(t, fixture, UnsafeBytesToString(b))
		})
	}
}
