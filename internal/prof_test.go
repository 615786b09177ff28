package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiles(t *testing.T) {
	dir := t.TempDir()

	stop, err := StartCPUProfile(filepath.Join(dir, "cpu.prof"))
	require.NoError(t, err)
	require.NoError(t, stop())

	prefix := filepath.Join(dir, "mem")
	require.NoError(t, WriteMemProfiles(prefix))
	for _, name := range []string{"cpu.prof", "mem.mem.prof", "mem.alloc.prof"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.False(t, info.IsDir())
	}

	// existing profiles are kept
	require.NoError(t, WriteMemProfiles(prefix))

	_, err = StartCPUProfile(filepath.Join(dir, "missing", "cpu.prof"))
	assert.Error(t, err)
}
