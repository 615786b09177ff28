// Package storagetest provides a conformance test suite for storage.Store implementations.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/oneconcern/irmin/pkg/storage"
	"github.com/oneconcern/irmin/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a store, which is expected to be initially empty
func Run(t *testing.T, store storage.Store) {
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, storage.PutBytes(ctx, store, "contents/ab/abcd", []byte("hello"), storage.NoOverWrite))

		has, err := store.Has(ctx, "contents/ab/abcd")
		require.NoError(t, err)
		assert.True(t, has)

		b, err := storage.ReadAll(ctx, store, "contents/ab/abcd")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(b))
	})

	t.Run("missing key", func(t *testing.T) {
		has, err := store.Has(ctx, "contents/zz/nowhere")
		require.NoError(t, err)
		assert.False(t, has)

		_, err = store.Get(ctx, "contents/zz/nowhere")
		require.Error(t, err)
		assert.Truef(t, status.IsNotExists(err), "unexpected error: %v", err)
	})

	t.Run("exclusive put", func(t *testing.T) {
		err := storage.PutBytes(ctx, store, "contents/ab/abcd", []byte("other"), storage.NoOverWrite)
		require.Error(t, err)
		assert.Truef(t, status.IsExists(err), "unexpected error: %v", err)

		require.NoError(t, storage.PutBytes(ctx, store, "heads/main", []byte("v1"), storage.OverWrite))
		require.NoError(t, storage.PutBytes(ctx, store, "heads/main", []byte("v2"), storage.OverWrite))
		b, err := storage.ReadAll(ctx, store, "heads/main")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(b))
	})

	t.Run("concurrent puts converge", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := storage.PutBytes(ctx, store, "nodes/cd/cdef", []byte("same"), storage.NoOverWrite)
				if err != nil {
					assert.True(t, status.IsExists(err))
				}
			}()
		}
		wg.Wait()
		b, err := storage.ReadAll(ctx, store, "nodes/cd/cdef")
		require.NoError(t, err)
		assert.Equal(t, "same", string(b))
	})

	t.Run("keys", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, storage.PutBytes(ctx, store, fmt.Sprintf("heads/feature-%d", i), []byte("x"), storage.OverWrite))
		}
		keys, err := store.KeysPrefix(ctx, "heads/")
		require.NoError(t, err)
		assert.Len(t, keys, 6)
		assert.Contains(t, keys, "heads/main")

		all, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 8)
	})

	t.Run("delete and clear", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "heads/feature-0"))
		has, err := store.Has(ctx, "heads/feature-0")
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, store.Clear(ctx))
		all, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	assert.NotEmpty(t, store.String())
}
