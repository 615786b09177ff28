// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/oneconcern/irmin/pkg/storage/status"
)

// MaxObjectSizeInMemory is the largest blob that ReadAll accepts
const MaxObjectSizeInMemory = 2 * 1024 * 1024 * 1024 // 2 gigs

const (
	// NoOverWrite fails a Put when the key already exists
	NoOverWrite = true

	// OverWrite replaces any existing value at the key
	OverWrite = false
)

// Store implementations know how to write entries to a K/V model.Store.
//
// Typically this is something file system-like. Examples are S3, local FS, an embedded KV ...
// Implementations of this interface are assumed to be fairly simple.
//
// Keys are slash-separated strings without leading slash.
// Get returns an error wrapping status.ErrNotExists when the key is absent.
// Put with exclusive set returns an error wrapping status.ErrExists when the key is present.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	KeysPrefix(context.Context, string) ([]string, error)
	Clear(context.Context) error
}

// ReadAll retrieves a whole blob in memory
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	object, err := io.ReadAll(io.LimitReader(reader, MaxObjectSizeInMemory+1))
	if err != nil {
		return nil, err
	}
	if len(object) > MaxObjectSizeInMemory {
		return nil, status.ErrObjectTooBig.WrapMessage("key %q", key)
	}
	return object, nil
}

// PutBytes writes a blob held in memory
func PutBytes(ctx context.Context, store Store, key string, object []byte, exclusive bool) error {
	return store.Put(ctx, key, bytes.NewReader(object), exclusive)
}

// ReadTee reads from a source and duplicates the output to another destination store
func ReadTee(ctx context.Context, sStore Store, source string, dStore Store, destination string) ([]byte, error) {
	object, err := ReadAll(ctx, sStore, source)
	if err != nil {
		return nil, err
	}
	err = PutBytes(ctx, dStore, destination, object, NoOverWrite)
	if err != nil && !status.IsExists(err) {
		return nil, err
	}
	return object, nil
}
