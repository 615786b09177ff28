// Copyright © 2018 One Concern

// Package gcs implements a storage.Store on a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"io"

	gcsStorage "cloud.google.com/go/storage"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var _ storage.Store = &gcs{}

type gcs struct {
	client         *gcsStorage.Client
	readOnlyClient *gcsStorage.Client
	bucket         string
	prefix         string
	credentials    string
	l              *zap.Logger
}

// New store on a bucket. Credentials default to GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, bucket string, opts ...Option) (storage.Store, error) {
	googleStore := &gcs{
		bucket: bucket,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(googleStore)
	}

	var err error
	googleStore.readOnlyClient, err = gcsStorage.NewClient(ctx, googleStore.clientOptions(gcsStorage.ScopeReadOnly)...)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	googleStore.client, err = gcsStorage.NewClient(ctx, googleStore.clientOptions(gcsStorage.ScopeFullControl)...)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return googleStore, nil
}

func (g *gcs) clientOptions(scope string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(scope)}
	if g.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(g.credentials))
	}
	return opts
}

func (g *gcs) String() string {
	return "gcs://" + g.bucket + "/" + g.prefix
}

func (g *gcs) object(client *gcsStorage.Client, key string) *gcsStorage.ObjectHandle {
	return client.Bucket(g.bucket).Object(g.prefix + key)
}

func (g *gcs) Has(ctx context.Context, key string) (bool, error) {
	_, err := g.object(g.readOnlyClient, key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcsStorage.ErrObjectNotExist) {
			return false, nil
		}
		return false, toSentinelErrors(err)
	}
	return true, nil
}

func (g *gcs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	g.l.Debug("gcs get", zap.String("key", key))
	objectReader, err := g.object(g.readOnlyClient, key).NewReader(ctx)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return objectReader, nil
}

func (g *gcs) Put(ctx context.Context, key string, reader io.Reader, exclusive bool) error {
	g.l.Debug("gcs put", zap.String("key", key), zap.Bool("exclusive", exclusive))
	obj := g.object(g.client, key)
	if exclusive {
		// precondition evaluated by the server: "put if not present"
		obj = obj.If(gcsStorage.Conditions{DoesNotExist: true})
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := obj.NewWriter(ctx)
	if _, err := io.Copy(writer, reader); err != nil {
		cancel() // aborts the upload
		_ = writer.Close()
		return toSentinelErrors(err)
	}
	return toSentinelErrors(writer.Close())
}

func (g *gcs) Delete(ctx context.Context, key string) error {
	err := g.object(g.client, key).Delete(ctx)
	if err != nil && !errors.Is(err, gcsStorage.ErrObjectNotExist) {
		return toSentinelErrors(err)
	}
	return nil
}

func (g *gcs) Keys(ctx context.Context) ([]string, error) {
	return g.KeysPrefix(ctx, "")
}

func (g *gcs) KeysPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0, 100)
	objectsIterator := g.readOnlyClient.Bucket(g.bucket).Objects(ctx, &gcsStorage.Query{Prefix: g.prefix + prefix})
	for {
		attrs, err := objectsIterator.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, toSentinelErrors(err)
		}
		keys = append(keys, attrs.Name[len(g.prefix):])
	}
	return keys, nil
}

func (g *gcs) Clear(ctx context.Context) error {
	keys, err := g.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := g.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
