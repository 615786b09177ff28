package gcs

import (
	"go.uber.org/zap"
)

// Option is a functor to pass optional parameters to the gcs store
type Option func(*gcs)

// Logger specifies a logger for this store
func Logger(logger *zap.Logger) Option {
	return func(g *gcs) {
		if logger != nil {
			g.l = logger
		}
	}
}

// Prefix confines all keys of the store under some prefix in the bucket
func Prefix(prefix string) Option {
	return func(g *gcs) {
		g.prefix = prefix
	}
}

// CredentialsFile specifies a service account file
func CredentialsFile(file string) Option {
	return func(g *gcs) {
		g.credentials = file
	}
}
