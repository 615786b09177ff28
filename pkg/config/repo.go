package config

import (
	"io"
	"time"

	"github.com/oneconcern/irmin/pkg/contents"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/dlogger"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/objects"
	"github.com/oneconcern/irmin/pkg/storage/compress"
	"gopkg.in/yaml.v2"
)

// Backend persisting a repository
type Backend string

// Supported backends
const (
	BackendMemory Backend = "memory"
	BackendFS     Backend = "fs"
	BackendBadger Backend = "badger"
	BackendPebble Backend = "pebble"
	BackendGCS    Backend = "gcs"
	BackendS3     Backend = "s3"
)

// Backends lists all supported backends
var Backends = []Backend{BackendMemory, BackendFS, BackendBadger, BackendPebble, BackendGCS, BackendS3}

// Default settings
const (
	DefaultBackend     = BackendMemory
	DefaultCompression = "none"
	DefaultContents    = "string"
	DefaultMaxAttempts = 8
	DefaultInitialWait = 10 * time.Millisecond
	DefaultMaxWait     = time.Second
)

// Repo is the configuration used to open a repository
type Repo struct {
	Backend Backend `json:"backend" yaml:"backend"`

	// Root directory, for the fs, badger and pebble backends
	Root string `json:"root,omitempty" yaml:"root,omitempty"`

	// Bucket and object key prefix, for cloud backends
	Bucket      string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix      string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty"`

	Hash        string `json:"hash" yaml:"hash"`
	Compression string `json:"compression" yaml:"compression"`
	Contents    string `json:"contents" yaml:"contents"`

	// CacheSize is the number of decoded nodes and commits kept in memory. Zero disables the cache.
	CacheSize int `json:"cacheSize" yaml:"cacheSize"`

	// PruneEmpty removes the subtrees left empty by a removal
	PruneEmpty bool `json:"pruneEmpty" yaml:"pruneEmpty"`

	// AtomicWrites stages object files before renaming them, for the fs backend.
	// Branch heads are always written this way.
	AtomicWrites bool `json:"atomicWrites" yaml:"atomicWrites"`

	Retry    Retry  `json:"retry" yaml:"retry"`
	LogLevel string `json:"logLevel" yaml:"logLevel"`
	Metrics  bool   `json:"metrics" yaml:"metrics"`
}

// Retry policy of updates losing a race on a branch head
type Retry struct {
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"`
	Initial     time.Duration `json:"initial" yaml:"initial"`
	Max         time.Duration `json:"max" yaml:"max"`
}

// Default configuration: an in-memory repository holding strings
func Default() Repo {
	return Repo{
		Backend:      DefaultBackend,
		Hash:         hash.Blake2bName,
		Compression:  DefaultCompression,
		Contents:     DefaultContents,
		CacheSize:    objects.DefaultCacheSize,
		AtomicWrites: true,
		Retry: Retry{
			MaxAttempts: DefaultMaxAttempts,
			Initial:     DefaultInitialWait,
			Max:         DefaultMaxWait,
		},
		LogLevel: dlogger.LogLevelInfo,
	}
}

// Load a yaml configuration. Unspecified settings keep their default value.
func Load(r io.Reader) (Repo, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return Repo{}, status.ErrInvalidConfig.Wrap(err)
	}
	return cfg, cfg.Validate()
}

// Validate a configuration
func (c Repo) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFS, BackendBadger, BackendPebble:
		if c.Root == "" {
			return status.ErrInvalidConfig.WrapMessage("backend %q requires a root directory", c.Backend)
		}
	case BackendGCS, BackendS3:
		if c.Bucket == "" {
			return status.ErrInvalidConfig.WrapMessage("backend %q requires a bucket", c.Backend)
		}
	default:
		return status.ErrInvalidConfig.WrapMessage("unknown backend %q, expected one of %v", c.Backend, Backends)
	}

	if _, err := hash.ByName(c.Hash); err != nil {
		return status.ErrInvalidConfig.Wrap(err)
	}
	if _, err := compress.Parse(c.Compression); err != nil {
		return status.ErrInvalidConfig.Wrap(err)
	}
	if _, err := contents.ByName(c.Contents); err != nil {
		return err
	}
	if _, err := dlogger.GetLogger(c.LogLevel); err != nil {
		return status.ErrInvalidConfig.WrapMessage("log level %q: %v", c.LogLevel, err)
	}

	if c.CacheSize < 0 {
		return status.ErrInvalidConfig.WrapMessage("negative cache size")
	}
	if c.Retry.MaxAttempts < 1 {
		return status.ErrInvalidConfig.WrapMessage("retry needs at least one attempt")
	}
	if c.Retry.Initial < 0 || c.Retry.Max < c.Retry.Initial {
		return status.ErrInvalidConfig.WrapMessage("invalid retry wait, from %v to %v", c.Retry.Initial, c.Retry.Max)
	}
	return nil
}

// Marshal the configuration as yaml
func (c Repo) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
