package core

import (
	"context"
	"os"
	"path/filepath"

	"github.com/oneconcern/irmin/pkg/branch"
	"github.com/oneconcern/irmin/pkg/config"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/storage"
	"github.com/oneconcern/irmin/pkg/storage/bdgr"
	"github.com/oneconcern/irmin/pkg/storage/compress"
	"github.com/oneconcern/irmin/pkg/storage/gcs"
	"github.com/oneconcern/irmin/pkg/storage/localfs"
	"github.com/oneconcern/irmin/pkg/storage/pbl"
	"github.com/oneconcern/irmin/pkg/storage/sthree"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	objectsDir    = "objects"
	refsDir       = "refs"
	objectsPrefix = objectsDir + "/"
	refsPrefix    = refsDir + "/"
	refsLock      = "LOCK"
)

// backend persisting objects and branch heads
type backend struct {
	objects  storage.Store
	branches branch.Table
	closers  []func() error
}

func openBackend(ctx context.Context, cfg config.Repo, l *zap.Logger) (*backend, error) {
	var (
		b   *backend
		err error
	)

	switch cfg.Backend {
	case config.BackendMemory:
		b = &backend{
			objects:  localfs.NewMemory(),
			branches: branch.NewMemory(),
		}

	case config.BackendFS:
		b, err = openFS(cfg)

	case config.BackendBadger:
		db, erb := bdgr.Open(filepath.Clean(cfg.Root), l)
		if erb != nil {
			return nil, status.ErrBackend.Wrap(erb)
		}
		b = &backend{
			objects:  bdgr.New(db, bdgr.Prefix(objectsPrefix), bdgr.Logger(l)),
			branches: branch.NewBadger(db, branch.BadgerPrefix(refsPrefix), branch.BadgerLogger(l)),
			closers:  []func() error{db.Close},
		}

	case config.BackendPebble:
		db, erp := pbl.Open(filepath.Clean(cfg.Root))
		if erp != nil {
			return nil, status.ErrBackend.Wrap(erp)
		}
		b = &backend{
			objects:  pbl.New(db, objectsPrefix),
			branches: branch.NewStorage(pbl.New(db, refsPrefix)),
			closers:  []func() error{db.Close},
		}

	case config.BackendGCS:
		opts := []gcs.Option{gcs.Prefix(cfg.Prefix), gcs.Logger(l)}
		if cfg.Credentials != "" {
			opts = append(opts, gcs.CredentialsFile(cfg.Credentials))
		}
		store, erg := gcs.New(ctx, cfg.Bucket, opts...)
		if erg != nil {
			return nil, status.ErrBackend.Wrap(erg)
		}
		// object keys and head keys do not overlap
		b = &backend{
			objects:  store,
			branches: branch.NewStorage(store),
		}

	case config.BackendS3:
		store, ers := sthree.New(sthree.Bucket(cfg.Bucket), sthree.Prefix(cfg.Prefix))
		if ers != nil {
			return nil, status.ErrBackend.Wrap(ers)
		}
		b = &backend{
			objects:  store,
			branches: branch.NewStorage(store),
		}

	default:
		return nil, status.ErrInvalidConfig.WrapMessage("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	algo, err := compress.Parse(cfg.Compression)
	if err != nil {
		_ = b.close()
		return nil, status.ErrInvalidConfig.Wrap(err)
	}
	if algo != compress.None {
		b.objects = compress.New(b.objects, algo)
	}
	return b, nil
}

// openFS lays out a repository on the local file system: objects and heads in separate directories
func openFS(cfg config.Repo) (*backend, error) {
	root := filepath.Clean(cfg.Root)
	for _, dir := range []string{objectsDir, refsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0700); err != nil {
			return nil, status.ErrBackend.Wrap(err)
		}
	}

	fs := afero.NewBasePathFs(afero.NewOsFs(), root)
	objectsFs := afero.NewBasePathFs(fs, objectsDir)

	// heads are replaced by renames, so that lock-free readers never see a partial head
	refs, err := localfs.NewAtomic(afero.NewBasePathFs(fs, refsDir))
	if err != nil {
		return nil, status.ErrBackend.Wrap(err)
	}
	locker, err := localfs.NewFileLock(filepath.Join(root, refsDir, refsLock))
	if err != nil {
		return nil, status.ErrBackend.Wrap(err)
	}
	branches := branch.NewStorage(refs, branch.StorageLocker(locker))

	if !cfg.AtomicWrites {
		return &backend{
			objects:  localfs.New(objectsFs),
			branches: branches,
		}, nil
	}

	objects, err := localfs.NewAtomic(objectsFs)
	if err != nil {
		return nil, status.ErrBackend.Wrap(err)
	}
	return &backend{
		objects:  objects,
		branches: branches,
	}, nil
}

func (b *backend) close() error {
	var err error
	for _, closer := range b.closers {
		err = multierr.Append(err, closer())
	}
	return err
}
