// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"
)

const maxLockWait = 30 * time.Second

// FileLock is an advisory lock held on a file, exclusive across processes.
//
// Every Lock opens the file anew: two FileLocks on the same path exclude each other,
// even within a single process. The kernel releases the lock when its holder dies.
type FileLock struct {
	path string
}

// NewFileLock prepares a lock on a file of the operating system, created when missing
func NewFileLock(path string) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("ensuring directories for lock %q: %v", path, err)
	}
	return &FileLock{path: path}, nil
}

// Lock blocks until the lock is acquired, the context is done or the wait times out.
// The returned function releases the lock.
func (f *FileLock) Lock(ctx context.Context) (func() error, error) {
	var file *os.File
	acquire := func() error {
		candidate, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDWR, 0600)
		if err != nil {
			return backoff.Permanent(err)
		}
		err = unix.Flock(int(candidate.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err != nil {
			_ = candidate.Close()
			if err == unix.EWOULDBLOCK || err == unix.EINTR {
				return err
			}
			return backoff.Permanent(err)
		}
		file = candidate
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Millisecond
	policy.MaxInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = maxLockWait
	if err := backoff.Retry(acquire, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("acquiring lock %q: %v", f.path, err)
	}

	return func() error {
		err := unix.Flock(int(file.Fd()), unix.LOCK_UN)
		if erc := file.Close(); err == nil {
			err = erc
		}
		return err
	}, nil
}

func (f *FileLock) String() string {
	return "flock@" + f.path
}
