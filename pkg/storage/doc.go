// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// This package supports the following backends:
//   - local file system, or memory (afero)
//   - badger
//   - pebble
//   - GCS (Google)
//   - S3 (AWS)
//
// A store may be decorated to compress blobs (package compress) or to trace and log calls (Instrument).
package storage
