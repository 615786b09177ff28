package model

import (
	"github.com/oneconcern/irmin/pkg/core/status"
)

var (
	// ErrInvalidBranch is returned for branch names which cannot be used
	ErrInvalidBranch = status.ErrInvalidBranch

	// ErrInvalidSegment is returned for path segments which cannot name a node entry
	ErrInvalidSegment = status.ErrInvalidPath

	// ErrInvalidObjectKey is returned when parsing a storage key which does not locate an object
	ErrInvalidObjectKey = status.ErrInvalidHash
)
