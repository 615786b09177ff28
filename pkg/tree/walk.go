package tree

import (
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/model"
)

// ErrSkipTree is returned by a WalkFunc to skip the subtree it was called on
var ErrSkipTree = errors.New("skip this tree")

// WalkFunc is called on every entry visited by Walk, with its full path
type WalkFunc func(model.Path, Entry) error
