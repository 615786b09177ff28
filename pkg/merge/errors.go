package merge

import (
	"strings"

	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/model"
)

// ConflictError reports the paths of all unresolved conflicts of a merge, in sorted order
type ConflictError struct {
	Paths []model.Path
}

func (e *ConflictError) Error() string {
	paths := make([]string, 0, len(e.Paths))
	for _, p := range e.Paths {
		paths = append(paths, p.String())
	}
	return status.ErrConflict.Error() + " on " + strings.Join(paths, ", ")
}

// Is makes a ConflictError match status.ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == status.ErrConflict
}
