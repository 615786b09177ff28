package model

import (
	"strings"
	"unicode"
)

// DefaultBranch is the branch used when none is specified
const DefaultBranch = "main"

// ValidateBranchName checks that a branch name may be used as a storage key:
// not empty, no leading or trailing "/", no empty or dot segments, no spaces or control characters.
func ValidateBranchName(name string) error {
	if name == "" {
		return ErrInvalidBranch.WrapMessage("empty branch name")
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return ErrInvalidBranch.WrapMessage("branch %q has an invalid segment %q", name, segment)
		}
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidBranch.WrapMessage("branch %q contains invalid characters", name)
		}
	}
	return nil
}
