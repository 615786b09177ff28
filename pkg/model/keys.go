package model

import (
	"strings"

	"github.com/oneconcern/irmin/pkg/hash"
)

// Layout of objects and branch heads on a key/blob storage.
//
//	{kind}/{2 first hex digits}/{hash}    objects, e.g. node/3f/3fa4...
//	heads/{branch}                        branch heads
const (
	headsPrefix  = "heads/"
	fanOutPrefix = 2
)

// GetObjectKey yields the storage key of an object
func GetObjectKey(k KindedKey) string {
	hex := k.Hash.String()
	return k.Kind.String() + "/" + hex[:fanOutPrefix] + "/" + hex
}

// GetObjectKeyPrefix yields the storage prefix of all objects of some kind
func GetObjectKeyPrefix(kind Kind) string {
	return kind.String() + "/"
}

// GetObjectKeyComponents parses a storage key back into a kinded key
func GetObjectKeyComponents(key string) (KindedKey, error) {
	cs := strings.Split(key, "/")
	if len(cs) != 3 {
		return KindedKey{}, ErrInvalidObjectKey.WrapMessage("key %q has %d parts, expected 3", key, len(cs))
	}
	kind, err := ParseKind(cs[0])
	if err != nil {
		return KindedKey{}, err
	}
	h, err := hash.Parse(cs[2])
	if err != nil {
		return KindedKey{}, ErrInvalidObjectKey.Wrap(err)
	}
	if !strings.HasPrefix(cs[2], cs[1]) || len(cs[1]) != fanOutPrefix {
		return KindedKey{}, ErrInvalidObjectKey.WrapMessage("key %q has an invalid fan-out directory", key)
	}
	return KindedKey{Kind: kind, Hash: h}, nil
}

// GetBranchKey yields the storage key of a branch head
func GetBranchKey(branch string) string {
	return headsPrefix + branch
}

// GetBranchKeyPrefix is the storage prefix of all branch heads
func GetBranchKeyPrefix() string {
	return headsPrefix
}

// GetBranchFromKey extracts a branch name from a storage key
func GetBranchFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, headsPrefix) || len(key) == len(headsPrefix) {
		return "", false
	}
	return key[len(headsPrefix):], true
}
