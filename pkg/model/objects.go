package model

import (
	"sort"

	"github.com/oneconcern/irmin/pkg/hash"
)

// NodeEntry is the stored form of a named entry in a node
type NodeEntry struct {
	Name     string    `cbor:"1,keyasint"`
	Kind     Kind      `cbor:"2,keyasint"`
	Hash     hash.Hash `cbor:"3,keyasint"`
	Metadata Metadata  `cbor:"4,keyasint,omitempty"`
}

// NodeValue is the stored form of a node: entries sorted by name, with unique names
type NodeValue struct {
	Entries []NodeEntry `cbor:"1,keyasint"`
}

// Sort entries by name
func (n *NodeValue) Sort() {
	sort.Slice(n.Entries, func(i, j int) bool {
		return n.Entries[i].Name < n.Entries[j].Name
	})
}

// Validate that entries are sorted, unique, and well formed
func (n NodeValue) Validate() error {
	for i, entry := range n.Entries {
		if err := ValidateSegment(entry.Name); err != nil {
			return err
		}
		if entry.Kind != KindContents && entry.Kind != KindNode {
			return ErrInvalidObjectKey.WrapMessage("entry %q has kind %v", entry.Name, entry.Kind)
		}
		if i > 0 && n.Entries[i-1].Name >= entry.Name {
			return ErrInvalidSegment.WrapMessage("entries are not sorted or not unique at %q", entry.Name)
		}
	}
	return nil
}

// CommitValue is the stored form of a commit
type CommitValue struct {
	Node    hash.Hash   `cbor:"1,keyasint"`
	Parents []hash.Hash `cbor:"2,keyasint"`
	Info    Info        `cbor:"3,keyasint"`
}
