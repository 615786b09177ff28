package hash

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

const (
	// Size of a hash in bytes
	Size = 32

	// SizeHex is the size of the hex representation of a hash
	SizeHex = 2 * Size

	shortSize = 7
)

// Hash is a fixed-size digest
type Hash [Size]byte

// Zero is the zero-valued hash, never produced by a Hasher in practice
var Zero Hash

// FromBytes creates a hash from a raw digest
func FromBytes(data []byte) (Hash, error) {
	var h Hash
	if len(data) != Size {
		return Zero, &BadHashSize{Hash: data}
	}
	copy(h[:], data)
	return h, nil
}

// MustFromBytes creates a hash from a raw digest but panics if there is an error
func MustFromBytes(data []byte) Hash {
	h, e := FromBytes(data)
	if e != nil {
		panic(e.Error())
	}
	return h
}

// Parse the hex representation of a hash
func Parse(s string) (Hash, error) {
	if len(s) != SizeHex {
		return Zero, &BadHashSize{Hash: []byte(s)}
	}
	var h Hash
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return Zero, err
	}
	return h, nil
}

// MustParse parses a hash but panics if there is an error
func MustParse(s string) Hash {
	h, e := Parse(s)
	if e != nil {
		panic(e.Error())
	}
	return h
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short is an abbreviated representation, for display only
func (h Hash) Short() string {
	return h.String()[:shortSize]
}

// Bytes of the digest
func (h Hash) Bytes() []byte {
	return h[:]
}

// IsZero tells if this is the zero value
func (h Hash) IsZero() bool {
	return h == Zero
}

// Compare two hashes in lexicographic order of their bytes
func Compare(a, b Hash) int {
	return bytes.Compare(a[:], b[:])
}

// MarshalText renders a hash as hex
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses a hex hash
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// BadHashSize is an error that's returned when the hash to create has an invalid size.
type BadHashSize struct {
	Hash []byte
}

func (b *BadHashSize) Error() string {
	return fmt.Sprintf("%x has invalid size of %d, expected %d", b.Hash, len(b.Hash), Size)
}
