package hash

import (
	"fmt"
	"sync"

	blake2b "github.com/minio/blake2b-simd"
	"github.com/zeebo/blake3"
)

// Domain of a hashed object
type Domain uint8

// Hashing domains
const (
	Contents Domain = iota
	Node
	Commit
)

func (d Domain) String() string {
	switch d {
	case Contents:
		return "contents"
	case Node:
		return "node"
	case Commit:
		return "commit"
	default:
		return fmt.Sprintf("domain(%d)", d)
	}
}

// Hasher computes domain-separated digests
type Hasher interface {
	Name() string
	Sum(Domain, []byte) Hash
}

// Known hasher names
const (
	Blake2bName = "blake2b"
	Blake3Name  = "blake3"
)

// ByName resolves a hasher from its configured name. The empty name resolves to the default.
func ByName(name string) (Hasher, error) {
	switch name {
	case "", Blake2bName:
		return Blake2b(), nil
	case Blake3Name:
		return Blake3(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", name)
	}
}

// Default hasher: Blake2b-256
func Default() Hasher {
	return Blake2b()
}

// Blake2b-256, personalized per domain
func Blake2b() Hasher {
	return blake2bHasher{}
}

type blake2bHasher struct{}

func (blake2bHasher) Name() string { return Blake2bName }

func (blake2bHasher) Sum(d Domain, data []byte) Hash {
	hasher, err := blake2b.New(&blake2b.Config{
		Size:   Size,
		Person: personalization(d),
	})
	if err != nil {
		panic("hash: blake2b initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(data)
	return MustFromBytes(hasher.Sum(nil))
}

// personalization strings fit the 16 bytes allowed by blake2b
func personalization(d Domain) []byte {
	return []byte("irmin." + d.String())
}

// Blake3 keyed hashing, with one key per domain
func Blake3() Hasher {
	return blake3Hasher{}
}

type blake3Hasher struct{}

func (blake3Hasher) Name() string { return Blake3Name }

var (
	domainKeysOnce sync.Once
	domainKeys     map[Domain][]byte
)

// domainKey is the ASCII domain name, zero-padded to 32 bytes
func domainKey(d Domain) []byte {
	domainKeysOnce.Do(func() {
		domainKeys = make(map[Domain][]byte, 3)
		for _, domain := range []Domain{Contents, Node, Commit} {
			key := make([]byte, 32)
			copy(key, "irmin.object."+domain.String())
			domainKeys[domain] = key
		}
	})
	key, ok := domainKeys[d]
	if !ok {
		panic(fmt.Sprintf("hash: unknown domain %v", d))
	}
	return key
}

func (blake3Hasher) Sum(d Domain, data []byte) Hash {
	hasher, err := blake3.NewKeyed(domainKey(d))
	if err != nil {
		panic("hash: blake3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(data)
	return MustFromBytes(hasher.Sum(nil))
}
