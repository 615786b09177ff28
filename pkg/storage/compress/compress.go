// Package compress decorates a storage.Store to compress blobs at rest.
//
// Every stored blob is framed as: one algorithm tag byte, the uncompressed size as an uvarint,
// then the payload. Blobs which do not shrink are stored uncompressed, so a store may always
// read blobs written with a different algorithm.
package compress

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/oneconcern/irmin/pkg/storage"
	"github.com/oneconcern/irmin/pkg/storage/status"
	"github.com/pierrec/lz4/v4"
)

// Algorithm used to compress blobs
type Algorithm uint8

const (
	// None stores blobs as is
	None Algorithm = 0
	// LZ4 block compression: fast, moderate ratio
	LZ4 Algorithm = 1
	// Zstd compression at the default level: better ratio for text-like contents
	Zstd Algorithm = 2
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", a)
	}
}

// Parse an algorithm name. The empty string means None.
func Parse(name string) (Algorithm, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, status.ErrNotSupported.WrapMessage("unknown compression %q", name)
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

type compressed struct {
	storage.Store
	algo Algorithm
}

// New compressing store. With None, the store is returned undecorated.
func New(store storage.Store, algo Algorithm) storage.Store {
	if algo == None {
		return store
	}
	return &compressed{Store: store, algo: algo}
}

func (c *compressed) String() string {
	return c.Store.String() + "+" + c.algo.String()
}

func (c *compressed) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	framed, err := storage.ReadAll(ctx, c.Store, key)
	if err != nil {
		return nil, err
	}
	data, err := Decode(framed)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *compressed) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) error {
	data, err := io.ReadAll(rdr)
	if err != nil {
		return err
	}
	framed, err := Encode(data, c.algo)
	if err != nil {
		return err
	}
	return c.Store.Put(ctx, key, bytes.NewReader(framed), exclusive)
}

// Encode frames and compresses a blob
func Encode(data []byte, algo Algorithm) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch algo {
	case None:
		payload = data
	case LZ4:
		payload, err = compressLZ4(data)
	case Zstd:
		payload = zstdEncoder.EncodeAll(data, nil)
	default:
		return nil, status.ErrNotSupported.WrapMessage("compression %v", algo)
	}
	if err != nil {
		return nil, status.ErrCompression.Wrap(err)
	}
	if payload == nil || len(payload) >= len(data) {
		algo, payload = None, data
	}

	header := make([]byte, 1+binary.MaxVarintLen64)
	header[0] = byte(algo)
	n := binary.PutUvarint(header[1:], uint64(len(data)))

	framed := make([]byte, 0, 1+n+len(payload))
	framed = append(framed, header[:1+n]...)
	return append(framed, payload...), nil
}

// Decode a framed blob
func Decode(framed []byte) ([]byte, error) {
	if len(framed) < 2 {
		return nil, status.ErrCompression.WrapMessage("truncated frame of %d bytes", len(framed))
	}
	algo := Algorithm(framed[0])
	size, n := binary.Uvarint(framed[1:])
	if n <= 0 || size > storage.MaxObjectSizeInMemory {
		return nil, status.ErrCompression.WrapMessage("invalid frame header")
	}
	payload := framed[1+n:]

	switch algo {
	case None:
		if uint64(len(payload)) != size {
			return nil, status.ErrCompression.WrapMessage("size %d does not match expected %d", len(payload), size)
		}
		return payload, nil
	case LZ4:
		data := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, data)
		if err != nil {
			return nil, status.ErrCompression.Wrap(err)
		}
		if uint64(read) != size {
			return nil, status.ErrCompression.WrapMessage("lz4: got %d bytes, expected %d", read, size)
		}
		return data, nil
	case Zstd:
		data, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, status.ErrCompression.Wrap(err)
		}
		if uint64(len(data)) != size {
			return nil, status.ErrCompression.WrapMessage("zstd: got %d bytes, expected %d", len(data), size)
		}
		return data, nil
	default:
		return nil, status.ErrCompression.WrapMessage("unknown algorithm tag %d", algo)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, err
	}
	if written == 0 {
		// incompressible
		return nil, nil
	}
	return destination[:written], nil
}
