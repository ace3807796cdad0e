// Package blockio frames and compresses snapshot payloads. Every payload
// carries an 8-byte header [uncompressed size uint32][compressed size
// uint32], both little-endian; a compressed size of zero marks a payload
// stored raw. Incompressible payloads fall back to raw storage, so
// Decompress handles either form for any type.
package blockio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type selects the compression algorithm.
type Type uint8

const (
	// None stores payloads raw.
	None Type = iota
	// LZ4 compresses payloads with LZ4 block compression (fast).
	LZ4
	// ZSTD compresses payloads with zstd (better ratio).
	ZSTD
)

// String implements the fmt.Stringer interface.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseType parses a type name as written to manifests.
func ParseType(s string) (Type, error) {
	switch s {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("blockio: unknown compression type %q", s)
	}
}

// ErrCorrupt is returned when a payload fails header or size validation.
var ErrCorrupt = errors.New("blockio: corrupt payload")

const headerSize = 8

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}

	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}

	dec, _ := zstd.NewReader(nil)

	return dec
}

// Compress frames data into a payload, compressing it with t unless the
// result would save less than 10% of the size.
func Compress(data []byte, t Type) ([]byte, error) {
	var (
		compressed []byte
		err        error
	)

	switch t {
	case None:
	case LZ4:
		compressed, err = compressLZ4(data)
	case ZSTD:
		compressed = compressZSTD(data)
	default:
		return nil, fmt.Errorf("blockio: unknown compression type %d", t)
	}

	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		return frame(data, 0), nil
	}

	return frame(compressed, uint32(len(data))), nil
}

// frame prepends the payload header. uncompressed == 0 marks raw storage.
func frame(data []byte, uncompressed uint32) []byte {
	out := make([]byte, headerSize+len(data))

	if uncompressed == 0 {
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
	} else {
		binary.LittleEndian.PutUint32(out[0:], uncompressed)
		binary.LittleEndian.PutUint32(out[4:], uint32(len(data)))
	}

	copy(out[headerSize:], data)

	return out
}

func compressLZ4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}

	// n == 0 means incompressible.
	return buf[:n], nil
}

func compressZSTD(data []byte) []byte {
	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)

	return enc.EncodeAll(data, nil)
}

// Decompress unframes a payload produced by Compress.
func Decompress(payload []byte, t Type) ([]byte, error) {
	if len(payload) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}

	uncompressedSize := binary.LittleEndian.Uint32(payload[0:])
	compressedSize := binary.LittleEndian.Uint32(payload[4:])

	if compressedSize == 0 {
		if uint32(len(payload)-headerSize) < uncompressedSize {
			return nil, fmt.Errorf("%w: truncated raw payload", ErrCorrupt)
		}

		return bytes.Clone(payload[headerSize : headerSize+int(uncompressedSize)]), nil
	}

	if uint32(len(payload)-headerSize) < compressedSize {
		return nil, fmt.Errorf("%w: truncated compressed payload", ErrCorrupt)
	}

	data := payload[headerSize : headerSize+int(compressedSize)]

	switch t {
	case LZ4:
		out := make([]byte, uncompressedSize)

		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}

		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		if uint32(len(out)) != uncompressedSize {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: compressed payload with type %s", ErrCorrupt, t)
	}
}
