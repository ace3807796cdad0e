// Package hash provides the checksum used for snapshot blob integrity.
//
// Blob checksums use CRC32-Castagnoli, which is hardware accelerated on x86
// and ARM and matches the checksum algorithm object stores validate on
// upload.
package hash

import (
	"hash"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}
