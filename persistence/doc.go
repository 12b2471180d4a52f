//go:build amd64 || arm64

// Package persistence implements the binary container for serialized indexes.
//
// A container is a 64-byte little-endian FileHeader followed by the index
// payload, optionally compressed with LZ4 or Zstandard. The header records the
// payload checksum and the CRC32 of the companion id_mapping.json, so a reader
// can detect both storage corruption and an index paired with the wrong
// mapping.
//
// PLATFORM REQUIREMENTS:
// - Architecture: amd64 or arm64 only
// - Endianness: Little-endian (native on x86_64 and ARM64)
// - Alignment: 4-byte for float32/uint32, 8-byte for uint64
//
// Slice readers and writers reinterpret memory with unsafe.Slice after the
// alignment checks in safety.go.
package persistence
