package persistence

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MagicNumber identifies vecrag index files (ASCII: "VRG1").
	MagicNumber = 0x56524731
	// Version is the current file format version.
	Version = 0x00010000
	// HeaderSize is the encoded size of FileHeader.
	HeaderSize = 64
)

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported version")
	ErrInvalidCompression = errors.New("unknown compression")
	ErrTruncated          = errors.New("truncated payload")
)

// Compression identifies the payload codec.
type Compression uint8

// Compression codecs.
const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

// String returns the configuration name of the codec.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression maps a configuration name to a codec. The empty string
// selects CompressionNone.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCompression, s)
	}
}

// FileHeader is the 64-byte header at the start of every index file.
type FileHeader struct {
	Magic           uint32 // 0x56524731 ("VRG1")
	Version         uint32 // File format version
	IndexType       uint8  // index.Type
	Compression     uint8  // Compression
	Padding         [2]byte
	Dimension       uint32 // Vector dimensionality
	VectorCount     uint64 // Total number of vectors
	PayloadSize     uint64 // Stored (possibly compressed) payload bytes
	MappingChecksum uint32 // CRC32 of the id_mapping.json bytes
	PayloadChecksum uint32 // CRC32 of the stored payload bytes
	Reserved        [24]byte
}
