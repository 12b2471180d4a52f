package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Encode writes header h followed by the payload produced by writePayload,
// compressed with h.Compression. Magic, Version, PayloadSize and
// PayloadChecksum are filled in.
func Encode(w io.Writer, h FileHeader, writePayload func(io.Writer) error) error {
	var raw bytes.Buffer
	if err := writePayload(&raw); err != nil {
		return err
	}

	stored, err := compress(Compression(h.Compression), raw.Bytes())
	if err != nil {
		return fmt.Errorf("compress payload: %w", err)
	}

	h.Magic = MagicNumber
	h.Version = Version
	h.PayloadSize = uint64(len(stored))
	h.PayloadChecksum = Checksum(stored)

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// DecodeBytes parses a container held in memory and returns its header and
// the decompressed payload. For uncompressed containers the payload aliases
// data.
func DecodeBytes(data []byte) (*FileHeader, []byte, error) {
	if len(data) < HeaderSize {
		return nil, nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(data))
	}

	var h FileHeader
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, nil, err
	}
	if h.Magic != MagicNumber {
		return nil, nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, h.Version)
	}

	rest := data[HeaderSize:]
	if uint64(len(rest)) < h.PayloadSize {
		return nil, nil, fmt.Errorf("%w: payload needs %d bytes, have %d", ErrTruncated, h.PayloadSize, len(rest))
	}
	stored := rest[:h.PayloadSize]
	if err := verify(h.PayloadChecksum, Checksum(stored)); err != nil {
		return nil, nil, fmt.Errorf("payload: %w", err)
	}

	payload, err := decompress(Compression(h.Compression), stored)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress payload: %w", err)
	}
	return &h, payload, nil
}

// Decode reads a whole container from r.
func Decode(r io.Reader) (*FileHeader, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	return DecodeBytes(data)
}
