package persistence

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"unsafe"
)

// BinaryIndexWriter writes index payload fields in little-endian order.
type BinaryIndexWriter struct {
	w   io.Writer
	buf [8]byte
}

// NewBinaryIndexWriter creates a new binary writer.
func NewBinaryIndexWriter(w io.Writer) *BinaryIndexWriter {
	return &BinaryIndexWriter{w: w}
}

// WriteUint32 writes a single uint32.
func (bw *BinaryIndexWriter) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(bw.buf[:4], v)
	_, err := bw.w.Write(bw.buf[:4])
	return err
}

// WriteUint64 writes a single uint64.
func (bw *BinaryIndexWriter) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(bw.buf[:8], v)
	_, err := bw.w.Write(bw.buf[:8])
	return err
}

// WriteFloat32Slice writes a float32 slice as raw bytes.
func (bw *BinaryIndexWriter) WriteFloat32Slice(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	if err := checkAlignment(unsafe.Pointer(&vec[0]), 4, "float32"); err != nil {
		return err
	}
	_, err := bw.w.Write(unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4))
	return err
}

// WriteUint32Slice writes a uint32 slice as raw bytes.
func (bw *BinaryIndexWriter) WriteUint32Slice(slice []uint32) error {
	if len(slice) == 0 {
		return nil
	}
	if err := checkAlignment(unsafe.Pointer(&slice[0]), 4, "uint32"); err != nil {
		return err
	}
	_, err := bw.w.Write(unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*4))
	return err
}

// WriteBytes writes a length-prefixed byte section.
func (bw *BinaryIndexWriter) WriteBytes(b []byte) error {
	if err := bw.WriteUint64(uint64(len(b))); err != nil {
		return err
	}
	_, err := bw.w.Write(b)
	return err
}

// BinaryIndexReader reads fields written by BinaryIndexWriter.
type BinaryIndexReader struct {
	r   io.Reader
	buf [8]byte
}

// NewBinaryIndexReader creates a new binary reader.
func NewBinaryIndexReader(r io.Reader) *BinaryIndexReader {
	return &BinaryIndexReader{r: r}
}

// ReadUint32 reads a single uint32.
func (br *BinaryIndexReader) ReadUint32() (uint32, error) {
	if _, err := io.ReadFull(br.r, br.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(br.buf[:4]), nil
}

// ReadUint64 reads a single uint64.
func (br *BinaryIndexReader) ReadUint64() (uint64, error) {
	if _, err := io.ReadFull(br.r, br.buf[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(br.buf[:8]), nil
}

// ReadFloat32Slice reads count float32 values.
func (br *BinaryIndexReader) ReadFloat32Slice(count int) ([]float32, error) {
	if count == 0 {
		return nil, nil
	}
	vec := make([]float32, count)
	if _, err := io.ReadFull(br.r, unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), count*4)); err != nil {
		return nil, err
	}
	return vec, nil
}

// ReadUint32Slice reads count uint32 values.
func (br *BinaryIndexReader) ReadUint32Slice(count int) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}
	slice := make([]uint32, count)
	if _, err := io.ReadFull(br.r, unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), count*4)); err != nil {
		return nil, err
	}
	return slice, nil
}

// ReadBytes reads a length-prefixed byte section of at most limit bytes.
func (br *BinaryIndexReader) ReadBytes(limit uint64) ([]byte, error) {
	n, err := br.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, ErrTruncated
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(br.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// SaveToFile writes a file through a temp file in the same directory and
// renames it into place.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	tmpName = ""

	SyncDir(dir)
	return nil
}

// SyncDir fsyncs a directory so renames inside it are durable on POSIX.
// Errors are ignored; not every platform supports it.
func SyncDir(dir string) {
	if d, err := os.Open(dir); err == nil { //nolint:gosec // caller-controlled path
		_ = d.Sync()
		_ = d.Close()
	}
}
