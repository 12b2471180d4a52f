package flat

import (
	"fmt"
	"io"

	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/internal/conv"
	"github.com/hupe1980/vecrag/persistence"
)

func init() {
	index.RegisterLoader(index.TypeFlat, func(r io.Reader) (index.Index, error) {
		f := &Flat{}
		if _, err := f.ReadFrom(r); err != nil {
			return nil, err
		}
		return f, nil
	})
}

// maxRows bounds the row count accepted from a payload.
const maxRows = 1 << 32

// WriteTo writes the payload: dimension (uint32), count (uint64), then the
// row-major float32 matrix.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cw := persistence.NewChecksumWriter(w)
	bw := persistence.NewBinaryIndexWriter(cw)

	if err := bw.WriteUint32(uint32(f.dim)); err != nil { //nolint:gosec // validated in New
		return cw.Count(), err
	}
	if err := bw.WriteUint64(uint64(len(f.data) / f.dim)); err != nil {
		return cw.Count(), err
	}
	if err := bw.WriteFloat32Slice(f.data); err != nil {
		return cw.Count(), err
	}
	return cw.Count(), nil
}

// ReadFrom replaces the index content with a payload written by WriteTo.
func (f *Flat) ReadFrom(r io.Reader) (int64, error) {
	br := persistence.NewBinaryIndexReader(r)

	dim, err := br.ReadUint32()
	if err != nil {
		return 0, fmt.Errorf("flat: read dimension: %w", err)
	}
	if dim == 0 {
		return 4, fmt.Errorf("flat: invalid dimension 0")
	}
	count, err := br.ReadUint64()
	if err != nil {
		return 4, fmt.Errorf("flat: read count: %w", err)
	}
	if count > maxRows {
		return 12, fmt.Errorf("flat: implausible vector count %d", count)
	}
	rows, err := conv.Uint64ToInt(count)
	if err != nil {
		return 12, fmt.Errorf("flat: %w", err)
	}
	data, err := br.ReadFloat32Slice(rows * int(dim))
	if err != nil {
		return 12, fmt.Errorf("flat: read vectors: %w", err)
	}

	f.mu.Lock()
	f.dim = int(dim)
	f.data = data
	f.mu.Unlock()

	return 12 + int64(len(data))*4, nil
}
