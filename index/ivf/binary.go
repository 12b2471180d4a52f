package ivf

import (
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/internal/conv"
	"github.com/hupe1980/vecrag/persistence"
)

func init() {
	index.RegisterLoader(index.TypeIVF, func(r io.Reader) (index.Index, error) {
		x := &IVF{}
		if _, err := x.ReadFrom(r); err != nil {
			return nil, err
		}
		return x, nil
	})
}

const (
	maxRows  = 1 << 32
	maxLists = 1 << 20
	// maxListBytes bounds one serialized posting list.
	maxListBytes = 1 << 31
)

// WriteTo writes the payload:
//
//	dimension u32 | nlist u32 | nprobe u32 | count u64
//	centroids f32[nlist*dim] | vectors f32[count*dim]
//	nlist x (length u64 | roaring bitmap)
func (x *IVF) WriteTo(w io.Writer) (int64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	cw := persistence.NewChecksumWriter(w)
	if x.centroids == nil {
		return 0, index.ErrNotTrained
	}
	bw := persistence.NewBinaryIndexWriter(cw)

	dim, err := conv.IntToUint32(x.dim)
	if err != nil {
		return 0, err
	}
	nlist, err := conv.IntToUint32(x.nlist)
	if err != nil {
		return 0, err
	}
	nprobe, err := conv.IntToUint32(x.nprobe)
	if err != nil {
		return 0, err
	}

	for _, v := range []uint32{dim, nlist, nprobe} {
		if err := bw.WriteUint32(v); err != nil {
			return cw.Count(), err
		}
	}
	if err := bw.WriteUint64(uint64(len(x.data) / x.dim)); err != nil {
		return cw.Count(), err
	}
	if err := bw.WriteFloat32Slice(x.centroids); err != nil {
		return cw.Count(), err
	}
	if err := bw.WriteFloat32Slice(x.data); err != nil {
		return cw.Count(), err
	}
	for i, l := range x.lists {
		l.RunOptimize()
		b, err := l.ToBytes()
		if err != nil {
			return cw.Count(), fmt.Errorf("ivf: encode list %d: %w", i, err)
		}
		if err := bw.WriteBytes(b); err != nil {
			return cw.Count(), err
		}
	}
	return cw.Count(), nil
}

// ReadFrom replaces the index content with a payload written by WriteTo.
func (x *IVF) ReadFrom(r io.Reader) (int64, error) {
	cr := persistence.NewChecksumReader(r)
	br := persistence.NewBinaryIndexReader(cr)

	var hdr [3]uint32
	for i := range hdr {
		v, err := br.ReadUint32()
		if err != nil {
			return 0, fmt.Errorf("ivf: read header: %w", err)
		}
		hdr[i] = v
	}
	dim, nlist, nprobe := int(hdr[0]), int(hdr[1]), int(hdr[2])
	if dim == 0 || nlist == 0 || nlist > maxLists {
		return 12, fmt.Errorf("ivf: invalid header dim=%d nlist=%d", dim, nlist)
	}

	count, err := br.ReadUint64()
	if err != nil {
		return 12, fmt.Errorf("ivf: read count: %w", err)
	}
	if count > maxRows {
		return 20, fmt.Errorf("ivf: implausible vector count %d", count)
	}
	rows, err := conv.Uint64ToInt(count)
	if err != nil {
		return 20, fmt.Errorf("ivf: %w", err)
	}

	centroids, err := br.ReadFloat32Slice(nlist * dim)
	if err != nil {
		return 20, fmt.Errorf("ivf: read centroids: %w", err)
	}
	data, err := br.ReadFloat32Slice(rows * dim)
	if err != nil {
		return 20, fmt.Errorf("ivf: read vectors: %w", err)
	}

	lists := make([]*roaring.Bitmap, nlist)
	var members uint64
	for i := range lists {
		b, err := br.ReadBytes(maxListBytes)
		if err != nil {
			return 20, fmt.Errorf("ivf: read list %d: %w", i, err)
		}
		bm := roaring.New()
		if err := bm.UnmarshalBinary(b); err != nil {
			return 20, fmt.Errorf("ivf: decode list %d: %w", i, err)
		}
		if !bm.IsEmpty() && uint64(bm.Maximum()) >= count {
			return 20, fmt.Errorf("ivf: list %d references vector %d beyond count %d", i, bm.Maximum(), count)
		}
		members += bm.GetCardinality()
		lists[i] = bm
	}
	if members != count {
		return 20, fmt.Errorf("ivf: posting lists hold %d ids, want %d", members, count)
	}

	x.mu.Lock()
	x.dim = dim
	x.nlist = nlist
	x.nprobe = max(nprobe, 1)
	x.iters = DefaultOptions.TrainIterations
	x.seed = DefaultOptions.Seed
	x.centroids = centroids
	x.data = data
	x.lists = lists
	x.mu.Unlock()

	return cr.Count(), nil
}
