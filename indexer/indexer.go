// Package indexer turns a chunk to vector map into a persisted index.
//
// A build writes two blobs: index.vidx, the index payload behind a
// persistence header, and id_mapping.json, a JSON array whose i-th string
// names vector i. The header records the CRC32 of the mapping bytes so a
// reader can reject a pair that was not written together.
package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecrag/blobstore"
	"github.com/hupe1980/vecrag/distance"
	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/index/flat"
	"github.com/hupe1980/vecrag/index/ivf"
	"github.com/hupe1980/vecrag/internal/conv"
	"github.com/hupe1980/vecrag/persistence"
)

const (
	// IndexFileName is the blob holding the serialized index.
	IndexFileName = "index.vidx"
	// MappingFileName is the blob holding the id mapping.
	MappingFileName = "id_mapping.json"

	// DefaultFlatThreshold is the largest corpus indexed exactly.
	DefaultFlatThreshold = 50_000
	// DefaultNumLists is the IVF cell count for larger corpora.
	DefaultNumLists = 100
)

// ErrEmptyCorpus is returned when there is nothing to index.
var ErrEmptyCorpus = errors.New("indexer: empty corpus")

// normalizeChunk is the number of rows one normalization task handles.
const normalizeChunk = 4096

// Build indexes data and publishes the result into dir.
func Build(ctx context.Context, data map[string][]float32, dir string, optFns ...Option) error {
	return BuildTo(ctx, data, blobstore.NewLocalStore(dir), optFns...)
}

// BuildTo indexes data and publishes the result into store.
//
// Names are sorted, so two builds of the same map produce the same mapping.
// Every vector is L2-normalized before insertion, which makes the inner
// product of the index a cosine similarity.
func BuildTo(ctx context.Context, data map[string][]float32, store blobstore.BlobStore, optFns ...Option) (err error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	start := time.Now()
	defer func() {
		opts.observer.RecordBuild(len(data), time.Since(start), err)
	}()

	blobs, idx, err := build(ctx, data, opts)
	if err != nil {
		return err
	}

	generation, err := Publish(ctx, store, blobs)
	if err != nil {
		return err
	}

	opts.logger.Info("index published",
		"type", idx.Type().String(),
		"vectors", idx.Len(),
		"dimension", idx.Dimension(),
		"generation", generation,
		"duration", time.Since(start),
	)
	return nil
}

// Encode builds the index for data and returns the blobs Publish expects
// without writing them anywhere.
func Encode(ctx context.Context, data map[string][]float32, optFns ...Option) (map[string][]byte, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	blobs, _, err := build(ctx, data, opts)
	return blobs, err
}

func build(ctx context.Context, data map[string][]float32, opts options) (map[string][]byte, index.Index, error) {
	if len(data) == 0 {
		return nil, nil, ErrEmptyCorpus
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	dim := len(data[names[0]])
	if dim == 0 {
		return nil, nil, fmt.Errorf("indexer: vector %q is empty", names[0])
	}
	vectors := make([][]float32, len(names))
	for i, name := range names {
		v := data[name]
		if err := index.CheckDimension(v, dim); err != nil {
			return nil, nil, fmt.Errorf("indexer: vector %q: %w", name, err)
		}
		vectors[i] = v
	}

	normalized, zero, err := normalize(ctx, vectors, opts.workers)
	if err != nil {
		return nil, nil, err
	}
	if zero > 0 {
		opts.logger.Warn("zero vectors left unnormalized", "count", zero)
	}

	idx, err := newIndex(len(normalized), dim, opts)
	if err != nil {
		return nil, nil, err
	}
	opts.logger.Debug("building index", "type", idx.Type().String(), "vectors", len(normalized), "dimension", dim)
	if err := idx.Train(ctx, normalized); err != nil {
		return nil, nil, err
	}
	if err := idx.Add(ctx, normalized); err != nil {
		return nil, nil, err
	}

	mapping, err := opts.codec.Marshal(names)
	if err != nil {
		return nil, nil, fmt.Errorf("indexer: encode mapping: %w", err)
	}

	count, err := conv.IntToUint64(idx.Len())
	if err != nil {
		return nil, nil, err
	}
	udim, err := conv.IntToUint32(dim)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	hdr := persistence.FileHeader{
		IndexType:       uint8(idx.Type()),
		Compression:     uint8(opts.compression),
		Dimension:       udim,
		VectorCount:     count,
		MappingChecksum: persistence.Checksum(mapping),
	}
	err = persistence.Encode(&buf, hdr, func(w io.Writer) error {
		_, err := idx.WriteTo(w)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("indexer: encode index: %w", err)
	}

	return map[string][]byte{
		IndexFileName:   buf.Bytes(),
		MappingFileName: mapping,
	}, idx, nil
}

func newIndex(n, dim int, opts options) (index.Index, error) {
	if n <= opts.flatThreshold {
		return flat.New(func(o *flat.Options) {
			o.Dimension = dim
			o.Capacity = n
		})
	}
	return ivf.New(func(o *ivf.Options) {
		o.Dimension = dim
		o.NumLists = opts.numLists
		o.NProbe = opts.nprobe
		o.Workers = opts.workers
	})
}

// normalize returns L2-normalized copies of vectors and the number of zero
// vectors, which are copied unchanged.
func normalize(ctx context.Context, vectors [][]float32, workers int) ([][]float32, int, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	dim := len(vectors[0])
	backing := make([]float32, len(vectors)*dim)
	out := make([][]float32, len(vectors))
	zeros := make([]int, (len(vectors)+normalizeChunk-1)/normalizeChunk)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(vectors); lo += normalizeChunk {
		hi := min(lo+normalizeChunk, len(vectors))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				row := backing[i*dim : (i+1)*dim : (i+1)*dim]
				copy(row, vectors[i])
				if !distance.NormalizeL2InPlace(row) {
					zeros[lo/normalizeChunk]++
				}
				out[i] = row
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	zero := 0
	for _, z := range zeros {
		zero += z
	}
	return out, zero, nil
}
