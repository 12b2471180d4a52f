// Package ivf provides an inverted-file index: vectors are assigned to the
// nearest of NumLists k-means centroids, and a search scans only the NProbe
// cells whose centroids score highest against the query.
//
// Posting lists are roaring bitmaps of vector IDs. Vectors are stored once,
// in insertion order, so an ID is also the row of the vector in storage.
package ivf

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecrag/distance"
	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/internal/kmeans"
	"github.com/hupe1980/vecrag/internal/queue"
)

var _ index.Index = (*IVF)(nil)

// assignChunk is the number of vectors one assignment task handles.
const assignChunk = 1024

// Options contains configuration options for the IVF index.
type Options struct {
	// Dimension is the fixed vector dimensionality. Required.
	Dimension int

	// NumLists is the number of coarse cells. Training clamps it to the
	// number of training vectors.
	NumLists int

	// NProbe is the number of cells scanned per query.
	NProbe int

	// TrainIterations bounds the k-means iterations.
	TrainIterations int

	// Workers bounds the goroutines used for training and assignment.
	// Zero means GOMAXPROCS.
	Workers int

	// Seed seeds centroid initialization.
	Seed int64
}

// DefaultOptions contains the default configuration options for the IVF index.
var DefaultOptions = Options{
	NumLists:        100,
	NProbe:          1,
	TrainIterations: 25,
	Seed:            1,
}

// IVF is an inverted-file inner-product index.
type IVF struct {
	mu sync.RWMutex

	dim     int
	nlist   int
	nprobe  int
	iters   int
	workers int
	seed    int64

	centroids []float32
	data      []float32
	lists     []*roaring.Bitmap
}

// New creates an untrained IVF index.
func New(optFns ...func(o *Options)) (*IVF, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dimension <= 0 {
		return nil, errors.New("ivf: dimension must be positive")
	}
	if opts.NumLists <= 0 {
		return nil, fmt.Errorf("ivf: invalid list count %d", opts.NumLists)
	}
	if opts.NProbe <= 0 {
		opts.NProbe = 1
	}

	return &IVF{
		dim:     opts.Dimension,
		nlist:   opts.NumLists,
		nprobe:  opts.NProbe,
		iters:   opts.TrainIterations,
		workers: opts.Workers,
		seed:    opts.Seed,
	}, nil
}

// Type implements index.Index.
func (x *IVF) Type() index.Type { return index.TypeIVF }

// Dimension implements index.Index.
func (x *IVF) Dimension() int { return x.dim }

// Len implements index.Index.
func (x *IVF) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.data) / x.dim
}

// NumLists returns the number of cells. Before training it is the configured
// value, afterwards the trained one.
func (x *IVF) NumLists() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.nlist
}

// IsTrained reports whether centroids exist.
func (x *IVF) IsTrained() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.centroids != nil
}

// SetNProbe changes the number of cells scanned per query.
func (x *IVF) SetNProbe(n int) {
	if n <= 0 {
		n = 1
	}
	x.mu.Lock()
	x.nprobe = n
	x.mu.Unlock()
}

// Train learns the coarse centroids with spherical k-means.
func (x *IVF) Train(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return errors.New("ivf: no training vectors")
	}
	flat := make([]float32, 0, len(vectors)*x.dim)
	for _, v := range vectors {
		if err := index.CheckDimension(v, x.dim); err != nil {
			return err
		}
		flat = append(flat, v...)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	nlist := min(x.nlist, len(vectors))
	centroids, err := kmeans.Train(ctx, flat, x.dim, kmeans.Config{
		K:       nlist,
		MaxIter: x.iters,
		Workers: x.workers,
		Rand:    rand.New(rand.NewSource(x.seed)), //nolint:gosec // deterministic seeding
	})
	if err != nil {
		return fmt.Errorf("ivf: train: %w", err)
	}

	x.nlist = nlist
	x.centroids = centroids
	x.lists = make([]*roaring.Bitmap, nlist)
	for i := range x.lists {
		x.lists[i] = roaring.New()
	}
	return nil
}

// Add assigns vectors to their nearest cell and appends them. Either all
// vectors are added or none.
func (x *IVF) Add(ctx context.Context, vectors [][]float32) error {
	for _, v := range vectors {
		if err := index.CheckDimension(v, x.dim); err != nil {
			return err
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.centroids == nil {
		return index.ErrNotTrained
	}

	cells, err := x.assign(ctx, vectors)
	if err != nil {
		return err
	}

	base := len(x.data) / x.dim
	for i, v := range vectors {
		x.data = append(x.data, v...)
		x.lists[cells[i]].Add(uint32(base + i)) //nolint:gosec // bounded by the 2^32 row limit
	}
	return nil
}

func (x *IVF) assign(ctx context.Context, vectors [][]float32) ([]int, error) {
	workers := x.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	cells := make([]int, len(vectors))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(vectors); lo += assignChunk {
		hi := min(lo+assignChunk, len(vectors))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				cells[i] = kmeans.Nearest(vectors[i], x.centroids, x.dim)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cells, nil
}

// Search scans the NProbe best cells and returns the k highest inner
// products among their members.
func (x *IVF) Search(ctx context.Context, query []float32, k int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.CheckDimension(query, x.dim); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.centroids == nil {
		return nil, index.ErrNotTrained
	}

	n := len(x.data) / x.dim
	top := queue.NewTopK(min(k, n))
	for _, cell := range kmeans.NearestN(query, x.centroids, x.dim, x.nprobe) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it := x.lists[cell].Iterator()
		for it.HasNext() {
			id := it.Next()
			row := x.data[int(id)*x.dim : (int(id)+1)*x.dim]
			top.Push(id, distance.Dot(query, row))
		}
	}

	want := min(k, n)
	items := top.Drain()
	results := make([]index.SearchResult, len(items), want)
	for i, it := range items {
		results[i] = index.SearchResult{ID: int64(it.ID), Score: it.Score}
	}
	return index.PadResults(results, want), nil
}

// ListSizes returns the number of vectors in each cell.
func (x *IVF) ListSizes() []int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	sizes := make([]int, len(x.lists))
	for i, l := range x.lists {
		sizes[i] = int(l.GetCardinality()) //nolint:gosec // bounded by Len
	}
	return sizes
}
