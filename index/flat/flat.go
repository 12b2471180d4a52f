// Package flat provides an exact inner-product index over a contiguous
// row-major matrix.
package flat

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/vecrag/distance"
	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/internal/queue"
)

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// cancelCheckInterval is how many rows are scanned between context checks.
const cancelCheckInterval = 4096

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all adds and searches.
	Dimension int

	// Capacity preallocates room for this many vectors.
	Capacity int
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{}

// Flat is an exact index. Search scans every stored vector.
type Flat struct {
	mu   sync.RWMutex
	dim  int
	data []float32
}

// New creates a new instance of the flat index.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dimension <= 0 {
		return nil, errors.New("flat: dimension must be positive")
	}

	return &Flat{
		dim:  opts.Dimension,
		data: make([]float32, 0, opts.Capacity*opts.Dimension),
	}, nil
}

// Type implements index.Index.
func (f *Flat) Type() index.Type { return index.TypeFlat }

// Dimension implements index.Index.
func (f *Flat) Dimension() int { return f.dim }

// Len implements index.Index.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dim
}

// IsTrained always reports true.
func (f *Flat) IsTrained() bool { return true }

// Train is a no-op.
func (f *Flat) Train(context.Context, [][]float32) error { return nil }

// Add appends vectors. Either all vectors are added or none.
func (f *Flat) Add(ctx context.Context, vectors [][]float32) error {
	for _, v := range vectors {
		if err := index.CheckDimension(v, f.dim); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Vector returns a copy of the stored vector with the given ID.
func (f *Flat) Vector(id int64) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if id < 0 || int(id) >= len(f.data)/f.dim {
		return nil, false
	}
	row := f.data[int(id)*f.dim : (int(id)+1)*f.dim]
	return append([]float32(nil), row...), true
}

// Search scans all vectors and returns the k highest inner products.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.CheckDimension(query, f.dim); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.data) / f.dim
	top := queue.NewTopK(min(k, n))
	for i := 0; i < n; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		top.Push(uint32(i), distance.Dot(query, f.data[i*f.dim:(i+1)*f.dim])) //nolint:gosec // bounded by Len
	}

	want := min(k, n)
	items := top.Drain()
	results := make([]index.SearchResult, len(items), want)
	for i, it := range items {
		results[i] = index.SearchResult{ID: int64(it.ID), Score: it.Score}
	}
	return index.PadResults(results, want), nil
}
