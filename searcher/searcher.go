// Package searcher answers nearest-neighbour queries against a published
// index.
//
// A Searcher is built once from the index blob and the id mapping and is
// read-only afterwards; it is safe for concurrent use. Queries are
// L2-normalized before the lookup so scores are cosine similarities.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/vecrag/blobstore"
	"github.com/hupe1980/vecrag/codec"
	"github.com/hupe1980/vecrag/distance"
	"github.com/hupe1980/vecrag/embedding"
	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/indexer"
	"github.com/hupe1980/vecrag/internal/cache"
)

// ErrMalformedIndex is returned when the index or the mapping is missing or
// unreadable. *FormatError matches it with errors.Is.
var ErrMalformedIndex = errors.New("searcher: malformed index")

// FormatError reports an index and mapping that do not belong together.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return "searcher: inconsistent index: " + e.Err.Error()
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedIndex.
func (e *FormatError) Is(target error) bool { return target == ErrMalformedIndex }

// Observer receives search events. The root MetricsCollector satisfies it.
type Observer interface {
	RecordSearch(k int, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) RecordSearch(int, time.Duration, error) {}

// Result is one hit of SearchWithScores.
type Result struct {
	ID    string
	Score float32
}

type queryKey struct {
	model string
	text  string
}

type options struct {
	cacheSize int
	codec     codec.Codec
	logger    *slog.Logger
	observer  Observer
}

// Option configures Open and OpenStore.
type Option func(*options)

// WithQueryCache keeps the embeddings of the last n distinct query texts.
// Zero, the default, disables the cache.
func WithQueryCache(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithCodec sets the codec of the id mapping. Nil keeps codec.GoJSON.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the search observer. Nil keeps the no-op observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// Searcher is a loaded, immutable index.
type Searcher struct {
	idx        index.Index
	names      []string
	generation string
	queries    *cache.LRU[queryKey, []float32]
	logger     *slog.Logger
	observer   Observer
}

// Open loads the index published in dir.
func Open(ctx context.Context, dir string, optFns ...Option) (*Searcher, error) {
	return OpenStore(ctx, blobstore.NewLocalStore(dir), optFns...)
}

// OpenStore loads the index published in store.
func OpenStore(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*Searcher, error) {
	opts := options{
		codec:    codec.GoJSON{},
		logger:   slog.New(slog.DiscardHandler),
		observer: noopObserver{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	start := time.Now()
	art, err := indexer.Load(ctx, store, indexer.WithCodec(opts.codec))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedIndex, err)
	}
	if err := art.Validate(); err != nil {
		return nil, &FormatError{Err: err}
	}

	s := &Searcher{
		idx:        art.Index,
		names:      art.Names,
		generation: art.Generation,
		logger:     opts.logger,
		observer:   opts.observer,
	}
	if opts.cacheSize > 0 {
		s.queries = cache.NewLRU[queryKey, []float32](opts.cacheSize)
	}

	opts.logger.Info("index loaded",
		"type", art.Index.Type().String(),
		"vectors", art.Index.Len(),
		"dimension", art.Index.Dimension(),
		"generation", art.Generation,
		"duration", time.Since(start),
	)
	return s, nil
}

// Len returns the number of indexed chunks.
func (s *Searcher) Len() int { return len(s.names) }

// Dimension returns the vector dimensionality.
func (s *Searcher) Dimension() int { return s.idx.Dimension() }

// Generation returns the loaded generation, empty for directory indexes.
func (s *Searcher) Generation() string { return s.generation }

// Search returns the identifiers of the topK chunks most similar to query,
// best first. Fewer than topK are returned when the corpus is smaller.
func (s *Searcher) Search(ctx context.Context, query []float32, topK int) ([]string, error) {
	hits, err := s.SearchWithScores(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// SearchWithScores is Search returning the cosine similarity of every hit.
func (s *Searcher) SearchWithScores(ctx context.Context, query []float32, topK int) (results []Result, err error) {
	start := time.Now()
	defer func() {
		s.observer.RecordSearch(topK, time.Since(start), err)
	}()

	if topK <= 0 {
		return nil, index.ErrInvalidK
	}
	q, ok := distance.NormalizeL2Copy(query)
	if !ok {
		q = query
	}

	k := min(topK, len(s.names))
	if k == 0 {
		return []Result{}, nil
	}
	hits, err := s.idx.Search(ctx, q, k)
	if err != nil {
		return nil, err
	}

	results = make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.ID == index.NoMatch {
			continue
		}
		if h.ID < 0 || h.ID >= int64(len(s.names)) {
			return nil, &FormatError{Err: fmt.Errorf("index returned id %d beyond mapping size %d", h.ID, len(s.names))}
		}
		results = append(results, Result{ID: s.names[h.ID], Score: h.Score})
	}
	return results, nil
}

// SearchByText embeds text with a single gateway call and searches for it.
// Gateway errors are returned unchanged.
func (s *Searcher) SearchByText(ctx context.Context, gateway embedding.Gateway, text, model string, topK int) ([]string, error) {
	vec, err := s.embedQuery(ctx, gateway, text, model)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, vec, topK)
}

func (s *Searcher) embedQuery(ctx context.Context, gateway embedding.Gateway, text, model string) ([]float32, error) {
	key := queryKey{model: model, text: text}
	if s.queries != nil {
		if vec, ok := s.queries.Get(key); ok {
			s.logger.Debug("query embedding cache hit", "model", model)
			return vec, nil
		}
	}

	resp, err := gateway.Embed(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	vec, err := resp.First()
	if err != nil {
		return nil, err
	}

	if s.queries != nil {
		s.queries.Add(key, vec)
	}
	return vec, nil
}

// CacheStats returns query cache hits and misses. Both are zero when the
// cache is disabled.
func (s *Searcher) CacheStats() (hits, misses int64) {
	if s.queries == nil {
		return 0, 0
	}
	return s.queries.Stats()
}
