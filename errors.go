package vecrag

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecrag/embedding"
	"github.com/hupe1980/vecrag/index"
	"github.com/hupe1980/vecrag/indexer"
	"github.com/hupe1980/vecrag/pipeline"
	"github.com/hupe1980/vecrag/searcher"
)

var (
	// ErrInvalidK is returned when topK is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrMalformedIndex is returned when a persisted index is missing,
	// unreadable, or inconsistent with its mapping.
	ErrMalformedIndex = errors.New("malformed index")

	// ErrEmptyResponse is returned when the embedding provider answers a
	// non-empty batch with no vectors.
	ErrEmptyResponse = errors.New("empty embedding response")

	// ErrEmptyCorpus is returned when the source yields no chunks.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrRetriesExhausted is returned when a chunk exceeded the attempt
	// ceiling set with WithMaxAttempts.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}
	if errors.Is(err, searcher.ErrMalformedIndex) {
		return fmt.Errorf("%w: %w", ErrMalformedIndex, err)
	}
	var empty *embedding.EmptyResponseError
	if errors.As(err, &empty) {
		return fmt.Errorf("%w: %w", ErrEmptyResponse, err)
	}
	if errors.Is(err, indexer.ErrEmptyCorpus) {
		return fmt.Errorf("%w: %w", ErrEmptyCorpus, err)
	}
	if errors.Is(err, pipeline.ErrRetriesExhausted) {
		return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
	}

	return err
}
