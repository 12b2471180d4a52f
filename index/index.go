package index

import (
	"context"
	"fmt"
	"io"
)

// NoMatch is the ID of padding results returned when a search reaches fewer
// vectors than it returns.
const NoMatch int64 = -1

// Type identifies an index topology on disk.
type Type uint8

// Index types.
const (
	TypeFlat Type = 1
	TypeIVF  Type = 2
)

// String returns a string representation of the Type.
func (t Type) String() string {
	switch t {
	case TypeFlat:
		return "Flat"
	case TypeIVF:
		return "IVF"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// SearchResult represents a search result.
type SearchResult struct {
	// ID is the insertion position of the vector, or NoMatch.
	ID int64

	// Score is the inner product between the query and the vector.
	Score float32
}

// Index is an append-only inner-product vector index.
type Index interface {
	// Type returns the on-disk topology identifier.
	Type() Type

	// Dimension returns the vector dimensionality.
	Dimension() int

	// Len returns the number of stored vectors.
	Len() int

	// IsTrained reports whether Add may be called.
	IsTrained() bool

	// Train prepares the index from a sample of vectors. It is a no-op for
	// indexes that need no training.
	Train(ctx context.Context, vectors [][]float32) error

	// Add appends vectors. The i-th added vector gets ID Len()+i.
	Add(ctx context.Context, vectors [][]float32) error

	// Search returns min(k, Len()) results ordered by descending score.
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)

	// WriteTo serializes the index payload.
	io.WriterTo
}

// PadResults extends results to length k with NoMatch entries.
func PadResults(results []SearchResult, k int) []SearchResult {
	for len(results) < k {
		results = append(results, SearchResult{ID: NoMatch})
	}
	return results
}
