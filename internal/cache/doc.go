// Package cache provides a bounded LRU cache.
//
// The searcher uses it to remember query embeddings so that repeated
// SearchByText calls for the same text skip the embedding gateway.
package cache
