// Package index defines the vector index contract shared by the exact and
// inverted-file implementations.
//
// All indexes score by inner product. Callers L2-normalize vectors before
// adding them, which makes the score a cosine similarity.
//
// # Index Selection
//
//   - Flat: exact search, used up to the flat threshold (50,000 vectors by default)
//   - IVF: inverted-file search over k-means cells, used above it
//
// # Results
//
// Search returns min(k, Len()) results ordered by descending score, so a k
// larger than the index costs nothing extra. When an approximate search
// reaches fewer vectors than that, the tail is padded with NoMatch entries,
// which callers must skip.
//
// # Subpackages
//
//   - flat: exact inner-product search over a contiguous matrix
//   - ivf: inverted-file search with roaring posting lists
package index
