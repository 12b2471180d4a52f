// Package distance provides the vector kernels used by the indexes.
//
// Every index in this module scores by inner product over L2-normalized
// vectors, so Dot is the similarity and NormalizeL2InPlace is applied to
// both stored vectors and queries.
//
// # Usage
//
//	distance.NormalizeL2InPlace(vec)
//	sim := distance.Dot(a, b)
package distance
