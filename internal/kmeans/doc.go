// Package kmeans implements spherical k-means clustering for coarse
// quantizer training.
//
// Inputs are expected to be L2-normalized. Assignment maximizes the inner
// product and centroids are re-normalized after each update, so the learned
// cells partition the unit sphere by cosine similarity.
package kmeans
