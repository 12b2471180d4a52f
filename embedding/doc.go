// Package embedding defines the contract between the indexing pipeline and an
// embedding provider: a batch of texts in, a batch of vectors out.
//
// Providers report recoverable failures (rate limiting, server errors, network
// faults) as *TransientError. WithRetry wraps any Gateway with exponential
// backoff on those errors; everything else is returned unchanged.
//
// Registry maps a provider type such as "openai" or "siliconflow" to a
// factory. It is immutable once built.
package embedding
