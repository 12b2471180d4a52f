// Package pipeline turns text chunks into embeddings.
//
// Run partitions the chunks into batches on an unbounded work queue. A pool
// of consumers takes a batch, waits for a permit from the rate limiter and
// calls the embedding gateway. A failed batch is split into single chunks
// which are queued again, so no chunk is dropped. A single
// writer goroutine owns the result map and the optional Sink.
//
// Shutdown is ordered: the work queue is joined first, then the consumers
// and the dispenser are stopped, then the result queue is closed and the
// writer drains it.
package pipeline
