package vecrag

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// A collector is handed to the pipeline, the index builder and the searcher,
// so it must be safe for concurrent use.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    embedHistogram prometheus.Histogram
//	    splitCounter   prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordEmbed(size int, d time.Duration, err error) {
//	    p.embedHistogram.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordEmbed is called after each embedding request.
	// batchSize is the number of chunks sent, err is nil if successful.
	RecordEmbed(batchSize int, duration time.Duration, err error)

	// RecordBatchSplit is called when a failed batch is split into
	// single-chunk batches.
	RecordBatchSplit(batchSize int)

	// RecordVectors is called as embedded chunks reach the writer.
	RecordVectors(n int)

	// RecordBuild is called after each index build.
	RecordBuild(vectors int, duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// k is the number of neighbors requested, duration is the time taken,
	// err is nil if successful.
	RecordSearch(k int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEmbed(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordBatchSplit(int)                   {}
func (NoopMetricsCollector) RecordVectors(int)                      {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	EmbedCount       atomic.Int64
	EmbedErrors      atomic.Int64
	EmbedChunks      atomic.Int64
	EmbedTotalNanos  atomic.Int64
	BatchSplits      atomic.Int64
	VectorsWritten   atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildVectors     atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
}

// RecordEmbed implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEmbed(batchSize int, duration time.Duration, err error) {
	b.EmbedCount.Add(1)
	b.EmbedChunks.Add(int64(batchSize))
	b.EmbedTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EmbedErrors.Add(1)
	}
}

// RecordBatchSplit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchSplit(int) {
	b.BatchSplits.Add(1)
}

// RecordVectors implements MetricsCollector.
func (b *BasicMetricsCollector) RecordVectors(n int) {
	b.VectorsWritten.Add(int64(n))
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(vectors int, _ time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildVectors.Add(int64(vectors))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		EmbedCount:     b.EmbedCount.Load(),
		EmbedErrors:    b.EmbedErrors.Load(),
		EmbedChunks:    b.EmbedChunks.Load(),
		EmbedAvgNanos:  avg(b.EmbedTotalNanos.Load(), b.EmbedCount.Load()),
		BatchSplits:    b.BatchSplits.Load(),
		VectorsWritten: b.VectorsWritten.Load(),
		BuildCount:     b.BuildCount.Load(),
		BuildErrors:    b.BuildErrors.Load(),
		BuildVectors:   b.BuildVectors.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	EmbedCount     int64
	EmbedErrors    int64
	EmbedChunks    int64
	EmbedAvgNanos  int64
	BatchSplits    int64
	VectorsWritten int64
	BuildCount     int64
	BuildErrors    int64
	BuildVectors   int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
}
