package vecrag

import (
	"github.com/hupe1980/vecrag/blobstore"
	"github.com/hupe1980/vecrag/indexer"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	outputDir        string
	store            blobstore.BlobStore
	debugChunks      bool
	vectorDump       bool
	maxAttempts      int
	queryCache       int
	indexOptions     []indexer.Option
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		vectorDump:       true,
	}
}

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Option configures Vectorize, Build and Open.
type Option func(*options)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector sets the metrics collector used by the pipeline,
// the index builder and searchers. Nil keeps the no-op collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metricsCollector = mc
		}
	}
}

// WithOutputDir overrides the index directory of Vectorize, which defaults
// to a "vector" directory next to the source directory.
func WithOutputDir(dir string) Option {
	return func(o *options) { o.outputDir = dir }
}

// WithStore publishes the index into store instead of the output directory.
// The debug artifacts are still written to the output directory.
func WithStore(store blobstore.BlobStore) Option {
	return func(o *options) { o.store = store }
}

// WithDebugChunks writes the chunks to debug.txt in the output directory.
func WithDebugChunks() Option {
	return func(o *options) { o.debugChunks = true }
}

// WithVectorDump enables or disables vector.json. It is enabled by default.
func WithVectorDump(enabled bool) Option {
	return func(o *options) { o.vectorDump = enabled }
}

// WithMaxAttempts bounds how often a single chunk is sent to the provider.
// Zero, the default, retries forever.
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

// WithQueryCache makes searchers keep the embeddings of the last n query
// texts.
func WithQueryCache(n int) Option {
	return func(o *options) { o.queryCache = n }
}

// WithIndexOptions passes options through to the index builder.
func WithIndexOptions(opts ...indexer.Option) Option {
	return func(o *options) { o.indexOptions = append(o.indexOptions, opts...) }
}
