package indexer

import (
	"log/slog"
	"time"

	"github.com/hupe1980/vecrag/codec"
	"github.com/hupe1980/vecrag/persistence"
)

// Observer receives build events. The root MetricsCollector satisfies it.
type Observer interface {
	RecordBuild(vectors int, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) RecordBuild(int, time.Duration, error) {}

type options struct {
	flatThreshold int
	numLists      int
	nprobe        int
	workers       int
	compression   persistence.Compression
	codec         codec.Codec
	logger        *slog.Logger
	observer      Observer
}

func defaultOptions() options {
	return options{
		flatThreshold: DefaultFlatThreshold,
		numLists:      DefaultNumLists,
		nprobe:        1,
		compression:   persistence.CompressionNone,
		codec:         codec.GoJSON{},
		logger:        slog.New(slog.DiscardHandler),
		observer:      noopObserver{},
	}
}

// Option configures Build and BuildTo.
type Option func(*options)

// WithFlatThreshold sets the largest corpus that gets an exact flat index.
func WithFlatThreshold(n int) Option {
	return func(o *options) { o.flatThreshold = n }
}

// WithNumLists sets the number of IVF cells used above the flat threshold.
func WithNumLists(n int) Option {
	return func(o *options) { o.numLists = n }
}

// WithNProbe sets the number of IVF cells scanned per query.
func WithNProbe(n int) Option {
	return func(o *options) { o.nprobe = n }
}

// WithWorkers bounds the goroutines used for normalization and training.
// Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithCompression sets the codec of the index payload.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithCodec sets the codec of the id mapping. Nil keeps codec.GoJSON.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the build observer. Nil keeps the no-op observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}
