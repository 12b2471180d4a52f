package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecrag/embedding"
	"github.com/hupe1980/vecrag/ratelimit"
)

var (
	// ErrRetriesExhausted is returned when a single chunk fails more often
	// than the ceiling set with WithMaxAttempts.
	ErrRetriesExhausted = errors.New("pipeline: retries exhausted")

	// ErrInvalidOption is returned for a non-positive batch size or
	// consumer count.
	ErrInvalidOption = errors.New("pipeline: invalid option")
)

// Observer receives pipeline events. The root MetricsCollector satisfies it.
type Observer interface {
	RecordEmbed(batchSize int, duration time.Duration, err error)
	RecordBatchSplit(batchSize int)
	RecordVectors(n int)
}

type noopObserver struct{}

func (noopObserver) RecordEmbed(int, time.Duration, error) {}
func (noopObserver) RecordBatchSplit(int)                  {}
func (noopObserver) RecordVectors(int)                     {}

type options struct {
	consumers       int
	batchLines      int
	tokensPerMinute int
	model           string
	maxAttempts     int
	logger          *slog.Logger
	observer        Observer
}

// Option configures Run.
type Option func(*options)

// WithConsumers sets the number of concurrent embedding workers.
func WithConsumers(n int) Option {
	return func(o *options) { o.consumers = n }
}

// WithBatchLines sets the maximum number of chunks per embedding request.
func WithBatchLines(n int) Option {
	return func(o *options) { o.batchLines = n }
}

// WithTokensPerMinute sets the request budget of the permit dispenser.
func WithTokensPerMinute(n int) Option {
	return func(o *options) { o.tokensPerMinute = n }
}

// WithModel sets the model name passed to the gateway.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithMaxAttempts bounds how often a single chunk is attempted. Zero, the
// default, retries forever.
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

// WithLogger sets the logger. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the event observer. Nil keeps the no-op observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

type batch struct {
	items    []string
	attempts int
}

// Run embeds chunks through gateway and returns the chunk to vector map.
// Every record is also streamed to sink, which may be nil.
//
// A failed batch, whether the gateway returned an error or a response of the
// wrong size, is split into single chunks and retried; a failing single
// chunk is re-queued as is. An empty response aborts the run.
func Run(ctx context.Context, chunks []string, gateway embedding.Gateway, sink Sink, optFns ...Option) (map[string][]float32, error) {
	opts := options{
		consumers:       4,
		batchLines:      10,
		tokensPerMinute: 60,
		logger:          slog.New(slog.DiscardHandler),
		observer:        noopObserver{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.consumers <= 0 {
		return nil, fmt.Errorf("%w: consumers %d", ErrInvalidOption, opts.consumers)
	}
	if opts.batchLines <= 0 {
		return nil, fmt.Errorf("%w: batch lines %d", ErrInvalidOption, opts.batchLines)
	}

	dispenser, err := ratelimit.NewDispenser(opts.tokensPerMinute)
	if err != nil {
		return nil, err
	}

	p := &run{
		opts:      opts,
		gateway:   gateway,
		sink:      sink,
		dispenser: dispenser,
		tasks:     newQueue[batch](),
		results:   newQueue[Record](),
		out:       make(map[string][]float32, len(chunks)),
		log:       opts.logger.With("run_id", uuid.NewString()),
	}

	p.log.Debug("pipeline started",
		"chunks", len(chunks),
		"consumers", opts.consumers,
		"batch_lines", opts.batchLines,
		"tokens_per_minute", opts.tokensPerMinute,
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	workCtx, stopWorkers := context.WithCancel(gctx)
	defer stopWorkers()

	g.Go(func() error { return dispenser.Run(workCtx) })
	for i := 0; i < opts.consumers; i++ {
		g.Go(func() error { return p.consume(workCtx) })
	}
	g.Go(func() error { return p.write(gctx) })
	g.Go(func() error {
		p.produce(chunks)
		err := p.tasks.join(gctx)
		stopWorkers()
		p.results.close()
		return err
	})

	if err := g.Wait(); err != nil {
		p.log.Warn("pipeline aborted", "error", err, "records", len(p.out))
		return nil, err
	}

	p.log.Info("pipeline finished",
		"chunks", len(chunks),
		"vectors", len(p.out),
		"duration", time.Since(start),
	)
	return p.out, nil
}

type run struct {
	opts      options
	gateway   embedding.Gateway
	sink      Sink
	dispenser *ratelimit.Dispenser
	tasks     *queue[batch]
	results   *queue[Record]
	out       map[string][]float32
	log       *slog.Logger
}

func (p *run) produce(chunks []string) {
	for lo := 0; lo < len(chunks); lo += p.opts.batchLines {
		hi := min(lo+p.opts.batchLines, len(chunks))
		p.tasks.put(batch{items: chunks[lo:hi]})
	}
}

// consume runs until ctx is cancelled, which happens only after the task
// queue is drained or another goroutine failed.
func (p *run) consume(ctx context.Context) error {
	for {
		b, err := p.tasks.get(ctx)
		if err != nil {
			return nil //nolint:nilerr // cancellation is the normal stop signal
		}
		err = p.handle(ctx, b)
		p.tasks.done()
		if err != nil {
			if ctx.Err() != nil {
				return nil //nolint:nilerr // aborted by another goroutine
			}
			return err
		}
	}
}

// handle embeds one batch. Failed work is re-queued before it returns, so
// the caller may mark the batch done without losing chunks.
func (p *run) handle(ctx context.Context, b batch) error {
	if err := p.dispenser.Acquire(ctx); err != nil {
		p.tasks.put(b)
		return err
	}

	start := time.Now()
	resp, err := p.gateway.Embed(ctx, p.opts.model, b.items)
	p.opts.observer.RecordEmbed(len(b.items), time.Since(start), err)

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.requeue(b, err)
	}

	vectors, err := resp.Vectors(len(b.items))
	if err != nil {
		return p.requeue(b, err)
	}
	for i, name := range b.items {
		p.results.put(Record{Name: name, Vector: vectors[i]})
	}
	p.log.Debug("batch embedded", "size", len(b.items), "duration", time.Since(start))
	return nil
}

// requeue splits or re-queues b after a failed call. Any gateway failure
// is retried, whatever its status, since one bad chunk can make the whole
// batch fail. Only an empty answer aborts.
func (p *run) requeue(b batch, cause error) error {
	var empty *embedding.EmptyResponseError
	if errors.As(cause, &empty) {
		return fmt.Errorf("pipeline: embed: %w", cause)
	}
	return p.retry(b, cause)
}

func (p *run) retry(b batch, cause error) error {
	if len(b.items) > 1 {
		p.opts.observer.RecordBatchSplit(len(b.items))
		p.log.Debug("splitting failed batch", "size", len(b.items), "error", cause)
		for _, item := range b.items {
			p.tasks.put(batch{items: []string{item}})
		}
		return nil
	}

	b.attempts++
	if p.opts.maxAttempts > 0 && b.attempts >= p.opts.maxAttempts {
		return fmt.Errorf("%w: %d attempts: %w", ErrRetriesExhausted, b.attempts, cause)
	}
	p.log.Debug("requeueing chunk", "attempt", b.attempts, "error", cause)
	p.tasks.put(b)
	return nil
}

// write owns the result map and the sink.
func (p *run) write(ctx context.Context) error {
	for {
		rec, err := p.results.get(ctx)
		if errors.Is(err, errQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		p.out[rec.Name] = rec.Vector
		p.opts.observer.RecordVectors(1)
		if p.sink != nil {
			if err := p.sink.Write(rec); err != nil {
				return fmt.Errorf("pipeline: write record: %w", err)
			}
		}
	}
}
