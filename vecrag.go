package vecrag

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hupe1980/vecrag/blobstore"
	"github.com/hupe1980/vecrag/chunker"
	"github.com/hupe1980/vecrag/config"
	"github.com/hupe1980/vecrag/embedding"
	"github.com/hupe1980/vecrag/indexer"
	"github.com/hupe1980/vecrag/pipeline"
	"github.com/hupe1980/vecrag/searcher"
	"github.com/hupe1980/vecrag/source"
)

// OutputDirName is the directory Vectorize creates next to the source.
const OutputDirName = "vector"

// DefaultOutputDir returns the index directory for sourceDir.
func DefaultOutputDir(sourceDir string) (string, error) {
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(abs), OutputDirName), nil
}

// Vectorize reads every *.txt file below sourceDir, chunks and embeds the
// text and builds the index. It returns the output directory.
func Vectorize(ctx context.Context, sourceDir string, cfg config.Vectorize, gateway embedding.Gateway, model string, optFns ...Option) (string, error) {
	opts := applyOptions(optFns)
	log := opts.logger.WithSource(sourceDir)

	if err := cfg.Validate(); err != nil {
		return "", err
	}

	outDir := opts.outputDir
	if outDir == "" {
		var err error
		if outDir, err = DefaultOutputDir(sourceDir); err != nil {
			return "", err
		}
	}

	docs, err := source.New(func(o *source.Options) {
		o.Logger = log.Logger
	}).Load(ctx, sourceDir)
	if err != nil {
		return "", err
	}
	chunks := chunker.Split(source.Texts(docs), cfg.MinChunkSize, cfg.MaxChunkSize)
	log.InfoContext(ctx, "source chunked", "documents", len(docs), "chunks", len(chunks))
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: no text below %s", ErrEmptyCorpus, sourceDir)
	}

	if opts.debugChunks {
		if err := pipeline.WriteDebugChunks(outDir, chunks); err != nil {
			return "", err
		}
	}

	data, err := embed(ctx, chunks, cfg, gateway, model, outDir, opts)
	if err != nil {
		return "", translateError(err)
	}

	if err := build(ctx, data, outDir, opts); err != nil {
		return "", err
	}
	return outDir, nil
}

func embed(ctx context.Context, chunks []string, cfg config.Vectorize, gateway embedding.Gateway, model, outDir string, opts options) (data map[string][]float32, err error) {
	start := time.Now()
	defer func() {
		opts.logger.LogBatch(ctx, len(chunks), len(data), time.Since(start), err)
	}()

	var sink *pipeline.FileSink
	if opts.vectorDump {
		if sink, err = pipeline.CreateFileSink(outDir); err != nil {
			return nil, err
		}
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithConsumers(cfg.ConsumerCount),
		pipeline.WithBatchLines(cfg.MaxBatchLines),
		pipeline.WithTokensPerMinute(cfg.TokensPerMinute),
		pipeline.WithModel(model),
		pipeline.WithMaxAttempts(opts.maxAttempts),
		pipeline.WithLogger(opts.logger.Logger),
		pipeline.WithObserver(opts.metricsCollector),
	}

	if sink == nil {
		return pipeline.Run(ctx, chunks, gateway, nil, pipeOpts...)
	}
	data, err = pipeline.Run(ctx, chunks, gateway, sink, pipeOpts...)
	if err != nil {
		sink.Abort()
		return nil, err
	}
	if err := sink.Close(); err != nil {
		return nil, err
	}
	return data, nil
}

// Build indexes data into dir, or into the store set with WithStore.
func Build(ctx context.Context, data map[string][]float32, dir string, optFns ...Option) error {
	return build(ctx, data, dir, applyOptions(optFns))
}

func build(ctx context.Context, data map[string][]float32, dir string, opts options) error {
	idxOpts := append([]indexer.Option{
		indexer.WithLogger(opts.logger.Logger),
		indexer.WithObserver(opts.metricsCollector),
	}, opts.indexOptions...)

	var err error
	if opts.store != nil {
		err = indexer.BuildTo(ctx, data, opts.store, idxOpts...)
	} else {
		err = indexer.Build(ctx, data, dir, idxOpts...)
	}
	opts.logger.LogBuild(ctx, dir, len(data), err)
	return translateError(err)
}

// Searcher queries a loaded index. It is safe for concurrent use.
type Searcher struct {
	s      *searcher.Searcher
	logger *Logger
}

// Open loads the index in dir, or in the store set with WithStore.
func Open(ctx context.Context, dir string, optFns ...Option) (*Searcher, error) {
	opts := applyOptions(optFns)
	sOpts := []searcher.Option{
		searcher.WithLogger(opts.logger.Logger),
		searcher.WithObserver(opts.metricsCollector),
		searcher.WithQueryCache(opts.queryCache),
	}

	var (
		s   *searcher.Searcher
		err error
	)
	if opts.store != nil {
		s, err = searcher.OpenStore(ctx, opts.store, sOpts...)
	} else {
		s, err = searcher.Open(ctx, dir, sOpts...)
	}
	if err != nil {
		opts.logger.LogLoad(ctx, dir, 0, err)
		return nil, translateError(err)
	}
	opts.logger.LogLoad(ctx, dir, s.Len(), nil)
	return &Searcher{s: s, logger: opts.logger}, nil
}

// OpenStore loads the index published in store.
func OpenStore(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*Searcher, error) {
	return Open(ctx, "", append(optFns, WithStore(store))...)
}

// Len returns the number of indexed chunks.
func (s *Searcher) Len() int { return s.s.Len() }

// Dimension returns the vector dimensionality.
func (s *Searcher) Dimension() int { return s.s.Dimension() }

// Search returns the topK chunks most similar to query, best first.
func (s *Searcher) Search(ctx context.Context, query []float32, topK int) ([]string, error) {
	ids, err := s.s.Search(ctx, query, topK)
	s.logger.LogSearch(ctx, topK, len(ids), err)
	return ids, translateError(err)
}

// SearchWithScores is Search returning the cosine similarity of every hit.
func (s *Searcher) SearchWithScores(ctx context.Context, query []float32, topK int) ([]searcher.Result, error) {
	hits, err := s.s.SearchWithScores(ctx, query, topK)
	s.logger.LogSearch(ctx, topK, len(hits), err)
	return hits, translateError(err)
}

// SearchByText embeds text and searches for it.
func (s *Searcher) SearchByText(ctx context.Context, gateway embedding.Gateway, text, model string, topK int) ([]string, error) {
	ids, err := s.s.SearchByText(ctx, gateway, text, model, topK)
	s.logger.LogSearch(ctx, topK, len(ids), err)
	return ids, translateError(err)
}

// Search opens the index in dir and runs one query.
func Search(ctx context.Context, dir string, query []float32, topK int, optFns ...Option) ([]string, error) {
	s, err := Open(ctx, dir, optFns...)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, query, topK)
}

// SearchText opens the index in dir and runs one text query.
func SearchText(ctx context.Context, dir string, gateway embedding.Gateway, model, text string, topK int, optFns ...Option) ([]string, error) {
	s, err := Open(ctx, dir, optFns...)
	if err != nil {
		return nil, err
	}
	return s.SearchByText(ctx, gateway, text, model, topK)
}
