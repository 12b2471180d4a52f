// Command vecrag builds and queries retrieval indexes from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecrag"
	"github.com/hupe1980/vecrag/codec"
	"github.com/hupe1980/vecrag/config"
	"github.com/hupe1980/vecrag/embedding"
	"github.com/hupe1980/vecrag/embedding/openai"
	"github.com/hupe1980/vecrag/indexer"
	"github.com/hupe1980/vecrag/persistence"
)

var (
	configPath string
	envFile    string
	verbose    bool
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:           "vecrag",
	Short:         "Build and query retrieval indexes over text documents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with provider credentials")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log as JSON")

	rootCmd.AddCommand(newBuildCmd(), newSearchCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() *vecrag.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if jsonLogs {
		return vecrag.NewJSONLogger(level)
	}
	return vecrag.NewTextLogger(level)
}

func newGateway(cfg *config.Config) (embedding.Gateway, error) {
	return openai.NewRegistry().New(cfg.Embedding.ProviderType, cfg.Embedding.ProviderConfig())
}

// commonOptions maps the index and store sections onto vecrag options.
func commonOptions(ctx context.Context, cfg *config.Config, dir string, logger *vecrag.Logger) ([]vecrag.Option, error) {
	compression, err := persistence.ParseCompression(cfg.Index.Compression)
	if err != nil {
		return nil, err
	}

	mappingCodec, _ := codec.ByName(cfg.Index.Codec)

	opts := []vecrag.Option{
		vecrag.WithLogger(logger),
		vecrag.WithIndexOptions(
			indexer.WithCompression(compression),
			indexer.WithFlatThreshold(cfg.Index.FlatThreshold),
			indexer.WithNumLists(cfg.Index.NumLists),
			indexer.WithNProbe(cfg.Index.NProbe),
			indexer.WithCodec(mappingCodec),
		),
	}

	if cfg.Store.Type != config.StoreLocal {
		store, err := cfg.Store.Open(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
		}
		opts = append(opts, vecrag.WithStore(store))
	}
	return opts, nil
}
