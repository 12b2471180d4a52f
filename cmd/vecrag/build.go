package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecrag"
)

func newBuildCmd() *cobra.Command {
	var (
		sourceDir   string
		model       string
		output      string
		debugChunks bool
		noDump      bool
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed every *.txt file below a directory and build the index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if model == "" {
				model = cfg.Embedding.ModelName
			}
			if output == "" {
				output = cfg.Index.Location
			}
			if output == "" {
				if output, err = vecrag.DefaultOutputDir(sourceDir); err != nil {
					return err
				}
			}

			gw, err := newGateway(cfg)
			if err != nil {
				return err
			}

			logger := newLogger()
			opts, err := commonOptions(ctx, cfg, output, logger)
			if err != nil {
				return err
			}
			opts = append(opts,
				vecrag.WithOutputDir(output),
				vecrag.WithVectorDump(!noDump),
				vecrag.WithMaxAttempts(maxAttempts),
			)
			if debugChunks {
				opts = append(opts, vecrag.WithDebugChunks())
			}

			dir, err := vecrag.Vectorize(ctx, sourceDir, cfg.Vectorize, gw, model, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", "", "directory holding the *.txt documents")
	cmd.Flags().StringVarP(&model, "model", "m", "", "embedding model (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "index directory (default <source>/../vector)")
	cmd.Flags().BoolVar(&debugChunks, "debug-chunks", false, "write the chunks to debug.txt")
	cmd.Flags().BoolVar(&noDump, "no-vector-dump", false, "skip vector.json")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "give up on a chunk after this many failures (0 retries forever)")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
