package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecrag"
	"github.com/hupe1980/vecrag/config"
	"github.com/hupe1980/vecrag/searcher"
)

func newSearchCmd() *cobra.Command {
	var (
		indexDir  string
		text      string
		vectorStr string
		model     string
		topK      int
		scores    bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query an index by text or by vector",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if (text == "") == (vectorStr == "") {
				return errors.New("exactly one of --text and --vector is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if indexDir == "" {
				indexDir = cfg.Index.Location
			}
			if indexDir == "" && cfg.Store.Type == config.StoreLocal {
				return errors.New("--index is required when index.location is not configured")
			}
			if model == "" {
				model = cfg.Embedding.ModelName
			}

			logger := newLogger()
			opts, err := commonOptions(ctx, cfg, indexDir, logger)
			if err != nil {
				return err
			}
			s, err := vecrag.Open(ctx, indexDir, opts...)
			if err != nil {
				return err
			}

			query, err := parseVector(vectorStr)
			if err != nil {
				return err
			}
			if query == nil {
				gw, err := newGateway(cfg)
				if err != nil {
					return err
				}
				ids, err := s.SearchByText(ctx, gw, text, model, topK)
				if err != nil {
					return err
				}
				printIDs(cmd, ids)
				return nil
			}

			if !scores {
				ids, err := s.Search(ctx, query, topK)
				if err != nil {
					return err
				}
				printIDs(cmd, ids)
				return nil
			}
			hits, err := s.SearchWithScores(ctx, query, topK)
			if err != nil {
				return err
			}
			printHits(cmd, hits)
			return nil
		},
	}

	cmd.Flags().StringVarP(&indexDir, "index", "i", "", "index directory (default from config)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "query text")
	cmd.Flags().StringVar(&vectorStr, "vector", "", "query vector as comma-separated floats")
	cmd.Flags().StringVarP(&model, "model", "m", "", "embedding model (default from config)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "number of results")
	cmd.Flags().BoolVar(&scores, "scores", false, "print similarity scores (vector queries)")
	return cmd
}

// parseVector parses "0.1, 0.2,0.3". An empty string yields nil.
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(strings.Trim(s, "[]"), ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		vec = append(vec, float32(v))
	}
	return vec, nil
}

func printIDs(cmd *cobra.Command, ids []string) {
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
}

func printHits(cmd *cobra.Command, hits []searcher.Result) {
	for _, h := range hits {
		fmt.Fprintf(cmd.OutOrStdout(), "%.4f\t%s\n", h.Score, h.ID)
	}
}
