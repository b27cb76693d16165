package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/openlgu/badyet/internal/config"
	"github.com/openlgu/badyet/internal/db"
	"github.com/openlgu/badyet/internal/lineitem"
	"github.com/openlgu/badyet/internal/pipeline"
)

var indexConcurrency int

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed published line items and build the vector index",
	Long: `Embeds every published AIP line item through the retrieval pipeline and
writes the vector index used for line-item similarity search. Run this
after importing new data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		items, err := lineitem.NewStore(database).ListPublished(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing line items: %w", err)
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No published line items to index")
			return nil
		}

		pipe := pipeline.NewClient(cfg.Pipeline.BaseURL, cfg.Pipeline.Token,
			time.Duration(cfg.Pipeline.TimeoutSeconds)*time.Second)

		embeddings, err := embedAll(cmd.Context(), pipe, cfg.Pipeline.EmbedModel, items)
		if err != nil {
			return err
		}

		index, err := lineitem.NewVectorIndex(lineitem.PipelineEmbeddingFunc(pipe, cfg.Pipeline.EmbedModel))
		if err != nil {
			return fmt.Errorf("creating vector index: %w", err)
		}
		if err := index.IndexItems(cmd.Context(), items, embeddings); err != nil {
			return fmt.Errorf("indexing line items: %w", err)
		}

		if err := os.MkdirAll(cfg.Database.VectorPath, 0o755); err != nil {
			return fmt.Errorf("creating vector directory: %w", err)
		}
		if err := index.Persist(cmd.Context(), cfg.Database.VectorPath); err != nil {
			return fmt.Errorf("persisting vector index: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Indexed %d line items into %s\n", index.Count(), cfg.Database.VectorPath)
		return nil
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexConcurrency, "concurrency", 4, "parallel embedding requests")
	rootCmd.AddCommand(indexCmd)
}

// embedAll fetches embeddings for every item with bounded parallelism. The
// first pipeline error cancels the remaining work.
func embedAll(ctx context.Context, pipe *pipeline.Client, model string, items []lineitem.LineItem) (map[string][]float32, error) {
	concurrency := indexConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bar := progressbar.NewOptions(len(items),
		progressbar.OptionSetDescription("Embedding line items"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	embeddings := make(map[string][]float32, len(items))
	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for _, li := range items {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(li lineitem.LineItem) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := pipe.EmbedQuery(ctx, li.SearchText(), model)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil && ctx.Err() == nil {
					firstErr = fmt.Errorf("embedding %s: %w", li.AIPRefCode, err)
				}
				cancel()
				return
			}
			embeddings[li.ID] = res.Embedding
			bar.Add(1)
		}(li)
	}
	wg.Wait()
	bar.Finish()

	if firstErr != nil {
		return nil, firstErr
	}
	return embeddings, nil
}
