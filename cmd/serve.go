package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlgu/badyet/internal/chat"
	"github.com/openlgu/badyet/internal/config"
	"github.com/openlgu/badyet/internal/db"
	"github.com/openlgu/badyet/internal/jurisdiction"
	"github.com/openlgu/badyet/internal/lineitem"
	"github.com/openlgu/badyet/internal/pipeline"
	"github.com/openlgu/badyet/internal/scope"
	"github.com/openlgu/badyet/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the budget assistant API server",
	Long:  `Starts the badyet server with the REST chat API and the WebSocket chat endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger := newLogger(cfg.LogLevel)

		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		pipe := pipeline.NewClient(cfg.Pipeline.BaseURL, cfg.Pipeline.Token,
			time.Duration(cfg.Pipeline.TimeoutSeconds)*time.Second)

		index, err := lineitem.NewVectorIndex(lineitem.PipelineEmbeddingFunc(pipe, cfg.Pipeline.EmbedModel))
		if err != nil {
			return fmt.Errorf("creating vector index: %w", err)
		}
		if err := index.Load(cmd.Context(), cfg.Database.VectorPath); err != nil {
			logger.Warn("vector index not loaded, run `badyet index` to build it", "error", err)
		}

		jurStore := jurisdiction.NewStore(database)
		itemStore := lineitem.NewStore(database)
		chatStore := chat.NewStore(database)

		engine := chat.NewEngine(chatStore, scope.NewResolver(jurStore, nil), jurStore, pipe, index, itemStore,
			chat.Config{
				EmbedModel:    cfg.Pipeline.EmbedModel,
				TopK:          cfg.Retrieval.TopK,
				MinSimilarity: cfg.Retrieval.MinSimilarity,
				NearTieWindow: cfg.Retrieval.NearTieWindow,
			}, logger)

		srv := server.New(server.Config{
			Host:     cfg.Server.Host,
			Port:     cfg.Server.Port,
			AllowAll: true,
		}, database, logger)

		chat.RegisterRoutes(srv.Router(), chatStore, engine)
		chat.NewSocket(chatStore, engine, logger).RegisterRoutes(srv.Router())

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "badyet server v%s starting on %s:%d\n", Version, cfg.Server.Host, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", cfg.Database.Path)
		fmt.Fprintf(os.Stderr, "  Line items indexed: %d\n", index.Count())

		return srv.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
