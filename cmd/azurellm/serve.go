package azurellm

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soundprediction/azurellm/pkg/cache"
	"github.com/soundprediction/azurellm/pkg/config"
	"github.com/soundprediction/azurellm/pkg/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server exposing embeddings and chat completions.

The server provides endpoints for:
- POST /api/v1/embeddings
- POST /api/v1/chat
- GET  /api/v1/providers and /api/v1/models
- Health checks and Prometheus metrics

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServe,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server-specific flags
	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serveCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")

	serveCmd.Flags().String("chat-provider", "azure", "Chat provider (azure, openai)")
	serveCmd.Flags().String("cache-backend", "", "Embedding cache backend (memory, badger, redis)")
	serveCmd.Flags().String("telemetry-parquet-path", "", "Path to directory for error telemetry")
	serveCmd.Flags().String("usage-path", "", "Path to directory for token usage records")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, flush, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = flush() }()

	svc, err := buildServices(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("Failed to close services", zap.Error(err))
		}
	}()

	srv := server.New(cfg, server.Dependencies{
		Embedder:       svc.embedder,
		EmbeddingModel: svc.embeddingModel,
		Completer:      svc.completer,
		Metrics:        svc.metrics,
		Checks:         svc.checks,
		Logger:         log,
	})
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start()
	}()

	select {
	case err := <-serverErrChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		log.Info("Received signal", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Info("Server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}
	if cmd.Flags().Changed("chat-provider") {
		cfg.Chat.Provider, _ = cmd.Flags().GetString("chat-provider")
	}
	if cmd.Flags().Changed("cache-backend") {
		backend, _ := cmd.Flags().GetString("cache-backend")
		cfg.Cache.Backend = cache.Backend(backend)
	}
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
	if cmd.Flags().Changed("usage-path") {
		cfg.Telemetry.UsagePath, _ = cmd.Flags().GetString("usage-path")
	}
}
