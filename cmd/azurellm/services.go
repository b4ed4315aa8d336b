package azurellm

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/azurellm/pkg/alert"
	"github.com/soundprediction/azurellm/pkg/azure"
	"github.com/soundprediction/azurellm/pkg/cache"
	"github.com/soundprediction/azurellm/pkg/config"
	"github.com/soundprediction/azurellm/pkg/embedder"
	"github.com/soundprediction/azurellm/pkg/logger"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"github.com/soundprediction/azurellm/pkg/nlp"
	"github.com/soundprediction/azurellm/pkg/server/handlers"
	"github.com/soundprediction/azurellm/pkg/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// services holds everything a command needs, wired from one Config.
type services struct {
	logger         *zap.Logger
	metrics        *metrics.Metrics
	azure          *azure.Client
	embedder       embedder.Client
	embeddingModel string
	completer      nlp.Completer
	checks         map[string]handlers.Check
	closers        []func() error
}

// newLogger builds the process logger, teeing error entries to Parquet when
// a telemetry path is configured.
func newLogger(cfg *config.Config) (*zap.Logger, func() error, error) {
	var cores []zapcore.Core
	var parquetCore *telemetry.ParquetCore
	if cfg.Telemetry.ParquetPath != "" {
		core, err := telemetry.NewParquetCore(cfg.Telemetry.ParquetPath)
		if err != nil {
			return nil, nil, err
		}
		parquetCore = core
		cores = append(cores, core)
	}

	log, err := logger.New(cfg.Log, cfg.Metrics.ServiceName, cores...)
	if err != nil {
		return nil, nil, err
	}
	// utils.RecoverWithCallback reports worker panics through zap.L().
	zap.ReplaceGlobals(log)

	flush := func() error {
		_ = log.Sync()
		if parquetCore != nil {
			return parquetCore.Sync()
		}
		return nil
	}
	return log, flush, nil
}

// buildServices wires the Azure client, the embedding chain and the chat
// chain. Decorators are applied innermost first: cache, then circuit breaker
// for embeddings; retry, circuit breaker, then token tracking for chat.
func buildServices(cfg *config.Config, log *zap.Logger) (*services, error) {
	s := &services{
		logger: log,
		checks: map[string]handlers.Check{},
	}
	if cfg.Metrics.Enabled {
		s.metrics = metrics.New(metrics.Config{
			Namespace:               cfg.Metrics.Namespace,
			ServiceName:             cfg.Metrics.ServiceName,
			EnableDefaultCollectors: true,
		})
	}

	client, err := azure.NewClient(cfg.Azure, log.Named("azure"))
	if err != nil {
		return nil, err
	}
	s.azure = client
	alerter := alert.New(cfg.Alert, log.Named("alert"))

	if err := s.buildEmbedder(cfg, alerter); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.buildCompleter(cfg, alerter); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *services) buildEmbedder(cfg *config.Config, alerter alert.Alerter) error {
	azureEmbedder := embedder.NewAzureEmbedder(s.azure, embedder.Config{
		Dimensions:   cfg.Embedding.Dimensions,
		BatchSize:    cfg.Embedding.BatchSize,
		GroupTimeout: cfg.Embedding.GroupTimeout,
		Deadline:     cfg.Embedding.Deadline,
	}, s.logger.Named("embedder"), embedder.WithMetrics(s.metrics))
	s.embeddingModel = azureEmbedder.Model()
	s.checks["embedder"] = func(context.Context) error {
		if azureEmbedder.Model() == "" {
			return azure.ErrNoModel("set " + azure.EnvEmbeddingModel)
		}
		return nil
	}

	var client embedder.Client = azureEmbedder
	store, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open embedding cache: %w", err)
	}
	if store != nil {
		if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
			s.checks["cache"] = pinger.Ping
		}
		client = embedder.NewCachedEmbedder(client, store, azureEmbedder.Model(), cfg.Cache.TTL, s.logger.Named("cache"), s.metrics)
		s.logger.Info("Embedding cache enabled", zap.String("backend", string(cfg.Cache.Backend)))
	}

	if cfg.CircuitBreaker.Enabled {
		client = embedder.NewCircuitBreakerEmbedder(client, cfg.CircuitBreaker, alerter, s.logger, s.metrics, "embedding")
	}
	s.embedder = client
	s.closers = append(s.closers, client.Close)
	return nil
}

func (s *services) buildCompleter(cfg *config.Config, alerter alert.Alerter) error {
	providerID := nlp.ProviderID(cfg.Chat.Provider)
	provider, err := nlp.NewProvider(providerID, nlp.ProviderOptions{
		Azure:   s.azure,
		Chat:    cfg.Chat,
		Logger:  s.logger.Named("chat"),
		Metrics: s.metrics,
	})
	if err != nil {
		return err
	}
	s.checks["chat"] = func(context.Context) error {
		if provider.Model() == "" {
			return azure.ErrNoModel("set " + azure.EnvChatModel)
		}
		return nil
	}

	var completer nlp.Completer = nlp.NewRetryClient(provider, &nlp.RetryConfig{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}, s.logger.Named("retry"))

	if cfg.CircuitBreaker.Enabled {
		completer = nlp.NewCircuitBreakerClient(completer, cfg.CircuitBreaker, alerter, s.logger, s.metrics, "chat")
	}

	if cfg.Telemetry.UsagePath != "" {
		tracker, err := nlp.NewTokenTracker(cfg.Telemetry.UsagePath, s.logger.Named("usage"))
		if err != nil {
			s.logger.Warn("Token tracking disabled", zap.Error(err))
		} else {
			completer = nlp.NewTokenTrackingClient(completer, provider.ID(), tracker, s.logger)
			s.closers = append(s.closers, tracker.Close)
			s.logger.Info("Token tracking enabled", zap.String("path", cfg.Telemetry.UsagePath))
		}
	}

	s.completer = completer
	return nil
}

// Close releases the cache and flushes token usage.
func (s *services) Close() error {
	var errs []error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
