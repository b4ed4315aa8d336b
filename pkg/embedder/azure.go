package embedder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/azurellm/pkg/azure"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"github.com/soundprediction/azurellm/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/soundprediction/azurellm/pkg/embedder"

// EmbeddingsAPI is the subset of the go-openai client used for embeddings.
type EmbeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// AzureEmbedder implements Client against an Azure OpenAI embedding deployment.
type AzureEmbedder struct {
	api     EmbeddingsAPI
	config  Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures an AzureEmbedder.
type Option func(*AzureEmbedder)

// WithMetrics records call outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *AzureEmbedder) {
		e.metrics = m
	}
}

// NewAzureEmbedder builds an embedder on an authenticated client. An empty
// cfg.Model takes the client's embedding deployment.
func NewAzureEmbedder(client *azure.Client, cfg Config, logger *zap.Logger, opts ...Option) *AzureEmbedder {
	if cfg.Model == "" {
		cfg.Model = client.Settings().EmbeddingDeployment
	}
	return NewAzureEmbedderWithAPI(client.OpenAI(), cfg, logger, opts...)
}

// NewAzureEmbedderWithAPI builds an embedder on any EmbeddingsAPI.
func NewAzureEmbedderWithAPI(api EmbeddingsAPI, cfg Config, logger *zap.Logger, opts ...Option) *AzureEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &AzureEmbedder{
		api:    api,
		config: cfg.withDefaults(),
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns one vector per text, in input order.
//
// The texts are sent in groups of at most Config.BatchSize, all concurrently.
// Any failed group fails the call with an *EmbeddingError. When the service
// answers but some vector is missing, Embed returns nil, nil.
func (e *AzureEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.config.Model == "" {
		return nil, azure.ErrNoModel("set " + azure.EnvEmbeddingModel)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	groups := utils.Batch(texts, e.config.BatchSize)

	ctx, span := e.tracer.Start(ctx, "embedder.Embed", trace.WithAttributes(
		attribute.String("embedding.model", e.config.Model),
		attribute.Int("embedding.inputs", len(texts)),
		attribute.Int("embedding.groups", len(groups)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.config.Deadline)
	defer cancel()

	e.logger.Info("Embedding chunks",
		zap.Int("chunks", len(texts)),
		zap.Int("groups", len(groups)),
		zap.String("model", e.config.Model))

	calls := make([]func() ([][]float32, error), len(groups))
	for i, group := range groups {
		calls[i] = func() ([][]float32, error) {
			return e.embedGroup(ctx, i, group)
		}
	}
	results, errs := utils.ExecuteWithResults(ctx, len(groups), calls...)

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		embErr := NewEmbeddingError(errs, len(groups))
		span.RecordError(embErr)
		span.SetStatus(codes.Error, embErr.Error())
		e.logger.Error("Embedding failed",
			zap.Int("failed_groups", failed),
			zap.Int("total_groups", len(groups)),
			zap.Strings("signatures", embErr.Signatures))
		e.metrics.ObserveEmbedding(metrics.OutcomeFailure, len(groups)-failed, failed, time.Since(start))
		return nil, embErr
	}

	vectors := make([][]float32, 0, len(texts))
	for _, result := range results {
		for _, vector := range result {
			// go-openai decodes an absent embedding field and an empty array
			// alike, so both count as missing.
			if len(vector) == 0 {
				return e.noEmbeddings(span, len(groups), start)
			}
			vectors = append(vectors, vector)
		}
	}
	if len(vectors) == 0 {
		return e.noEmbeddings(span, len(groups), start)
	}

	e.metrics.ObserveEmbedding(metrics.OutcomeSuccess, len(groups), 0, time.Since(start))
	return vectors, nil
}

func (e *AzureEmbedder) noEmbeddings(span trace.Span, groups int, start time.Time) ([][]float32, error) {
	span.SetAttributes(attribute.Bool("embedding.empty", true))
	e.logger.Warn("Could not produce embeddings", zap.String("model", e.config.Model))
	e.metrics.ObserveEmbedding(metrics.OutcomeEmpty, groups, 0, time.Since(start))
	return nil, nil
}

// embedGroup sends one request and returns its vectors ordered by index.
func (e *AzureEmbedder) embedGroup(ctx context.Context, index int, group []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.GroupTimeout)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "embedder.embedGroup", trace.WithAttributes(
		attribute.Int("embedding.group.index", index),
		attribute.Int("embedding.group.size", len(group)),
	))
	defer span.End()

	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: group,
		Model: openai.EmbeddingModel(e.config.Model),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(resp.Data) != len(group) {
		err := fmt.Errorf("expected %d embeddings, got %d", len(group), len(resp.Data))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// EmbedSingle embeds one text. It returns an empty vector when the service
// produced none.
func (e *AzureEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []float32{}, nil
	}
	return vectors[0], nil
}

// Dimensions returns the configured vector size.
func (e *AzureEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Model returns the deployment the embedder sends requests to.
func (e *AzureEmbedder) Model() string {
	return e.config.Model
}

// Close is a no-op; the underlying client holds no resources.
func (e *AzureEmbedder) Close() error {
	return nil
}
