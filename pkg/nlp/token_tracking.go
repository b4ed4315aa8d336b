package nlp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/soundprediction/azurellm/pkg/types"
	"go.uber.org/zap"
)

// TokenUsageRecord represents a single log entry for token usage
type TokenUsageRecord struct {
	ID               string    `parquet:"id"`
	Timestamp        time.Time `parquet:"timestamp"`
	Provider         string    `parquet:"provider"`
	Model            string    `parquet:"model"`
	TotalTokens      int       `parquet:"total_tokens"`
	PromptTokens     int       `parquet:"prompt_tokens"`
	CompletionTokens int       `parquet:"completion_tokens"`
	Cost             float64   `parquet:"cost"`
	FunctionCall     bool      `parquet:"function_call"`
	UserID           string    `parquet:"user_id"`
	SessionID        string    `parquet:"session_id"`
	RequestSource    string    `parquet:"request_source"`
}

// ParquetTokenTracker handles persistence of token usage stats to Parquet files
type ParquetTokenTracker struct {
	outputDir string
	logger    *zap.Logger
	mu        sync.Mutex
	buffer    []TokenUsageRecord
	batchSize int
}

// NewTokenTracker creates a new token tracker writing to a directory
func NewTokenTracker(outputDir string, logger *zap.Logger) (*ParquetTokenTracker, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create token tracking directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ParquetTokenTracker{
		outputDir: outputDir,
		logger:    logger,
		buffer:    make([]TokenUsageRecord, 0, 100),
		batchSize: 100,
	}, nil
}

// AddUsage buffers one completion's usage and flushes full batches.
func (t *ParquetTokenTracker) AddUsage(ctx context.Context, provider ProviderID, completion *types.Completion) error {
	if completion == nil || completion.TokensUsed == nil {
		return nil
	}
	usage := completion.TokensUsed

	record := TokenUsageRecord{
		ID:               uuid.New().String(),
		Timestamp:        time.Now().UTC(),
		Provider:         string(provider),
		Model:            completion.Model,
		TotalTokens:      usage.TotalTokens,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Cost:             completion.Cost,
		FunctionCall:     completion.IsFunctionCall(),
	}
	if record.Model == "" {
		record.Model = "unknown"
	}

	if v, ok := ctx.Value(types.ContextKeyUserID).(string); ok {
		record.UserID = v
	}
	if v, ok := ctx.Value(types.ContextKeySessionID).(string); ok {
		record.SessionID = v
	}
	if v, ok := ctx.Value(types.ContextKeyRequestSource).(string); ok {
		record.RequestSource = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.buffer = append(t.buffer, record)

	if len(t.buffer) >= t.batchSize {
		return t.flush()
	}

	return nil
}

// Close writes any buffered records.
func (t *ParquetTokenTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flush()
}

// flush writes the current buffer to a new Parquet file
// Caller must hold the lock
func (t *ParquetTokenTracker) flush() error {
	if len(t.buffer) == 0 {
		return nil
	}

	now := time.Now()
	filename := fmt.Sprintf("token_usage_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(t.outputDir, filename)

	if err := parquet.WriteFile(path, t.buffer); err != nil {
		t.logger.Error("Failed to write token usage parquet file", zap.String("path", path), zap.Error(err))
		return err
	}

	t.buffer = t.buffer[:0]
	return nil
}

// TokenTrackingClient wraps a Completer to track usage
type TokenTrackingClient struct {
	client   Completer
	provider ProviderID
	tracker  *ParquetTokenTracker
	logger   *zap.Logger
}

// NewTokenTrackingClient creates a wrapper client
func NewTokenTrackingClient(client Completer, provider ProviderID, tracker *ParquetTokenTracker, logger *zap.Logger) *TokenTrackingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenTrackingClient{
		client:   client,
		provider: provider,
		tracker:  tracker,
		logger:   logger,
	}
}

// Complete implements Completer
func (c *TokenTrackingClient) Complete(ctx context.Context, messages []types.Message, functions []types.FunctionDefinition) (*types.Completion, error) {
	resp, err := c.client.Complete(ctx, messages, functions)
	if err != nil {
		return nil, err
	}

	if err := c.tracker.AddUsage(ctx, c.provider, resp); err != nil {
		c.logger.Warn("Failed to log token usage", zap.Error(err))
	}

	return resp, nil
}
