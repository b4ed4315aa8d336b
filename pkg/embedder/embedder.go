package embedder

import (
	"context"
	"time"
)

const (
	// DefaultBatchSize is the largest number of texts sent in one request.
	DefaultBatchSize = 16
	// DefaultGroupTimeout bounds a single group request.
	DefaultGroupTimeout = 60 * time.Second
	// DefaultDeadline bounds a whole Embed call.
	DefaultDeadline = 5 * time.Minute
	// EmbeddingMaxChunkLength is the longest text, in characters, accepted
	// per input. Text splitters size chunks to it.
	EmbeddingMaxChunkLength = 2048
)

// Client generates vector embeddings for text.
type Client interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle embeds one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the configured vector size, or 0 when unknown.
	Dimensions() int

	// Close releases resources held by the client.
	Close() error
}

// Config holds embedder settings. Zero values take the package defaults.
type Config struct {
	// Model is the deployment name. Empty falls back to the client settings.
	Model        string        `mapstructure:"model"`
	Dimensions   int           `mapstructure:"dimensions"`
	BatchSize    int           `mapstructure:"batch_size"`
	GroupTimeout time.Duration `mapstructure:"group_timeout"`
	Deadline     time.Duration `mapstructure:"deadline"`
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.GroupTimeout <= 0 {
		c.GroupTimeout = DefaultGroupTimeout
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	return c
}
