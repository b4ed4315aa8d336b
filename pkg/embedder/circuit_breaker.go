package embedder

import (
	"context"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/azurellm/pkg/alert"
	"github.com/soundprediction/azurellm/pkg/config"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"github.com/soundprediction/azurellm/pkg/nlp"
	"go.uber.org/zap"
)

// CircuitBreakerEmbedder wraps a Client with circuit breaking logic.
type CircuitBreakerEmbedder struct {
	client Client
	cb     *gobreaker.CircuitBreaker
}

// NewCircuitBreakerEmbedder creates a new circuit breaker embedder.
func NewCircuitBreakerEmbedder(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *zap.Logger, m *metrics.Metrics, name string) *CircuitBreakerEmbedder {
	return &CircuitBreakerEmbedder{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(nlp.NewBreakerSettings(name, cfg, alerter, logger, m)),
	}
}

func (c *CircuitBreakerEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return resp.([][]float32), nil
}

func (c *CircuitBreakerEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []float32{}, nil
	}
	return vectors[0], nil
}

func (c *CircuitBreakerEmbedder) Dimensions() int {
	return c.client.Dimensions()
}

func (c *CircuitBreakerEmbedder) Close() error {
	return c.client.Close()
}

// State reports the breaker state.
func (c *CircuitBreakerEmbedder) State() gobreaker.State {
	return c.cb.State()
}
