package nlp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/azurellm/pkg/alert"
	"github.com/soundprediction/azurellm/pkg/azure"
	"github.com/soundprediction/azurellm/pkg/config"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"github.com/soundprediction/azurellm/pkg/types"
	"go.uber.org/zap"
)

// NewBreakerSettings builds gobreaker settings from cfg. Opening the breaker
// sends an alert. Configuration errors, malformed function calls and caller
// cancellation do not count as failures.
func NewBreakerSettings(name string, cfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *zap.Logger, m *metrics.Metrics) gobreaker.Settings {
	if logger == nil {
		logger = zap.NewNop()
	}
	if alerter == nil {
		alerter = &alert.NoOpAlerter{}
	}
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, &azure.ConfigurationError{}) ||
				errors.Is(err, &FunctionCallError{}) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.ObserveBreaker(name, to.String())
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if to == gobreaker.StateOpen {
				msg := fmt.Sprintf("Circuit Breaker '%s' changed status from %s to %s. Too many failures detected.", name, from, to)
				if err := alerter.Alert(fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name), msg); err != nil {
					logger.Error("Failed to send circuit breaker alert", zap.Error(err))
				}
			}
		},
	}
}

// CircuitBreakerClient wraps a Completer with circuit breaking logic
type CircuitBreakerClient struct {
	client Completer
	cb     *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient creates a new circuit breaker client
func NewCircuitBreakerClient(client Completer, cfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *zap.Logger, m *metrics.Metrics, name string) *CircuitBreakerClient {
	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(NewBreakerSettings(name, cfg, alerter, logger, m)),
	}
}

// Complete implements Completer
func (c *CircuitBreakerClient) Complete(ctx context.Context, messages []types.Message, functions []types.FunctionDefinition) (*types.Completion, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Complete(ctx, messages, functions)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*types.Completion), nil
}

// State reports the breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.cb.State()
}
