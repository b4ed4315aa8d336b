package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/soundprediction/azurellm/pkg/cache"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"go.uber.org/zap"
)

// CachedEmbedder serves vectors from a cache.Store and sends only the misses
// to the wrapped client, as one Embed call. Vectors are written back only when
// that call succeeds in full.
type CachedEmbedder struct {
	next    Client
	store   cache.Store
	model   string
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCachedEmbedder wraps next. The embedder takes ownership of store and
// closes it on Close.
func NewCachedEmbedder(next Client, store cache.Store, model string, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		next:    next,
		store:   store,
		model:   model,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

// CacheKey is the store key for text embedded with model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return c.next.Embed(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		keys[i] = CacheKey(c.model, text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	c.metrics.ObserveCache(len(texts)-len(missIdx), len(missIdx))

	if len(missIdx) == 0 {
		return vectors, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, nil
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	for j, i := range missIdx {
		vectors[i] = fresh[j]
		if err := c.store.Set(ctx, keys[i], cache.EncodeVector(fresh[j]), c.ttl); err != nil {
			c.logger.Warn("Failed to write embedding cache", zap.Error(err))
		}
	}
	return vectors, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to read embedding cache", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	vec, err := cache.DecodeVector(raw)
	if err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []float32{}, nil
	}
	return vectors[0], nil
}

func (c *CachedEmbedder) Dimensions() int {
	return c.next.Dimensions()
}

func (c *CachedEmbedder) Close() error {
	nextErr := c.next.Close()
	if err := c.store.Close(); err != nil {
		return err
	}
	return nextErr
}
