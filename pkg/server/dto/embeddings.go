package dto

import (
	"fmt"
	"unicode/utf8"

	"github.com/soundprediction/azurellm/pkg/embedder"
)

// EmbeddingsRequest is the body of POST /api/v1/embeddings.
type EmbeddingsRequest struct {
	Input []string `json:"input" binding:"required"`
}

// Validate rejects inputs longer than embedder.EmbeddingMaxChunkLength.
func (r *EmbeddingsRequest) Validate() error {
	for i, text := range r.Input {
		if n := utf8.RuneCountInString(text); n > embedder.EmbeddingMaxChunkLength {
			return fmt.Errorf("input[%d]: %d characters exceeds the chunk limit of %d", i, n, embedder.EmbeddingMaxChunkLength)
		}
	}
	return nil
}

// EmbeddingData is one vector, at the index of its input.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingsResponse is returned by POST /api/v1/embeddings.
type EmbeddingsResponse struct {
	Model string          `json:"model,omitempty"`
	Data  []EmbeddingData `json:"data"`
}
