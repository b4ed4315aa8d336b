package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/azurellm/pkg/embedder"
	"github.com/soundprediction/azurellm/pkg/server/dto"
)

// EmbeddingsHandler serves embedding requests.
type EmbeddingsHandler struct {
	client embedder.Client
	model  string
}

// NewEmbeddingsHandler creates a new embeddings handler. model is reported
// back to callers and may be empty.
func NewEmbeddingsHandler(client embedder.Client, model string) *EmbeddingsHandler {
	return &EmbeddingsHandler{client: client, model: model}
}

// Embed handles POST /api/v1/embeddings
func (h *EmbeddingsHandler) Embed(c *gin.Context) {
	var req dto.EmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	vectors, err := h.client.Embed(c.Request.Context(), req.Input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if vectors == nil {
		writeError(c, http.StatusBadGateway, "no_embeddings", "could not produce embeddings")
		return
	}

	data := make([]dto.EmbeddingData, len(vectors))
	for i, v := range vectors {
		data[i] = dto.EmbeddingData{Index: i, Embedding: v}
	}
	c.JSON(http.StatusOK, dto.EmbeddingsResponse{Model: h.model, Data: data})
}
