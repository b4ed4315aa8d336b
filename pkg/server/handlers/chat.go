package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/azurellm/pkg/nlp"
	"github.com/soundprediction/azurellm/pkg/server/dto"
)

// ChatHandler serves chat completion requests.
type ChatHandler struct {
	completer nlp.Completer
}

// NewChatHandler creates a new chat handler
func NewChatHandler(completer nlp.Completer) *ChatHandler {
	return &ChatHandler{completer: completer}
}

// Complete handles POST /api/v1/chat
func (h *ChatHandler) Complete(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	completion, err := h.completer.Complete(c.Request.Context(), req.History(), req.Functions)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewChatResponse(completion))
}
