package dto

import (
	"errors"
	"fmt"

	"github.com/soundprediction/azurellm/pkg/types"
)

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Messages  []Message                  `json:"messages" binding:"required"`
	Functions []types.FunctionDefinition `json:"functions,omitempty"`
}

// Validate checks every message and function definition.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("messages array cannot be empty")
	}
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	for i, fn := range r.Functions {
		if fn.Name == "" {
			return fmt.Errorf("functions[%d]: name is required", i)
		}
	}
	return nil
}

// History converts the request messages to the module message type.
func (r *ChatRequest) History() []types.Message {
	history := make([]types.Message, len(r.Messages))
	for i := range r.Messages {
		history[i] = r.Messages[i].ToType()
	}
	return history
}

// ChatResponse is returned by POST /api/v1/chat. Exactly one of Result and
// FunctionCall is set.
type ChatResponse struct {
	Result       string                    `json:"result,omitempty"`
	FunctionCall *types.ParsedFunctionCall `json:"function_call,omitempty"`
	Cost         float64                   `json:"cost"`
	Model        string                    `json:"model,omitempty"`
	Usage        *types.TokenUsage         `json:"usage,omitempty"`
}

// NewChatResponse builds the response for c.
func NewChatResponse(c *types.Completion) ChatResponse {
	return ChatResponse{
		Result:       c.Result,
		FunctionCall: c.FunctionCall,
		Cost:         c.Cost,
		Model:        c.Model,
		Usage:        c.TokensUsed,
	}
}
