package nlp

import (
	"context"

	"github.com/soundprediction/azurellm/pkg/types"
)

// Completer is the chat capability shared by every provider and wrapper.
type Completer interface {
	// Complete sends the conversation and returns the model's reply. When
	// functions is non-empty the model may answer with a function call instead
	// of text.
	Complete(ctx context.Context, messages []types.Message, functions []types.FunctionDefinition) (*types.Completion, error)
}

// NewMessage creates a new message with the specified role and content.
func NewMessage(role types.Role, content string) types.Message {
	return types.Message{
		Role:    role,
		Content: content,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) types.Message {
	return NewMessage(types.RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) types.Message {
	return NewMessage(types.RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) types.Message {
	return NewMessage(types.RoleAssistant, content)
}

// NewFunctionMessage reports a function result, or a failure, back to the model.
func NewFunctionMessage(name, content string) types.Message {
	return types.Message{
		Role:    types.RoleFunction,
		Name:    name,
		Content: content,
	}
}
