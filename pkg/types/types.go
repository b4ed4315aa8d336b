package types

// Role is the author of a chat message.
type Role string

const (
	// RoleSystem represents a system message.
	RoleSystem Role = "system"
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"
	// RoleFunction carries the output (or failure) of a function call back to the model.
	RoleFunction Role = "function"
)

// Message is a single entry of a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Name is the function name for RoleFunction messages.
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// FunctionCall is a function invocation as emitted by the model.
// Arguments is the raw JSON text and may be malformed.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionDefinition describes a function the model may call.
type FunctionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Parameters is a JSON schema object.
	Parameters any `json:"parameters"`
}

// ParsedFunctionCall is a function call whose arguments were decoded successfully.
type ParsedFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// TokenUsage represents token usage statistics.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the outcome of a single chat completion call.
// Exactly one of Result or FunctionCall is meaningful.
type Completion struct {
	Result       string              `json:"result,omitempty"`
	FunctionCall *ParsedFunctionCall `json:"function_call,omitempty"`
	Cost         float64             `json:"cost"`
	Model        string              `json:"model,omitempty"`
	TokensUsed   *TokenUsage         `json:"usage,omitempty"`
}

// IsFunctionCall reports whether the model asked for a function call.
func (c *Completion) IsFunctionCall() bool {
	return c != nil && c.FunctionCall != nil
}

// ContextKey is the type for request-scoped values stored on a context.
type ContextKey string

const (
	// ContextKeyUserID identifies the calling user.
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeySessionID identifies the calling session.
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeyRequestSource identifies where the request came from (server, library, ...).
	ContextKeyRequestSource ContextKey = "request_source"
)
