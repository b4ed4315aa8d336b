package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/azurellm/pkg/types"
)

// MaxContentLength bounds a single message body.
const MaxContentLength = 1 << 20

// ErrContentTooLong is returned for message content over MaxContentLength.
var ErrContentTooLong = errors.New("content exceeds maximum length")

// Message represents a chat message
type Message struct {
	Role         string              `json:"role" binding:"required"`
	Content      string              `json:"content"`
	Name         string              `json:"name,omitempty"`
	FunctionCall *types.FunctionCall `json:"function_call,omitempty"`
}

// ValidRoles defines acceptable message roles
var ValidRoles = map[string]bool{
	string(types.RoleUser):      true,
	string(types.RoleAssistant): true,
	string(types.RoleSystem):    true,
	string(types.RoleFunction):  true,
}

// Validate performs validation on Message
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Role) == "" {
		return errors.New("role cannot be empty")
	}
	if !ValidRoles[strings.ToLower(m.Role)] {
		return errors.New("invalid role: must be user, assistant, system, or function")
	}
	if strings.TrimSpace(m.Content) == "" && m.FunctionCall == nil {
		return errors.New("content cannot be empty")
	}
	if len(m.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// ToType converts the request message to the module message type.
func (m *Message) ToType() types.Message {
	return types.Message{
		Role:         types.Role(strings.ToLower(m.Role)),
		Content:      m.Content,
		Name:         m.Name,
		FunctionCall: m.FunctionCall,
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
