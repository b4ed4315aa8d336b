package nlp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// Common LLM client errors
var (
	// ErrEmptyResponse indicates the LLM returned no choices
	ErrEmptyResponse = errors.New("the LLM returned an empty response")
)

// RetryError marks a failure the caller may retry after a delay: rate limits,
// server errors and other API errors.
type RetryError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *RetryError) Error() string {
	return e.Message
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for RetryError.
// This allows errors.Is(err, &RetryError{}) to work with wrapped errors.
func (e *RetryError) Is(target error) bool {
	_, ok := target.(*RetryError)
	return ok
}

// NewRetryError creates a retryable error wrapping cause.
func NewRetryError(message string, status int, cause error) *RetryError {
	return &RetryError{Message: message, StatusCode: status, Err: cause}
}

// AuthenticationError reports rejected credentials. It is never retried.
type AuthenticationError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for AuthenticationError.
// This allows errors.Is(err, &AuthenticationError{}) to work with wrapped errors.
func (e *AuthenticationError) Is(target error) bool {
	_, ok := target.(*AuthenticationError)
	return ok
}

// FunctionCallError reports function call arguments that stayed malformed
// after every re-ask and a repair attempt.
type FunctionCallError struct {
	Name      string
	Arguments string
	Attempts  int
	Err       error
}

func (e *FunctionCallError) Error() string {
	return fmt.Sprintf("function call %q returned invalid arguments after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *FunctionCallError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for FunctionCallError.
// This allows errors.Is(err, &FunctionCallError{}) to work with wrapped errors.
func (e *FunctionCallError) Is(target error) bool {
	_, ok := target.(*FunctionCallError)
	return ok
}

// ClassifyError maps a chat API failure to the error kinds callers act on:
// 401 becomes *AuthenticationError; every other API error, including 403,
// 429, 5xx and transport failures that never got a response, becomes
// *RetryError. Context cancellation and errors from outside the API are
// returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status, message := 0, err.Error()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if apiErr.Message != "" {
			message = apiErr.Message
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
	case errors.As(err, &netErr):
		// connection refused, DNS and reset errors arrive as *url.Error
	default:
		return err
	}

	if status == http.StatusUnauthorized {
		return &AuthenticationError{Message: message, StatusCode: status, Err: err}
	}
	return NewRetryError(message, status, err)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, &RetryError{})
}
