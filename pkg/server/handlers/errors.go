package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/soundprediction/azurellm/pkg/azure"
	"github.com/soundprediction/azurellm/pkg/embedder"
	"github.com/soundprediction/azurellm/pkg/nlp"
	"github.com/soundprediction/azurellm/pkg/server/dto"
)

// StatusFor maps an error from the embedder or a chat provider to an HTTP
// status and a short error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, &azure.ConfigurationError{}):
		return http.StatusInternalServerError, "configuration_error"
	case errors.Is(err, &embedder.EmbeddingError{}):
		return http.StatusBadGateway, "embedding_error"
	case errors.Is(err, &nlp.AuthenticationError{}):
		return http.StatusUnauthorized, "authentication_error"
	case errors.Is(err, &nlp.RetryError{}):
		return http.StatusServiceUnavailable, "retryable_error"
	case errors.Is(err, &nlp.FunctionCallError{}):
		return http.StatusUnprocessableEntity, "function_call_error"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError writes an error response as JSON
func writeError(c *gin.Context, status int, errCode, message string) {
	c.JSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}

// abortWithError records err on the context for the request logger and
// writes the mapped response.
func abortWithError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	_ = c.Error(err)
	writeError(c, status, code, err.Error())
	c.Abort()
}
