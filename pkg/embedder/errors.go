package embedder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/azurellm/pkg/utils"
)

const (
	// ErrorTypeFailedToEmbed is used when a failure carries no code or status.
	ErrorTypeFailedToEmbed = "failed_to_embed"
	// ErrorTypeTimeout marks a group that ran past its timeout or the call deadline.
	ErrorTypeTimeout = "timeout"

	embeddingErrorPrefix = "Azure OpenAI Failed to embed: "
)

// EmbeddingError reports that at least one group of an Embed call failed.
// Signatures holds each distinct "[type]: message" once, in first-seen order.
type EmbeddingError struct {
	Signatures   []string
	FailedGroups int
	TotalGroups  int
}

func (e *EmbeddingError) Error() string {
	return embeddingErrorPrefix + strings.Join(e.Signatures, ", ")
}

// Is implements errors.Is support for EmbeddingError.
// This allows errors.Is(err, &EmbeddingError{}) to work with wrapped errors.
func (e *EmbeddingError) Is(target error) bool {
	_, ok := target.(*EmbeddingError)
	return ok
}

// NewEmbeddingError aggregates group failures. Nil entries are ignored.
func NewEmbeddingError(groupErrs []error, totalGroups int) *EmbeddingError {
	signatures := make([]string, 0, len(groupErrs))
	failed := 0
	for _, err := range groupErrs {
		if err == nil {
			continue
		}
		failed++
		signatures = append(signatures, Signature(err))
	}
	return &EmbeddingError{
		Signatures:   utils.UniqueStrings(signatures),
		FailedGroups: failed,
		TotalGroups:  totalGroups,
	}
}

// Signature renders err as "[type]: message".
func Signature(err error) string {
	errType, message := Classify(err)
	return fmt.Sprintf("[%s]: %s", errType, message)
}

// Classify extracts the type and message used in a failure signature. The type
// is the vendor error code when present, else the HTTP status, else
// failed_to_embed.
func Classify(err error) (errType, message string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout, err.Error()
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message = apiErr.Message
		if message == "" {
			message = err.Error()
		}
		if code := codeString(apiErr.Code); code != "" {
			return code, message
		}
		if apiErr.HTTPStatusCode != 0 {
			return strconv.Itoa(apiErr.HTTPStatusCode), message
		}
		return ErrorTypeFailedToEmbed, message
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		message = err.Error()
		if reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
		if reqErr.HTTPStatusCode != 0 {
			return strconv.Itoa(reqErr.HTTPStatusCode), message
		}
		return ErrorTypeFailedToEmbed, message
	}

	return ErrorTypeFailedToEmbed, err.Error()
}

func codeString(code any) string {
	switch c := code.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}
