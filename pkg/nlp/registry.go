package nlp

import (
	"fmt"
	"slices"

	"github.com/soundprediction/azurellm/pkg/azure"
	"github.com/soundprediction/azurellm/pkg/config"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"go.uber.org/zap"
)

// TaskCapability represents a specific task that a model can perform.
type TaskCapability string

const (
	// TaskEmbedding represents text embedding generation.
	TaskEmbedding TaskCapability = "embedding"
	// TaskTextGeneration represents open-ended text generation (chat/completion).
	TaskTextGeneration TaskCapability = "text_generation"
	// TaskFunctionCalling represents structured function call output.
	TaskFunctionCalling TaskCapability = "function_calling"
)

// ProviderID represents a unique identifier for an AI provider.
type ProviderID string

const (
	// ProviderAzure is the ID for Azure OpenAI.
	ProviderAzure ProviderID = "azure"
	// ProviderOpenAI is the ID for OpenAI and OpenAI-compatible services.
	ProviderOpenAI ProviderID = "openai"
)

// Provider represents an AI model provider.
type Provider struct {
	ID          ProviderID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

// Model represents a specific AI model.
type Model struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	ProviderID   ProviderID       `json:"provider_id"`
	Capabilities []TaskCapability `json:"capabilities"`
	Description  string           `json:"description"`
}

// BuiltInProviders contains the supported providers.
var BuiltInProviders = map[ProviderID]Provider{
	ProviderAzure: {
		ID:          ProviderAzure,
		Name:        "Azure OpenAI",
		Description: "OpenAI models hosted as Azure deployments",
	},
	ProviderOpenAI: {
		ID:          ProviderOpenAI,
		Name:        "OpenAI",
		Description: "OpenAI API or a compatible service",
	},
}

// BuiltInModels lists well-known models. Azure deployments may use any name;
// these are the model families usually deployed behind them.
var BuiltInModels = []Model{
	{
		ID:           "text-embedding-3-small",
		Name:         "Text Embedding 3 Small",
		ProviderID:   ProviderAzure,
		Capabilities: []TaskCapability{TaskEmbedding},
		Description:  "1536-dimension general purpose embeddings",
	},
	{
		ID:           "text-embedding-3-large",
		Name:         "Text Embedding 3 Large",
		ProviderID:   ProviderAzure,
		Capabilities: []TaskCapability{TaskEmbedding},
		Description:  "3072-dimension embeddings",
	},
	{
		ID:           "gpt-4o",
		Name:         "GPT-4o",
		ProviderID:   ProviderAzure,
		Capabilities: []TaskCapability{TaskTextGeneration, TaskFunctionCalling},
		Description:  "Multimodal chat model",
	},
	{
		ID:           "gpt-4o-mini",
		Name:         "GPT-4o mini",
		ProviderID:   ProviderOpenAI,
		Capabilities: []TaskCapability{TaskTextGeneration, TaskFunctionCalling},
		Description:  "Small, fast chat model",
	},
}

// GetProvider returns the provider with the given ID.
func GetProvider(id ProviderID) (Provider, bool) {
	p, ok := BuiltInProviders[id]
	return p, ok
}

// GetModelsByCapability returns all models capable of a specific task.
func GetModelsByCapability(capability TaskCapability) []Model {
	var models []Model
	for _, m := range BuiltInModels {
		if slices.Contains(m.Capabilities, capability) {
			models = append(models, m)
		}
	}
	return models
}

// ProviderOptions carries what NewProvider needs to build any provider.
type ProviderOptions struct {
	// Azure is required for ProviderAzure.
	Azure      *azure.Client
	Chat       config.ChatConfig
	HTTPClient azure.HTTPDoer
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// NewProvider builds the chat provider named by id.
func NewProvider(id ProviderID, opts ProviderOptions) (*ChatProvider, error) {
	cfg := ChatConfig{
		Temperature:            opts.Chat.Temperature,
		MaxTokens:              opts.Chat.MaxTokens,
		MaxFunctionCallRepairs: opts.Chat.MaxFunctionCallRepairs,
	}
	providerOpts := []ProviderOption{WithProviderMetrics(opts.Metrics)}

	switch id {
	case ProviderAzure, "":
		if opts.Azure == nil {
			return nil, fmt.Errorf("provider %q requires an Azure client", ProviderAzure)
		}
		return NewAzureProvider(opts.Azure, cfg, opts.Logger, providerOpts...), nil
	case ProviderOpenAI:
		cfg.Model = opts.Chat.OpenAIModel
		return NewOpenAIProvider(opts.Chat.OpenAIAPIKey, opts.Chat.OpenAIBaseURL, opts.HTTPClient, cfg, opts.Logger, providerOpts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", id)
	}
}
