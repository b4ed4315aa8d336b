package nlp

import (
	"testing"

	"github.com/soundprediction/azurellm/pkg/azure"
	"github.com/soundprediction/azurellm/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProvider(t *testing.T) {
	p, ok := GetProvider(ProviderAzure)
	require.True(t, ok)
	assert.Equal(t, "Azure OpenAI", p.Name)

	_, ok = GetProvider("gemini")
	assert.False(t, ok)
}

func TestGetModelsByCapability(t *testing.T) {
	embedding := GetModelsByCapability(TaskEmbedding)
	require.NotEmpty(t, embedding)
	for _, m := range embedding {
		assert.Contains(t, m.Capabilities, TaskEmbedding)
	}
	assert.Empty(t, GetModelsByCapability("vision"))
}

func TestNewProvider(t *testing.T) {
	client, err := azure.NewClient(azure.Settings{
		Endpoint:       "https://example.openai.azure.com",
		APIKey:         "key",
		ChatDeployment: "gpt-4o-prod",
	}, nil)
	require.NoError(t, err)

	t.Run("azure uses chat deployment", func(t *testing.T) {
		p, err := NewProvider(ProviderAzure, ProviderOptions{Azure: client})
		require.NoError(t, err)
		assert.Equal(t, ProviderAzure, p.ID())
		assert.Equal(t, "gpt-4o-prod", p.Model())
		assert.Equal(t, DefaultMaxFunctionCallRepairs, p.config.MaxFunctionCallRepairs)
	})

	t.Run("empty id means azure", func(t *testing.T) {
		p, err := NewProvider("", ProviderOptions{Azure: client})
		require.NoError(t, err)
		assert.Equal(t, ProviderAzure, p.ID())
	})

	t.Run("azure without client", func(t *testing.T) {
		_, err := NewProvider(ProviderAzure, ProviderOptions{})
		assert.Error(t, err)
	})

	t.Run("openai", func(t *testing.T) {
		p, err := NewProvider(ProviderOpenAI, ProviderOptions{Chat: config.ChatConfig{
			OpenAIAPIKey:           "sk-test",
			OpenAIModel:            "gpt-4o-mini",
			MaxFunctionCallRepairs: -1,
		}})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, p.ID())
		assert.Equal(t, "gpt-4o-mini", p.Model())
		assert.Equal(t, 0, p.config.MaxFunctionCallRepairs)
	})

	t.Run("openai bad base url", func(t *testing.T) {
		_, err := NewProvider(ProviderOpenAI, ProviderOptions{Chat: config.ChatConfig{
			OpenAIAPIKey:  "sk-test",
			OpenAIBaseURL: "ftp://models.internal",
		}})
		assert.ErrorContains(t, err, "invalid base URL")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewProvider("gemini", ProviderOptions{})
		assert.EqualError(t, err, `unknown provider "gemini"`)
	})
}
