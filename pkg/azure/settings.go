package azure

import "strings"

const (
	// DefaultAPIVersion is the Azure OpenAI REST API version used when none is configured.
	DefaultAPIVersion = "2024-12-01-preview"
	// DefaultScope is the Azure AD scope for Cognitive Services tokens.
	DefaultScope = "https://cognitiveservices.azure.com/.default"
)

// Environment variable names understood by SettingsFromMap.
const (
	EnvEndpoint       = "AZURE_OPENAI_ENDPOINT"
	EnvAPIKey         = "AZURE_OPENAI_KEY"
	EnvTenantID       = "AZURE_TENANT_ID"
	EnvClientID       = "AZURE_CLIENT_ID"
	EnvClientSecret   = "AZURE_CLIENT_SECRET"
	EnvAccessScope    = "AZURE_ACCESS_SCOPE"
	EnvAPIVersion     = "AZURE_OPENAI_API_VERSION"
	EnvEmbeddingModel = "EMBEDDING_MODEL_PREF"
	EnvChatModel      = "OPEN_MODEL_PREF"
)

// Settings is the validated-once view of the Azure OpenAI configuration.
// Values are never re-read while a request is in flight.
type Settings struct {
	Endpoint     string `mapstructure:"endpoint"`
	APIKey       string `mapstructure:"api_key" json:"-"`
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"-"`
	Scope        string `mapstructure:"scope"`
	APIVersion   string `mapstructure:"api_version"`

	// EmbeddingDeployment and ChatDeployment are Azure deployment names, not
	// model names; they are placed verbatim in the request path.
	EmbeddingDeployment string `mapstructure:"embedding_deployment"`
	ChatDeployment      string `mapstructure:"chat_deployment"`
}

// SettingsFromMap builds Settings from a flat key/value object keyed by the
// environment variable names above. Unknown keys are ignored.
func SettingsFromMap(values map[string]string) Settings {
	get := func(key string) string {
		return strings.TrimSpace(values[key])
	}
	return Settings{
		Endpoint:            get(EnvEndpoint),
		APIKey:              get(EnvAPIKey),
		TenantID:            get(EnvTenantID),
		ClientID:            get(EnvClientID),
		ClientSecret:        get(EnvClientSecret),
		Scope:               get(EnvAccessScope),
		APIVersion:          get(EnvAPIVersion),
		EmbeddingDeployment: get(EnvEmbeddingModel),
		ChatDeployment:      get(EnvChatModel),
	}
}

// WithDefaults returns a copy with the API version and scope filled in.
func (s Settings) WithDefaults() Settings {
	if s.APIVersion == "" {
		s.APIVersion = DefaultAPIVersion
	}
	if s.Scope == "" {
		s.Scope = DefaultScope
	}
	return s
}
