package azure

import "strings"

// AuthMode names how requests are authenticated.
type AuthMode string

const (
	// AuthModeAPIKey sends a static key in the api-key header.
	AuthModeAPIKey AuthMode = "api_key"
	// AuthModeClientSecret uses a service principal (tenant, client, secret).
	AuthModeClientSecret AuthMode = "client_secret"
	// AuthModeManagedIdentity uses the platform-provided identity chain.
	AuthModeManagedIdentity AuthMode = "managed_identity"
)

// Credentials is either APIKeyCredentials or FederatedCredentials.
type Credentials interface {
	Mode() AuthMode
	isCredentials()
}

// APIKeyCredentials authenticates with a static Azure OpenAI key.
type APIKeyCredentials struct {
	Key string
}

func (APIKeyCredentials) Mode() AuthMode { return AuthModeAPIKey }
func (APIKeyCredentials) isCredentials() {}

// FederatedCredentials authenticates through Azure AD. An empty ClientSecret
// selects the managed identity chain.
type FederatedCredentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string
}

func (c FederatedCredentials) Mode() AuthMode {
	if c.ClientSecret != "" {
		return AuthModeClientSecret
	}
	return AuthModeManagedIdentity
}

func (FederatedCredentials) isCredentials() {}

// Resolve picks the authentication method for settings. It never touches the
// network.
//
// Order of preference:
//  1. tenant + client + secret: service principal
//  2. API key
//  3. tenant + client without a secret: managed identity
//
// Tenant and client IDs equal to the literal "true" are treated as absent; that
// value comes from booleans serialized as text by settings forms.
func Resolve(settings Settings) (Credentials, error) {
	if strings.TrimSpace(settings.Endpoint) == "" {
		return nil, ErrMissingEndpoint()
	}

	scope := settings.Scope
	if scope == "" {
		scope = DefaultScope
	}

	federated := usableID(settings.TenantID) && usableID(settings.ClientID)
	secret := strings.TrimSpace(settings.ClientSecret)
	apiKey := strings.TrimSpace(settings.APIKey)

	switch {
	case federated && secret != "":
		return FederatedCredentials{
			TenantID:     strings.TrimSpace(settings.TenantID),
			ClientID:     strings.TrimSpace(settings.ClientID),
			ClientSecret: secret,
			Scope:        scope,
		}, nil
	case apiKey != "":
		return APIKeyCredentials{Key: apiKey}, nil
	case federated:
		return FederatedCredentials{
			TenantID: strings.TrimSpace(settings.TenantID),
			ClientID: strings.TrimSpace(settings.ClientID),
			Scope:    scope,
		}, nil
	default:
		return nil, ErrNoAuthMethod()
	}
}

func usableID(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "true"
}
