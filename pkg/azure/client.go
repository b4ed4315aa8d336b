package azure

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// HTTPDoer is the transport used for outbound requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an authenticated Azure OpenAI handle. It is immutable after
// construction and safe to share between goroutines.
type Client struct {
	api         *openai.Client
	settings    Settings
	credentials Credentials
}

type clientOptions struct {
	httpClient HTTPDoer
	credential azcore.TokenCredential
}

// Option configures NewClient.
type Option func(*clientOptions)

// WithHTTPClient overrides the transport used for API calls.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(o *clientOptions) {
		o.httpClient = doer
	}
}

// WithTokenCredential supplies the Azure AD credential instead of building one
// from the settings. Only used for federated authentication.
func WithTokenCredential(credential azcore.TokenCredential) Option {
	return func(o *clientOptions) {
		o.credential = credential
	}
}

// NewClient resolves the credentials for settings and builds a client bound to
// them. The selected authentication mode is logged once.
func NewClient(settings Settings, logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.httpClient == nil {
		options.httpClient = &http.Client{Timeout: 2 * time.Minute}
	}

	settings = settings.WithDefaults()
	creds, err := Resolve(settings)
	if err != nil {
		return nil, err
	}

	var config openai.ClientConfig
	switch c := creds.(type) {
	case APIKeyCredentials:
		config = openai.DefaultAzureConfig(c.Key, settings.Endpoint)
		config.HTTPClient = options.httpClient
		logger.Info("Using API key authentication", zap.String("endpoint", settings.Endpoint))
	case FederatedCredentials:
		credential := options.credential
		if credential == nil {
			credential, err = NewTokenCredential(c)
			if err != nil {
				return nil, err
			}
		}
		config = openai.DefaultAzureConfig("", settings.Endpoint)
		config.APIType = openai.APITypeAzureAD
		config.HTTPClient = &bearerTokenDoer{
			tokens: NewBearerTokenProvider(credential, c.Scope),
			next:   options.httpClient,
		}
		logger.Info("Using Azure AD authentication",
			zap.String("endpoint", settings.Endpoint),
			zap.String("mode", string(c.Mode())),
			zap.String("scope", c.Scope))
	default:
		return nil, fmt.Errorf("unsupported credentials type %T", creds)
	}

	config.APIVersion = settings.APIVersion
	// Deployment names are used as-is; the default mapper strips dots and colons.
	config.AzureModelMapperFunc = func(model string) string { return model }

	return &Client{
		api:         openai.NewClientWithConfig(config),
		settings:    settings,
		credentials: creds,
	}, nil
}

// OpenAI returns the underlying go-openai client.
func (c *Client) OpenAI() *openai.Client {
	return c.api
}

// Mode returns the authentication mode chosen at construction.
func (c *Client) Mode() AuthMode {
	return c.credentials.Mode()
}

// Settings returns the settings the client was built from, with defaults applied.
func (c *Client) Settings() Settings {
	return c.settings
}

// bearerTokenDoer attaches a fresh Azure AD token to every request.
type bearerTokenDoer struct {
	tokens TokenProvider
	next   HTTPDoer
}

func (d *bearerTokenDoer) Do(req *http.Request) (*http.Response, error) {
	token, err := d.tokens.Token(req.Context())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return d.next.Do(req)
}
