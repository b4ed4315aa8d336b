package azure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// tokenRefreshMargin is how long before expiry a cached token is replaced.
const tokenRefreshMargin = 2 * time.Minute

// TokenProvider returns a bearer token for the configured scope.
// Implementations must be safe for concurrent use.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// BearerTokenProvider lazily acquires Azure AD tokens and caches them until
// shortly before they expire.
type BearerTokenProvider struct {
	credential azcore.TokenCredential
	scope      string

	mu    sync.Mutex
	token azcore.AccessToken
	now   func() time.Time
}

// NewBearerTokenProvider binds a credential to a scope. No token is requested
// until the first call to Token.
func NewBearerTokenProvider(credential azcore.TokenCredential, scope string) *BearerTokenProvider {
	if scope == "" {
		scope = DefaultScope
	}
	return &BearerTokenProvider{
		credential: credential,
		scope:      scope,
		now:        time.Now,
	}
}

// Token implements TokenProvider.
func (p *BearerTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token.Token != "" && p.now().Add(tokenRefreshMargin).Before(p.token.ExpiresOn) {
		return p.token.Token, nil
	}

	token, err := p.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{p.scope}})
	if err != nil {
		return "", fmt.Errorf("failed to acquire azure ad token for scope %s: %w", p.scope, err)
	}
	p.token = token
	return token.Token, nil
}

// NewTokenCredential builds the azidentity credential for federated credentials:
// a client secret credential when a secret is present, otherwise the default
// credential chain (managed identity, workload identity, CLI, ...).
func NewTokenCredential(creds FederatedCredentials) (azcore.TokenCredential, error) {
	if creds.Mode() == AuthModeClientSecret {
		cred, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client secret credential: %w", err)
		}
		return cred, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		TenantID: creds.TenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create default azure credential: %w", err)
	}
	return cred, nil
}
