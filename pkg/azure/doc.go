// Package azure resolves Azure OpenAI credentials and builds authenticated clients.
//
// Resolution is a pure function of Settings: an endpoint is mandatory, and the
// authentication method is chosen from the values present.
//
// # Authentication Modes
//
//   - client_secret: AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET are set
//   - api_key: AZURE_OPENAI_KEY is set
//   - managed_identity: tenant and client IDs are set without a secret
//
// Azure AD tokens are fetched lazily on the first request and refreshed before
// they expire.
//
// # Usage
//
//	settings := azure.SettingsFromMap(map[string]string{
//	    azure.EnvEndpoint: "https://my-resource.openai.azure.com",
//	    azure.EnvAPIKey:   key,
//	})
//	client, err := azure.NewClient(settings, logger)
package azure
