// Package nlp provides chat completion clients for Azure OpenAI and OpenAI.
//
// Every provider and wrapper implements Completer. Providers are chosen with
// NewProvider instead of by type, and wrappers stack on any Completer.
//
// # Client Wrappers
//
//   - RetryClient: retries *RetryError with exponential backoff
//   - CircuitBreakerClient: circuit breaker pattern for fault tolerance
//   - TokenTrackingClient: writes token usage to Parquet files
//
// # Usage
//
//	provider, err := nlp.NewProvider(nlp.ProviderAzure, nlp.ProviderOptions{
//	    Azure:  client,
//	    Logger: logger,
//	})
//	completer := nlp.NewRetryClient(provider, nlp.DefaultRetryConfig(), logger)
//	completion, err := completer.Complete(ctx, messages, functions)
//
// # Error Handling
//
//   - AuthenticationError: the service rejected the credentials (401/403)
//   - RetryError: rate limits, server errors and other API errors
//   - FunctionCallError: function call arguments stayed malformed
package nlp
