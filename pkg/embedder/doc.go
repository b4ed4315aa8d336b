// Package embedder turns text into vectors using an Azure OpenAI embedding
// deployment.
//
// AzureEmbedder splits the input into ordered groups of at most 16 texts,
// sends one request per group concurrently and waits for all of them. The
// call is all-or-nothing: if any group fails, no vectors are returned and the
// error lists every distinct failure once, in the order first seen.
//
// # Wrappers
//
//   - CachedEmbedder: looks vectors up in a cache.Store before dispatching
//   - CircuitBreakerEmbedder: stops calling the service after repeated failures
//
// # Usage
//
//	client, err := azure.NewClient(settings, logger)
//	emb := embedder.NewAzureEmbedder(client, embedder.Config{}, logger)
//	vectors, err := emb.Embed(ctx, []string{"hello", "world"})
package embedder
