// Package cache provides the key/value stores behind the embedding cache.
//
// Two backends implement Store:
//   - BadgerStore: embedded badger database, on disk or in memory
//   - RedisStore: shared redis instance via go-redis
//
// Vectors are stored as little-endian float32 arrays; see EncodeVector and
// DecodeVector.
package cache
