// Package types holds the message and completion types shared by the embedding
// and chat packages, along with the context keys used for request attribution.
package types
