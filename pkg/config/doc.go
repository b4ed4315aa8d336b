// Package config loads service configuration from defaults, an optional
// .azurellm.yaml file, a .env file and the environment, in increasing order
// of precedence.
package config
