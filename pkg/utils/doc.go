// Package utils provides small helpers shared across the module.
//
// This package contains:
//   - Concurrent execution helpers (concurrent.go)
//   - Panic recovery for goroutines (recovery.go)
//   - Environment-driven limits and slice helpers (helpers.go)
package utils
