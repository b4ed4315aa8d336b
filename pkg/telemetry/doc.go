// Package telemetry persists error-level log entries to Parquet files for
// offline analysis.
package telemetry
