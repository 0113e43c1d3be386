// Package services defines shared utilities consumed by the pipeline task
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp content item IDs, task IDs, and worker
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into retryable and permanent outcomes.
//
// Use these helpers when wiring new handler logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
