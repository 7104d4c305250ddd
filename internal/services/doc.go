// Package services defines shared utilities consumed by the sync action
// handlers and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, action kinds, playlist IDs, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent (transient vs fatal) across collaborators.
//
// Use these helpers when wiring new action logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
