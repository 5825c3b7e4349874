// Package services defines shared utilities consumed by the ingestion
// pipeline and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item identifiers, feed sources, and run
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (configuration vs storage vs external vs launch)
//     uniform across components.
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability, retries) stays consistent.
package services
