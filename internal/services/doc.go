// Package services defines shared utilities consumed by the pipeline stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the failure kinds reported by the pipeline (SourceUnreadable,
//     ModelUnavailable, FilesystemError, ServiceUnavailable, MalformedArtifact).
//
// Use these helpers when wiring new stage logic so failure classification
// stays uniform across the pipeline.
package services
