// Package dashboard renders the artifacts of a finished run.
//
// Load gathers everything a run left on disk for one video into a Report;
// it never writes. Artifacts that are absent or fail to decode become
// warnings on the report instead of errors, so a run that aborted early still
// renders what it produced. Reports render as text tables, JSON, YAML, or an
// interactive terminal viewer.
package dashboard
