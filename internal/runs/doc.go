// Package runs defines the Run record threaded through the pipeline: its
// identity (run id, prompt and video paths), the in-memory outputs each stage
// hands to the next, and the lifecycle status recorded when the run ends.
package runs
