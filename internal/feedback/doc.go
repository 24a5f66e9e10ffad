// Package feedback implements the final stage: a language model explains
// which prompt objects were missing from the video and proposes a revised
// prompt short enough for the CLIP text encoder.
//
// Two artifacts are always written. When the model cannot be reached, or no
// credential is configured, each artifact holds a placeholder carrying the
// reason and the analysis summary, and the run is marked degraded instead of
// aborted. A corrupt comparison artifact is an integrity failure and aborts.
package feedback
