// Package pipeline sequences the five analysis stages for one run.
//
// The engine advances extract → score → detect → compare → feedback and stops
// at the first failing stage, so no later artifact is written for an aborted
// run. The feedback stage degrades instead of failing when the language model
// is unavailable; a degraded run still finishes as done. Re-running a run id
// starts over from extraction and overwrites earlier artifacts.
package pipeline
