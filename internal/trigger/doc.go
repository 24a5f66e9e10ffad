// Package trigger watches the prompt and video directories and dispatches one
// pipeline run per newly matched pair.
//
// The loop polls on a fixed interval. Each pair is dispatched at most once per
// loop instance: it is added to the processed set when it is launched, not
// when the run finishes, so a slow run is never dispatched twice. Run failures
// are logged and never stop the loop. Cancelling the loop's context stops
// polling; runs already in flight are detached from that context and are
// waited for before Run returns.
//
// Only one watch loop per state directory may run at a time; a file lock
// enforces this.
package trigger
