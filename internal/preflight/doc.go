// Package preflight provides readiness checks for the directories, external
// commands, and services tunevision depends on.
//
// The watch command calls RunAll before it starts polling and refuses to
// start when a required check fails. The status command prints every check,
// including the LLM reachability probe, which is advisory: without a working
// credential the feedback stage degrades instead of failing.
package preflight
