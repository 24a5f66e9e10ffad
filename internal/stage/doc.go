// Package stage defines the contract shared by the five pipeline stage
// handlers (extract, score, detect, compare, feedback) and the health record
// each reports to the status command.
package stage
