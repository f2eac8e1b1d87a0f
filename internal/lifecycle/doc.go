// Package lifecycle holds the pure transition function for download
// requests. It maps (record, event) pairs to updated records plus proposed
// notification intents, and performs no I/O of its own.
package lifecycle
