// Package notify delivers notification intents over SMS with at-most-once
// semantics per (request, state, phone), backed by persisted claim markers.
package notify
