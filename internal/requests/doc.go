// Package requests persists download requests, notification markers, and
// SMS conversation history in SQLite. Writes to a request row use optimistic
// concurrency via a revision column; notification markers are append-only
// claims that make completion messages at-most-once per (request, state,
// phone).
package requests
