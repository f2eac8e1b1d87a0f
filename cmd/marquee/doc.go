// Package main hosts the Marquee operator CLI entrypoint and command graph.
//
// The Cobra-based command tree inspects and maintains the request database the
// daemon writes: listing and showing tracked requests, reviving failed ones,
// summarizing lifecycle state counts, and scaffolding configuration. It opens
// the same SQLite store as the daemon; WAL mode keeps the two cooperative.
package main
