// Package daemon ties the long-running pieces together: it holds the
// single-instance file lock, runs the reconciliation monitor, and serves the
// inbound Twilio SMS webhook that feeds the conversational agent.
package daemon
