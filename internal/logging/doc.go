// Package logging builds the slog loggers used across the daemon and CLI.
//
// It provides a human-friendly console handler and a JSON handler, both
// driven by the logging section of the configuration, plus standardized
// attribute helpers and field keys so request identifiers and phone numbers
// show up consistently across components.
package logging
