// Package services provides shared helpers for the typed external clients
// under services/: sentinel error markers for failure classification, a
// Wrap helper that tags errors with component context, and context
// annotation utilities for correlation identifiers.
package services
