// Package radarr wraps the Radarr v3 API used to queue movie downloads and
// observe their progress.
package radarr
