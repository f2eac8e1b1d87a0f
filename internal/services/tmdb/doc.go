// Package tmdb wraps the TMDB HTTP API for movie search and detail lookup.
package tmdb
