package services_test

import (
	"errors"
	"fmt"
	"testing"

	"marquee/internal/services"
)

func TestWrapTagsMarkerAndDetail(t *testing.T) {
	base := fmt.Errorf("connection refused")
	err := services.Wrap(services.ErrUnavailable, "radarr", "queue status", "movie 42", base)
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
	want := "external service unavailable: radarr: queue status: movie 42: connection refused"
	if err.Error() != want {
		t.Fatalf("unexpected message:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "tmdb", "search", "", nil)
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected default marker, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	if services.IsRetryable(services.Wrap(services.ErrNotFound, "tmdb", "search", "", nil)) {
		t.Fatal("not-found should not be retryable")
	}
	if !services.IsRetryable(services.Wrap(services.ErrUnavailable, "tmdb", "search", "", nil)) {
		t.Fatal("unavailable should be retryable")
	}
}
