package testsupport

import (
	"context"
	"testing"

	"marquee/internal/config"
	"marquee/internal/requests"
)

// MustOpenStore opens a requests.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *requests.Store {
	t.Helper()

	store, err := requests.Open(cfg)
	if err != nil {
		t.Fatalf("requests.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRequest creates a request row for tests using the provided store.
func NewRequest(t testing.TB, store *requests.Store, tmdbID int64, title string, phone string) *requests.Request {
	t.Helper()

	req := &requests.Request{
		TMDBID:     tmdbID,
		Title:      title,
		Requesters: []string{phone},
		State:      requests.StatePendingLookup,
	}
	created, err := store.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return created
}
