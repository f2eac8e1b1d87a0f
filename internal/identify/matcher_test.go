package identify_test

import (
	"testing"

	"marquee/internal/identify"
	"marquee/internal/logging"
	"marquee/internal/services/tmdb"
)

func TestSelectBestPrefersExactTitle(t *testing.T) {
	response := &tmdb.Response{Results: []tmdb.Result{
		{ID: 1, Title: "The Matrix Reloaded", ReleaseDate: "2003-05-15", VoteAverage: 7.0, VoteCount: 12000},
		{ID: 2, Title: "The Matrix", ReleaseDate: "1999-03-31", VoteAverage: 8.2, VoteCount: 21000},
	}}

	best := identify.SelectBest(logging.NewNop(), "The Matrix", 0, response)
	if best == nil || best.ID != 2 {
		t.Fatalf("expected exact title match, got %#v", best)
	}
}

func TestSelectBestTieBreaksOnMentionedYear(t *testing.T) {
	response := &tmdb.Response{Results: []tmdb.Result{
		{ID: 1, Title: "Dune", ReleaseDate: "1984-12-14", VoteAverage: 6.2, VoteCount: 3000},
		{ID: 2, Title: "Dune", ReleaseDate: "2021-10-22", VoteAverage: 7.8, VoteCount: 11000},
	}}

	best := identify.SelectBest(logging.NewNop(), "Dune", 1984, response)
	if best == nil || best.ID != 1 {
		t.Fatalf("expected 1984 release, got %#v", best)
	}
}

func TestSelectBestRejectsLowConfidence(t *testing.T) {
	response := &tmdb.Response{Results: []tmdb.Result{
		{ID: 1, Title: "Completely Different Film", VoteAverage: 3.5, VoteCount: 4},
	}}

	if best := identify.SelectBest(logging.NewNop(), "The Matrix", 0, response); best != nil {
		t.Fatalf("expected rejection, got %#v", best)
	}
}

func TestSelectBestEmptyResponse(t *testing.T) {
	if best := identify.SelectBest(logging.NewNop(), "anything", 0, &tmdb.Response{}); best != nil {
		t.Fatalf("expected nil for empty response, got %#v", best)
	}
	if best := identify.SelectBest(logging.NewNop(), "anything", 0, nil); best != nil {
		t.Fatalf("expected nil for nil response, got %#v", best)
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"the matrix", "The Matrix"},
		{"  spider-man: no way home  ", "Spider Man: No Way Home"},
		{"dune_part_two", "Dune Part Two"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := identify.NormalizeTitle(tc.in); got != tc.want {
			t.Fatalf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
