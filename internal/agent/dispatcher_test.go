package agent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"marquee/internal/agent"
	"marquee/internal/logging"
	"marquee/internal/requests"
	"marquee/internal/services/llm"
	"marquee/internal/services/tmdb"
	"marquee/internal/testsupport"
)

// scriptedOracle replays a fixed sequence of turns; the last turn repeats
// once the script runs out.
type scriptedOracle struct {
	turns []*llm.Turn
	calls int
}

func (s *scriptedOracle) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Turn, error) {
	idx := s.calls
	if idx >= len(s.turns) {
		idx = len(s.turns) - 1
	}
	s.calls++
	return s.turns[idx], nil
}

type fakeSearcher struct {
	results []tmdb.Result
}

func (f *fakeSearcher) SearchMovie(ctx context.Context, query string, opts tmdb.SearchOptions) (*tmdb.Response, error) {
	return &tmdb.Response{Results: f.results}, nil
}

func (f *fakeSearcher) MovieDetails(ctx context.Context, movieID int64) (*tmdb.Result, error) {
	for i := range f.results {
		if f.results[i].ID == movieID {
			return &f.results[i], nil
		}
	}
	return nil, nil
}

func toolCall(id, name, args string) *llm.Turn {
	return &llm.Turn{ToolCall: &llm.ToolCall{ID: id, Name: name, Arguments: args}}
}

func finalMessage(content string) *llm.Turn {
	return &llm.Turn{Content: content}
}

func newDispatcher(t *testing.T, oracle llm.Oracle) (*agent.Dispatcher, *requests.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	searcher := &fakeSearcher{results: []tmdb.Result{
		{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-31", Status: "Released", VoteAverage: 8.2, VoteCount: 21000},
	}}
	registry := agent.DefaultRegistry(agent.Deps{
		Store:  store,
		TMDB:   searcher,
		Logger: logging.NewNop(),
		Now:    func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	return agent.NewDispatcher(cfg, oracle, registry, store, logging.NewNop()), store
}

func TestMovieRequestFlowCreatesRecord(t *testing.T) {
	oracle := &scriptedOracle{turns: []*llm.Turn{
		toolCall("call_1", "resolve_movie", `{"title":"the matrix"}`),
		toolCall("call_2", "request_download", `{"tmdb_id":603,"title":"The Matrix","year":1999}`),
		finalMessage("On it! I'll text you when The Matrix is ready."),
	}}
	dispatcher, store := newDispatcher(t, oracle)

	reply, err := dispatcher.HandleMessage(context.Background(), "+15550001111", "can you get the matrix?")
	if err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if !strings.Contains(reply, "On it!") {
		t.Fatalf("unexpected reply: %q", reply)
	}

	rec, err := store.Get(context.Background(), 603)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.State != requests.StatePendingLookup {
		t.Fatalf("expected pending_lookup, got %s", rec.State)
	}
	if !rec.HasRequester("+15550001111") {
		t.Fatalf("expected requester recorded, got %v", rec.Requesters)
	}

	history, err := store.History(context.Background(), "+15550001111", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user and assistant turns recorded, got %d", len(history))
	}
}

func TestInvalidArgumentsHitIterationCapWithFallback(t *testing.T) {
	// The oracle never produces valid arguments; the loop must terminate at
	// the cap with the fallback message, not an error.
	oracle := &scriptedOracle{turns: []*llm.Turn{
		toolCall("call_1", "resolve_movie", `{"year":1999}`),
	}}
	dispatcher, _ := newDispatcher(t, oracle)

	reply, err := dispatcher.HandleMessage(context.Background(), "+15550001111", "movie please")
	if err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if !strings.Contains(reply, "Try texting a movie title") {
		t.Fatalf("expected fallback, got %q", reply)
	}
	if oracle.calls != 6 {
		t.Fatalf("expected 6 oracle consultations, got %d", oracle.calls)
	}
}

func TestUnknownActionFedBackAsError(t *testing.T) {
	oracle := &scriptedOracle{turns: []*llm.Turn{
		toolCall("call_1", "delete_everything", `{}`),
		finalMessage("Sorry, I can't do that."),
	}}
	dispatcher, _ := newDispatcher(t, oracle)

	reply, err := dispatcher.HandleMessage(context.Background(), "+15550001111", "delete everything")
	if err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if reply != "Sorry, I can't do that." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestSecondRequesterAttachesToExistingRecord(t *testing.T) {
	oracle := &scriptedOracle{turns: []*llm.Turn{
		toolCall("call_1", "request_download", `{"tmdb_id":603,"title":"The Matrix","year":1999}`),
		finalMessage("You got it!"),
	}}
	dispatcher, store := newDispatcher(t, oracle)

	for _, phone := range []string{"+15550001111", "+15550002222"} {
		oracle.calls = 0
		if _, err := dispatcher.HandleMessage(context.Background(), phone, "get the matrix"); err != nil {
			t.Fatalf("HandleMessage(%s) returned error: %v", phone, err)
		}
	}

	all, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single record, got %d", len(all))
	}
	rec := all[0]
	if !rec.HasRequester("+15550001111") || !rec.HasRequester("+15550002222") {
		t.Fatalf("expected both requesters, got %v", rec.Requesters)
	}
}

func TestRequestForCompletedMovieReportsStatus(t *testing.T) {
	oracle := &scriptedOracle{turns: []*llm.Turn{
		toolCall("call_1", "request_download", `{"tmdb_id":603,"title":"The Matrix","year":1999}`),
		finalMessage("Good news, it's already there!"),
	}}
	dispatcher, store := newDispatcher(t, oracle)

	rec := testsupport.NewRequest(t, store, 603, "The Matrix", "+15550001111")
	rec.State = requests.StateCompleted
	if err := store.Update(context.Background(), rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reply, err := dispatcher.HandleMessage(context.Background(), "+15550002222", "get the matrix")
	if err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if reply != "Good news, it's already there!" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	fetched, err := store.Get(context.Background(), 603)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.State != requests.StateCompleted {
		t.Fatalf("completed record must not restart, got %s", fetched.State)
	}
}

func TestCheckRequestForUntrackedMovie(t *testing.T) {
	oracle := &scriptedOracle{turns: []*llm.Turn{
		toolCall("call_1", "check_request", `{"tmdb_id":999}`),
		finalMessage("I'm not tracking that one yet."),
	}}
	dispatcher, _ := newDispatcher(t, oracle)

	reply, err := dispatcher.HandleMessage(context.Background(), "+15550001111", "how's my movie?")
	if err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if reply != "I'm not tracking that one yet." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}
