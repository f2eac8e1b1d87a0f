package daemon_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"marquee/internal/agent"
	"marquee/internal/config"
	"marquee/internal/daemon"
	"marquee/internal/logging"
	"marquee/internal/monitor"
	"marquee/internal/notify"
	"marquee/internal/services"
	"marquee/internal/services/llm"
	"marquee/internal/services/radarr"
	"marquee/internal/services/tmdb"
	"marquee/internal/services/twilio"
	"marquee/internal/testsupport"
)

type cannedOracle struct {
	reply string
}

func (c *cannedOracle) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Turn, error) {
	return &llm.Turn{Content: c.reply}, nil
}

type idleSearcher struct{}

func (idleSearcher) SearchMovie(ctx context.Context, query string, opts tmdb.SearchOptions) (*tmdb.Response, error) {
	return &tmdb.Response{}, nil
}

func (idleSearcher) MovieDetails(ctx context.Context, movieID int64) (*tmdb.Result, error) {
	return nil, services.Wrap(services.ErrNotFound, "tmdb", "movie details", "no match", nil)
}

type idleManager struct{}

func (idleManager) LookupByTMDBID(ctx context.Context, tmdbID int64) (*radarr.Movie, error) {
	return nil, services.Wrap(services.ErrNotFound, "radarr", "lookup", "not tracked", nil)
}

func (idleManager) Add(ctx context.Context, req radarr.AddRequest) (*radarr.Movie, error) {
	return &radarr.Movie{ID: 1, TMDBID: req.TMDBID}, nil
}

func (idleManager) MovieStatus(ctx context.Context, movieID int64) (radarr.Status, error) {
	return radarr.Status{Phase: radarr.PhaseQueued}, nil
}

func (idleManager) TriggerSearch(ctx context.Context, movieID int64) error { return nil }

func newDaemon(t *testing.T, cfg *config.Config, reply string) *daemon.Daemon {
	t.Helper()

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	registry := agent.DefaultRegistry(agent.Deps{Store: store, TMDB: idleSearcher{}, Logger: logger})
	dispatcher := agent.NewDispatcher(cfg, &cannedOracle{reply: reply}, registry, store, logger)
	notifier := notify.NewDispatcher(cfg, store, twilio.NewSender(cfg), logger)
	mon := monitor.New(cfg, store, idleSearcher{}, idleManager{}, notifier, logger)

	d, err := daemon.New(cfg, store, dispatcher, mon, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func startDaemon(t *testing.T, d *daemon.Daemon) {
	t.Helper()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
}

func TestWebhookAnswersWithTwiML(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, "Got it! I'm looking into The Matrix now.")
	startDaemon(t, d)

	resp, err := http.PostForm("http://"+d.WebhookAddr()+"/api/sms/webhook", url.Values{
		"From": {"+15550001111"},
		"Body": {"Can you download The Matrix?"},
	})
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("expected text/xml, got %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "<Response>") || !strings.Contains(text, "The Matrix") {
		t.Fatalf("unexpected TwiML: %s", text)
	}
}

func TestWebhookRejectsMissingSender(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, "hello")
	startDaemon(t, d)

	resp, err := http.PostForm("http://"+d.WebhookAddr()+"/api/sms/webhook", url.Values{
		"Body": {"orphan message"},
	})
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStatusEndpointRequiresBearerToken(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Webhook.AuthToken = "sekrit"
	})
	d := newDaemon(t, cfg, "hello")
	startDaemon(t, d)

	statusURL := "http://" + d.WebhookAddr() + "/api/status"

	resp, err := http.Get(statusURL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, statusURL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `"running":true`) {
		t.Fatalf("unexpected status payload: %s", body)
	}
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Webhook.AuthToken = "sekrit"
	})
	d := newDaemon(t, cfg, "hello")
	startDaemon(t, d)

	resp, err := http.Get("http://" + d.WebhookAddr() + "/healthz")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStartAndStopAreSafeUnderConcurrency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, "hello")
	startDaemon(t, d)

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected error starting a running daemon")
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Stop()
		}()
	}
	wg.Wait()

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to report stopped after Stop")
	}
}

func TestSecondInstanceCannotAcquireLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg, "hello")
	startDaemon(t, first)

	second := newDaemon(t, cfg, "hello")
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail the lock")
	}
}
