package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"marquee/internal/config"
	"marquee/internal/requests"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *requests.Store
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TMDB.APIKey = "test"
	cfgVal.Radarr.URL = "http://localhost:7878"
	cfgVal.Radarr.APIKey = "test"
	cfgVal.Radarr.QualityProfileID = 1
	cfgVal.Radarr.RootFolder = "/movies"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfg := &cfgVal

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	store, err := requests.Open(cfg)
	if err != nil {
		t.Fatalf("requests.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	return &cliTestEnv{cfg: cfg, store: store, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRequestsListAndRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.Create(ctx, &requests.Request{
		TMDBID:     603,
		Title:      "The Matrix",
		Year:       1999,
		Requesters: []string{"+15550001111"},
		State:      requests.StateDownloading,
	}); err != nil {
		t.Fatalf("create downloading request: %v", err)
	}
	if _, err := env.store.Create(ctx, &requests.Request{
		TMDBID:          27205,
		Title:           "Inception",
		Year:            2010,
		Requesters:      []string{"+15550002222"},
		State:           requests.StateFailed,
		LastError:       "no release found",
		RadarrMovieID:   42,
		ProgressPercent: 40,
	}); err != nil {
		t.Fatalf("create failed request: %v", err)
	}

	out, _, err := runCLI(t, []string{"requests", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("requests list: %v", err)
	}
	if !strings.Contains(out, "The Matrix") || !strings.Contains(out, "Inception") {
		t.Fatalf("requests list missing rows: %q", out)
	}

	out, _, err = runCLI(t, []string{"requests", "list", "--state", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("requests list --state failed: %v", err)
	}
	if strings.Contains(out, "The Matrix") || !strings.Contains(out, "Inception") {
		t.Fatalf("state filter not applied: %q", out)
	}

	out, _, err = runCLI(t, []string{"requests", "retry", "27205"}, env.configPath)
	if err != nil {
		t.Fatalf("requests retry: %v", err)
	}
	if !strings.Contains(out, "pending_lookup") {
		t.Fatalf("unexpected retry output: %q", out)
	}
	revived, err := env.store.Get(ctx, 27205)
	if err != nil {
		t.Fatalf("Get after retry: %v", err)
	}
	if revived.State != requests.StatePendingLookup || revived.LastError != "" {
		t.Fatalf("retry did not reset the request: %#v", revived)
	}
	if revived.RadarrMovieID != 0 || revived.ProgressPercent != 0 {
		t.Fatalf("retry must clear the download manager ref and progress: %#v", revived)
	}

	if _, _, err := runCLI(t, []string{"requests", "retry", "603"}, env.configPath); err == nil {
		t.Fatal("expected error retrying a request that is not failed")
	}
}

func TestRequestsShowDetails(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.Create(ctx, &requests.Request{
		TMDBID:     603,
		Title:      "The Matrix",
		Year:       1999,
		Requesters: []string{"+15550001111", "+15550002222"},
		State:      requests.StateQueued,
	}); err != nil {
		t.Fatalf("create request: %v", err)
	}

	out, _, err := runCLI(t, []string{"requests", "show", "603"}, env.configPath)
	if err != nil {
		t.Fatalf("requests show: %v", err)
	}
	for _, want := range []string{"The Matrix (1999)", "queued", "+15550001111", "+15550002222"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q: %q", want, out)
		}
	}

	if _, _, err := runCLI(t, []string{"requests", "show", "999"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown request")
	}
}

func TestStatusSummarizesStates(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	for i, state := range []requests.State{requests.StateCompleted, requests.StateCompleted, requests.StateFailed} {
		if _, err := env.store.Create(ctx, &requests.Request{
			TMDBID:     int64(1000 + i),
			Title:      "Movie",
			Requesters: []string{"+15550001111"},
			State:      state,
		}); err != nil {
			t.Fatalf("create request: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "completed") || !strings.Contains(out, "failed") || !strings.Contains(out, "total") {
		t.Fatalf("unexpected status output: %q", out)
	}
}

func TestConfigInitAndPath(t *testing.T) {
	env := setupCLITestEnv(t)

	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	out, _, err = runCLI(t, []string{"config", "path"}, env.configPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(out, env.configPath) {
		t.Fatalf("unexpected config path output: %q", out)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "'test'") {
		t.Fatalf("secrets leaked in config show: %q", out)
	}
	if !strings.Contains(out, "***") {
		t.Fatalf("expected redacted markers: %q", out)
	}
}
