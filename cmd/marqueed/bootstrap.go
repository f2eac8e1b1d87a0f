package main

import (
	"fmt"
	"log/slog"
	"time"

	"marquee/internal/agent"
	"marquee/internal/config"
	"marquee/internal/daemon"
	"marquee/internal/monitor"
	"marquee/internal/notify"
	"marquee/internal/requests"
	"marquee/internal/services/llm"
	"marquee/internal/services/radarr"
	"marquee/internal/services/tmdb"
	"marquee/internal/services/twilio"
)

// buildDaemon wires the store, service clients, agent, and monitor into a
// ready-to-start daemon.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := requests.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open request store: %w", err)
	}

	searcher, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("tmdb client: %w", err)
	}

	radarrTimeout := time.Duration(cfg.Radarr.TimeoutSeconds) * time.Second
	manager, err := radarr.New(cfg.Radarr.URL, cfg.Radarr.APIKey, radarrTimeout)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("radarr client: %w", err)
	}

	oracle := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	registry := agent.DefaultRegistry(agent.Deps{
		Store:  store,
		TMDB:   searcher,
		Logger: logger,
	})
	dispatcher := agent.NewDispatcher(cfg, oracle, registry, store, logger)

	notifier := notify.NewDispatcher(cfg, store, twilio.NewSender(cfg), logger)
	mon := monitor.New(cfg, store, searcher, manager, notifier, logger)

	d, err := daemon.New(cfg, store, dispatcher, mon, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}
