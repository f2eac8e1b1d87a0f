package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"marquee/internal/config"
	"marquee/internal/lifecycle"
	"marquee/internal/logging"
	"marquee/internal/notify"
	"marquee/internal/requests"
	"marquee/internal/services"
	"marquee/internal/services/radarr"
	"marquee/internal/services/tmdb"
)

// Monitor is the reconciliation loop. On every tick it derives transition
// events from the download manager's live status, applies them through the
// pure state machine, persists the result, and hands intents to the
// notification dispatcher. One tick never overlaps with another.
type Monitor struct {
	store      *requests.Store
	tmdb       tmdb.Searcher
	manager    radarr.Manager
	dispatcher *notify.Dispatcher
	logger     *slog.Logger

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	conflictRetries    int
	qualityProfileID   int64
	rootFolder         string

	now func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option customizes the monitor.
type Option func(*Monitor)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New wires the monitor from configuration.
func New(cfg *config.Config, store *requests.Store, searcher tmdb.Searcher, manager radarr.Manager, dispatcher *notify.Dispatcher, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := time.Duration(cfg.Monitor.PollInterval) * time.Second
	if poll <= 0 {
		poll = 30 * time.Second
	}
	errRetry := time.Duration(cfg.Monitor.ErrorRetryInterval) * time.Second
	if errRetry <= 0 {
		errRetry = poll
	}
	conflictRetries := cfg.Monitor.ConflictRetries
	if conflictRetries <= 0 {
		conflictRetries = 3
	}
	monitor := &Monitor{
		store:              store,
		tmdb:               searcher,
		manager:            manager,
		dispatcher:         dispatcher,
		logger:             logging.NewComponentLogger(logger, "monitor"),
		pollInterval:       poll,
		errorRetryInterval: errRetry,
		conflictRetries:    conflictRetries,
		qualityProfileID:   cfg.Radarr.QualityProfileID,
		rootFolder:         cfg.Radarr.RootFolder,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(monitor)
	}
	return monitor
}

// Start begins background reconciliation.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background reconciliation and waits for the current tick.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		interval := m.pollInterval
		if err := m.Tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Error("tick failed", logging.Error(err))
			interval = m.errorRetryInterval
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Tick reconciles every active request once. A failure on one request is
// logged and skipped; it never aborts the tick for the others.
func (m *Monitor) Tick(ctx context.Context) error {
	active, err := m.store.Active(ctx)
	if err != nil {
		return fmt.Errorf("list active requests: %w", err)
	}

	for _, rec := range active {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.reconcile(ctx, rec); err != nil {
			m.logger.Warn("reconcile failed, skipping request",
				logging.Int64(logging.FieldTMDBID, rec.TMDBID),
				logging.String(logging.FieldState, string(rec.State)),
				logging.Error(err))
		}
	}
	return nil
}

func (m *Monitor) reconcile(ctx context.Context, rec *requests.Request) error {
	events, err := m.deriveEvents(ctx, rec)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	updated, intents, err := m.persist(ctx, rec, events)
	if err != nil {
		return err
	}

	if updated.State != rec.State {
		m.logger.Info("request advanced",
			logging.Int64(logging.FieldTMDBID, rec.TMDBID),
			logging.String("from", string(rec.State)),
			logging.String("to", string(updated.State)))
	}

	m.dispatcher.Dispatch(ctx, updated.TMDBID, intents)
	return nil
}

// deriveEvents translates the request's live external status into state
// machine events. It performs all the tick's I/O; the transition itself
// stays pure.
func (m *Monitor) deriveEvents(ctx context.Context, rec *requests.Request) ([]lifecycle.Event, error) {
	switch rec.State {
	case requests.StatePendingLookup:
		return m.derivePending(ctx, rec)
	case requests.StateNotYetReleased:
		return m.deriveUnreleased(ctx, rec)
	case requests.StateQueued, requests.StateDownloading:
		return m.deriveDownloading(ctx, rec)
	default:
		return nil, nil
	}
}

func (m *Monitor) derivePending(ctx context.Context, rec *requests.Request) ([]lifecycle.Event, error) {
	var events []lifecycle.Event

	released := true
	if rec.ReleaseDate == nil {
		details, err := m.tmdb.MovieDetails(ctx, rec.TMDBID)
		if err != nil {
			return nil, fmt.Errorf("resolve metadata: %w", err)
		}
		released = details.Released(m.now())
		events = append(events, lifecycle.MetadataResolved{
			Released:    released,
			ReleaseDate: details.ReleaseTime(),
		})
	}
	if !released {
		return events, nil
	}

	ref, err := m.enqueue(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("enqueue download: %w", err)
	}
	return append(events, lifecycle.QueuedForDownload{Ref: ref}), nil
}

// enqueue hands the movie to the download manager, reusing an existing
// Radarr record when one is already tracking the TMDB id.
func (m *Monitor) enqueue(ctx context.Context, rec *requests.Request) (int64, error) {
	movie, err := m.manager.LookupByTMDBID(ctx, rec.TMDBID)
	if err == nil {
		// Already tracked but without a file: nudge a search rather than
		// re-adding.
		if !movie.HasFile {
			if searchErr := m.manager.TriggerSearch(ctx, movie.ID); searchErr != nil {
				m.logger.Warn("trigger search failed",
					logging.Int64(logging.FieldTMDBID, rec.TMDBID),
					logging.Error(searchErr))
			}
		}
		return movie.ID, nil
	}
	if !isNotFound(err) {
		return 0, err
	}

	added, err := m.manager.Add(ctx, radarr.AddRequest{
		TMDBID:           rec.TMDBID,
		Title:            rec.Title,
		Year:             rec.Year,
		QualityProfileID: m.qualityProfileID,
		RootFolder:       m.rootFolder,
		SearchNow:        true,
	})
	if err != nil {
		return 0, err
	}
	return added.ID, nil
}

func (m *Monitor) deriveUnreleased(ctx context.Context, rec *requests.Request) ([]lifecycle.Event, error) {
	if rec.ReleaseDate != nil && m.now().Before(*rec.ReleaseDate) {
		return nil, nil
	}

	details, err := m.tmdb.MovieDetails(ctx, rec.TMDBID)
	if err != nil {
		return nil, fmt.Errorf("re-check release: %w", err)
	}
	return []lifecycle.Event{lifecycle.MetadataResolved{
		Released:    details.Released(m.now()),
		ReleaseDate: details.ReleaseTime(),
	}}, nil
}

func (m *Monitor) deriveDownloading(ctx context.Context, rec *requests.Request) ([]lifecycle.Event, error) {
	status, err := m.manager.MovieStatus(ctx, rec.RadarrMovieID)
	if err != nil {
		return nil, fmt.Errorf("query download status: %w", err)
	}

	switch status.Phase {
	case radarr.PhaseDownloading:
		return []lifecycle.Event{lifecycle.ProgressObserved{Percent: status.Percent}}, nil
	case radarr.PhaseCompleted:
		return []lifecycle.Event{lifecycle.DownloadCompleted{}}, nil
	case radarr.PhaseFailed:
		return []lifecycle.Event{lifecycle.DownloadFailed{Reason: status.Reason}}, nil
	case radarr.PhaseNotFound:
		return []lifecycle.Event{lifecycle.DownloadFailed{Reason: "the download manager lost track of this movie"}}, nil
	default:
		// Still waiting in the queue.
		return nil, nil
	}
}

// persist applies the events and writes the result with optimistic
// concurrency. On a conflicting write it re-reads the record and replays
// the same events against the fresh snapshot; the machine is pure, so a
// replay is safe and already-notified intents filter out.
func (m *Monitor) persist(ctx context.Context, snapshot *requests.Request, events []lifecycle.Event) (*requests.Request, []lifecycle.Intent, error) {
	rec := *snapshot
	for attempt := 0; ; attempt++ {
		updated := rec
		var intents []lifecycle.Intent
		for _, event := range events {
			var batch []lifecycle.Intent
			updated, batch = lifecycle.Apply(updated, event)
			intents = append(intents, batch...)
		}

		err := m.store.Update(ctx, &updated)
		if err == nil {
			return &updated, intents, nil
		}
		if !errors.Is(err, requests.ErrConflict) || attempt >= m.conflictRetries {
			return nil, nil, err
		}

		fresh, getErr := m.store.Get(ctx, rec.TMDBID)
		if getErr != nil {
			return nil, nil, getErr
		}
		rec = *fresh
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
