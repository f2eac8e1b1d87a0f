package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"

	"marquee/internal/agent"
	"marquee/internal/config"
	"marquee/internal/logging"
	"marquee/internal/monitor"
	"marquee/internal/requests"
)

// Daemon coordinates the reconciliation monitor and the inbound SMS webhook
// server, and enforces single-instance execution through a file lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *requests.Store
	agent   *agent.Dispatcher
	monitor *monitor.Monitor
	webhook *webhookServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Requests     requests.Summary
	DatabasePath string
	LockFilePath string
	WebhookAddr  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *requests.Store, dispatcher *agent.Dispatcher, mon *monitor.Monitor, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || dispatcher == nil || mon == nil {
		return nil, errors.New("daemon requires config, store, agent dispatcher, and monitor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		agent:    dispatcher,
		monitor:  mon,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	webhook, err := newWebhookServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.webhook = webhook
	return d, nil
}

// Start acquires the daemon lock and launches the monitor and webhook server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another marquee daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.monitor.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start monitor: %w", err)
	}
	if err := d.webhook.start(runCtx); err != nil {
		d.monitor.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start webhook server: %w", err)
	}

	d.cancel = cancel
	d.running = true
	d.logger.Info("marquee daemon started",
		logging.String("lock", d.lockPath),
		logging.String("webhook", d.webhook.addr()))
	return nil
}

// Stop shuts down background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.webhook.stop()
	d.monitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running = false
	d.logger.Info("marquee daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) isRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// WebhookAddr returns the bound webhook listener address, empty before Start.
func (d *Daemon) WebhookAddr() string {
	if d.webhook == nil {
		return ""
	}
	return d.webhook.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	summary, err := d.store.Summary(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("request summary: %w", err)
	}
	return Status{
		Running:      d.isRunning(),
		Requests:     summary,
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		WebhookAddr:  d.WebhookAddr(),
	}, nil
}
