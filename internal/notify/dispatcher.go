package notify

import (
	"context"
	"log/slog"
	"time"

	"marquee/internal/config"
	"marquee/internal/lifecycle"
	"marquee/internal/logging"
	"marquee/internal/requests"
	"marquee/internal/services"
	"marquee/internal/services/twilio"
)

// Dispatcher executes notification intents at most once per (request,
// state, phone). The marker is claimed in the store before the send, so a
// crash between claim and send drops the message instead of risking a
// duplicate.
type Dispatcher struct {
	store  *requests.Store
	sender twilio.Sender
	logger *slog.Logger

	sendRetries  int
	retryBackoff time.Duration
	sleeper      func(context.Context, time.Duration) error
}

// Option customizes the dispatcher.
type Option func(*Dispatcher)

// WithSleeper overrides how retry backoff waits are performed (useful for
// tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(d *Dispatcher) {
		if sleeper != nil {
			d.sleeper = sleeper
		}
	}
}

// NewDispatcher wires the dispatcher from configuration.
func NewDispatcher(cfg *config.Config, store *requests.Store, sender twilio.Sender, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	retries := cfg.Notify.SendRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := time.Duration(cfg.Notify.RetryBackoffSeconds) * time.Second
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	dispatcher := &Dispatcher{
		store:        store,
		sender:       sender,
		logger:       logging.NewComponentLogger(logger, "notify"),
		sendRetries:  retries,
		retryBackoff: backoff,
		sleeper:      sleepContext,
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	return dispatcher
}

// Dispatch claims and sends a batch of intents for one request. A failed
// send never releases its marker and never blocks the rest of the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, tmdbID int64, intents []lifecycle.Intent) {
	for _, intent := range intents {
		d.dispatchOne(ctx, tmdbID, intent)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, tmdbID int64, intent lifecycle.Intent) {
	logger := d.logger.With(
		logging.Int64(logging.FieldTMDBID, tmdbID),
		logging.String(logging.FieldState, string(intent.State)),
		logging.String(logging.FieldPhone, intent.Phone))

	won, err := d.store.ClaimNotification(ctx, tmdbID, intent.State, intent.Phone)
	if err != nil {
		logger.Error("claim notification failed", logging.Error(err))
		return
	}
	if !won {
		logger.Debug("notification already claimed, skipping")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= d.sendRetries; attempt++ {
		lastErr = d.sender.SendSMS(ctx, intent.Phone, intent.Body)
		if lastErr == nil {
			logger.Info("notification sent")
			return
		}
		if !services.IsRetryable(lastErr) || attempt == d.sendRetries {
			break
		}
		if err := d.sleeper(ctx, d.retryBackoff*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	// The marker stays claimed: an unresolved send is logged, not retried
	// on the next tick.
	logger.Error("notification send failed, giving up", logging.Error(lastErr))
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
