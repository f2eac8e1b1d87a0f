package notify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"marquee/internal/lifecycle"
	"marquee/internal/logging"
	"marquee/internal/notify"
	"marquee/internal/requests"
	"marquee/internal/services"
	"marquee/internal/testsupport"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	fails int
	err   error
}

func (r *recordingSender) SendSMS(ctx context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		if r.err != nil {
			return r.err
		}
		return services.Wrap(services.ErrUnavailable, "twilio", "send", "boom", nil)
	}
	r.sent = append(r.sent, to+": "+body)
	return nil
}

func (r *recordingSender) sentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestDispatchSendsOncePerIntent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRequest(t, store, 603, "The Matrix", "+15550001111")

	sender := &recordingSender{}
	dispatcher := notify.NewDispatcher(cfg, store, sender, logging.NewNop(), notify.WithSleeper(noSleep))

	intents := []lifecycle.Intent{{State: requests.StateCompleted, Phone: "+15550001111", Body: "ready!"}}
	dispatcher.Dispatch(context.Background(), 603, intents)
	dispatcher.Dispatch(context.Background(), 603, intents)

	if sender.sentCount() != 1 {
		t.Fatalf("expected 1 send, got %d", sender.sentCount())
	}
}

func TestConcurrentDispatchSingleSend(t *testing.T) {
	// Two ticks racing on the same intent must produce exactly one SMS.
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRequest(t, store, 603, "The Matrix", "+15550001111")

	sender := &recordingSender{}
	dispatcher := notify.NewDispatcher(cfg, store, sender, logging.NewNop(), notify.WithSleeper(noSleep))
	intents := []lifecycle.Intent{{State: requests.StateCompleted, Phone: "+15550001111", Body: "ready!"}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Dispatch(context.Background(), 603, intents)
		}()
	}
	wg.Wait()

	if sender.sentCount() != 1 {
		t.Fatalf("expected 1 send under concurrency, got %d", sender.sentCount())
	}
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notify.SendRetries = 3
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRequest(t, store, 603, "The Matrix", "+15550001111")

	sender := &recordingSender{fails: 2}
	dispatcher := notify.NewDispatcher(cfg, store, sender, logging.NewNop(), notify.WithSleeper(noSleep))

	dispatcher.Dispatch(context.Background(), 603, []lifecycle.Intent{
		{State: requests.StateQueued, Phone: "+15550001111", Body: "started"},
	})

	if sender.sentCount() != 1 {
		t.Fatalf("expected send to succeed after retries, got %d", sender.sentCount())
	}
}

func TestExhaustedRetriesKeepMarkerClaimed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notify.SendRetries = 2
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRequest(t, store, 603, "The Matrix", "+15550001111")

	sender := &recordingSender{fails: 10}
	dispatcher := notify.NewDispatcher(cfg, store, sender, logging.NewNop(), notify.WithSleeper(noSleep))
	intents := []lifecycle.Intent{{State: requests.StateQueued, Phone: "+15550001111", Body: "started"}}

	dispatcher.Dispatch(context.Background(), 603, intents)
	if sender.sentCount() != 0 {
		t.Fatalf("expected no successful send, got %d", sender.sentCount())
	}

	// The marker stays claimed, so the next tick does not send either even
	// though the sender has recovered.
	sender.fails = 0
	dispatcher.Dispatch(context.Background(), 603, intents)
	if sender.sentCount() != 0 {
		t.Fatalf("expected no send after marker claimed, got %d", sender.sentCount())
	}

	rec, err := store.Get(context.Background(), 603)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !rec.AlreadyNotified(requests.StateQueued, "+15550001111") {
		t.Fatal("expected marker to remain claimed")
	}
}

func TestValidationFailureDoesNotRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notify.SendRetries = 5
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRequest(t, store, 603, "The Matrix", "+15550001111")

	sender := &recordingSender{
		fails: 10,
		err:   services.Wrap(services.ErrValidation, "twilio", "send", "invalid number", nil),
	}
	dispatcher := notify.NewDispatcher(cfg, store, sender, logging.NewNop(), notify.WithSleeper(noSleep))

	dispatcher.Dispatch(context.Background(), 603, []lifecycle.Intent{
		{State: requests.StateQueued, Phone: "bogus", Body: "started"},
	})

	if sender.fails != 9 {
		t.Fatalf("expected a single attempt for a non-retryable failure, %d attempts consumed", 10-sender.fails)
	}
}
