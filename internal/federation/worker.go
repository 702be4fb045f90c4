package federation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/list/storage"
)

// Deliverer posts one serialized activity to one remote inbox.
type Deliverer interface {
	Deliver(ctx context.Context, inbox string, payload []byte) error
}

// WorkerConfig controls the delivery loop.
type WorkerConfig struct {
	Consumer      string
	BatchSize     int
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

const defaultConsumer = "federation-delivery"

func (c WorkerConfig) normalized() WorkerConfig {
	if strings.TrimSpace(c.Consumer) == "" {
		c.Consumer = defaultConsumer
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 30 * time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = time.Hour
	}
	return c
}

// Worker drains the activity outbox: it leases due rows, posts each
// activity to its recipient inboxes, and acks the row as succeeded,
// retryable, or dead.
type Worker struct {
	store     storage.OutboxStore
	deliverer Deliverer
	cfg       WorkerConfig
	now       func() time.Time
	logf      func(format string, args ...any)
}

// NewWorker wires a delivery worker.
func NewWorker(store storage.OutboxStore, deliverer Deliverer, cfg WorkerConfig, now func() time.Time, logf func(format string, args ...any)) (*Worker, error) {
	if store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if now == nil {
		now = time.Now
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Worker{
		store:     store,
		deliverer: deliverer,
		cfg:       cfg.normalized(),
		now:       now,
		logf:      logf,
	}, nil
}

// Run polls until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("worker is not configured")
	}
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.ProcessOnce(ctx); err != nil {
			w.logf("federation delivery pass: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce leases one batch of due activities and delivers them.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	now := w.now().UTC()
	leased, err := w.store.LeaseActivities(ctx, w.cfg.Consumer, w.cfg.BatchSize, now, w.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("lease activities: %w", err)
	}
	for _, activity := range leased {
		if err := w.handle(ctx, activity); err != nil {
			w.logf("deliver activity id=%s type=%s: %v", activity.ID, activity.ActivityType, err)
		}
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, activity storage.OutboxActivity) error {
	var deliverErr error
	for _, inbox := range activity.Inboxes {
		if err := w.deliverer.Deliver(ctx, inbox, activity.ActivityJSON); err != nil {
			deliverErr = fmt.Errorf("deliver to %s: %w", inbox, err)
			break
		}
	}

	now := w.now().UTC()
	if deliverErr == nil {
		if err := w.store.MarkActivitySucceeded(ctx, activity.ID, w.cfg.Consumer, now); err != nil {
			return fmt.Errorf("ack succeeded: %w", err)
		}
		return nil
	}

	// AttemptCount counts completed attempts; this failure is attempt n+1.
	if activity.AttemptCount+1 >= w.cfg.MaxAttempts {
		if err := w.store.MarkActivityDead(ctx, activity.ID, w.cfg.Consumer, deliverErr.Error(), now); err != nil {
			return fmt.Errorf("ack dead: %w", err)
		}
		return deliverErr
	}

	nextAttemptAt := now.Add(w.retryDelay(activity.AttemptCount))
	if err := w.store.MarkActivityRetry(ctx, activity.ID, w.cfg.Consumer, nextAttemptAt, deliverErr.Error()); err != nil {
		return fmt.Errorf("ack retry: %w", err)
	}
	return deliverErr
}

// retryDelay doubles the base backoff per completed attempt, capped at
// the configured ceiling.
func (w *Worker) retryDelay(attemptCount int) time.Duration {
	delay := w.cfg.RetryBackoff
	for i := 0; i < attemptCount; i++ {
		delay *= 2
		if delay >= w.cfg.RetryMaxDelay {
			return w.cfg.RetryMaxDelay
		}
	}
	if delay > w.cfg.RetryMaxDelay {
		return w.cfg.RetryMaxDelay
	}
	return delay
}
