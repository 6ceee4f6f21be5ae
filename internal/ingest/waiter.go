package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/courier/internal/remote"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 20
)

// WaiterConfig holds the poll interval and attempt budget.
type WaiterConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Waiter drives a freshly uploaded handle from Processing to a terminal state
// by polling the remote store.
type Waiter struct {
	store       remote.Store
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger

	// after is swapped in tests to avoid real sleeps.
	after func(time.Duration) <-chan time.Time
}

func NewWaiter(store remote.Store, cfg WaiterConfig, logger *slog.Logger) *Waiter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultPollAttempts
	}
	return &Waiter{
		store:       store,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
		after:       time.After,
	}
}

// activation is the per-handle state machine.
type activation struct {
	handle   remote.Handle
	state    remote.State
	attempts int
	err      error
}

// transition applies one poll outcome. It never leaves a terminal state.
func (a *activation) transition(polled remote.Handle, pollErr error) {
	if a.state.Terminal() {
		return
	}
	if pollErr != nil {
		if errors.Is(pollErr, remote.ErrNotFound) {
			a.state = remote.StateFailed
			a.err = fmt.Errorf("%w: %s: %v", ErrActivationFailed, a.handle.ID, pollErr)
		}
		return
	}
	switch polled.State {
	case remote.StateActive:
		a.merge(polled)
		a.state = remote.StateActive
	case remote.StateFailed:
		a.state = remote.StateFailed
		a.err = fmt.Errorf("%w: %s reported failed state", ErrActivationFailed, a.handle.ID)
	}
}

func (a *activation) timeout(reason string) {
	if a.state.Terminal() {
		return
	}
	a.state = remote.StateTimedOut
	a.err = fmt.Errorf("%w: %s still processing after %d attempts: %s", ErrActivationTimedOut, a.handle.ID, a.attempts, reason)
}

func (a *activation) merge(polled remote.Handle) {
	if polled.URI != "" {
		a.handle.URI = polled.URI
	}
	if polled.MIMEType != "" {
		a.handle.MIMEType = polled.MIMEType
	}
}

// AwaitActive polls until the handle is Active, Failed, the attempt budget is
// spent, or ctx is done. Only an Active handle is returned without error.
func (w *Waiter) AwaitActive(ctx context.Context, h remote.Handle) (remote.Handle, error) {
	a := &activation{handle: h, state: remote.StateProcessing}

	for !a.state.Terminal() {
		if err := ctx.Err(); err != nil {
			a.timeout(err.Error())
			break
		}

		a.attempts++
		polled, err := w.store.Status(ctx, h.ID)
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			if ctx.Err() != nil {
				a.timeout(ctx.Err().Error())
				break
			}
			w.logger.Warn("transient error polling file state",
				"file_id", h.ID,
				"attempt", a.attempts,
				"error", err,
			)
		}
		a.transition(polled, err)
		if a.state.Terminal() {
			break
		}

		if a.attempts >= w.maxAttempts {
			a.timeout("poll budget exhausted")
			break
		}

		select {
		case <-ctx.Done():
			a.timeout(ctx.Err().Error())
		case <-w.after(w.interval):
		}
	}

	a.handle.State = a.state
	if a.state != remote.StateActive {
		return a.handle, a.err
	}
	w.logger.Debug("file active", "file_id", h.ID, "attempts", a.attempts)
	return a.handle, nil
}
