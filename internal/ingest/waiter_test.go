package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/courier/internal/remote"
)

func newTestWaiter(store remote.Store, attempts int) *Waiter {
	w := NewWaiter(store, WaiterConfig{Interval: time.Second, MaxAttempts: attempts}, discardLogger())
	w.after = instantAfter
	return w
}

func pending(id string) remote.Handle {
	return remote.Handle{ID: id, URI: remote.URIPrefix + id, MIMEType: "video/mp4", State: remote.StateProcessing}
}

func TestAwaitActive_BecomesActive(t *testing.T) {
	store := newFakeStore()
	store.script("files/v",
		statusReply{state: remote.StateProcessing},
		statusReply{state: remote.StateProcessing},
		statusReply{state: remote.StateActive, mime: "video/webm"},
	)
	w := newTestWaiter(store, 20)

	h, err := w.AwaitActive(context.Background(), pending("files/v"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.State != remote.StateActive {
		t.Errorf("expected active, got %s", h.State)
	}
	if h.MIMEType != "video/webm" {
		t.Errorf("expected mime from status reply, got %q", h.MIMEType)
	}
	if calls := store.statusCalls["files/v"]; calls != 3 {
		t.Errorf("expected 3 polls, got %d", calls)
	}
}

func TestAwaitActive_Failed(t *testing.T) {
	store := newFakeStore()
	store.script("files/v",
		statusReply{state: remote.StateProcessing},
		statusReply{state: remote.StateFailed},
	)
	w := newTestWaiter(store, 20)

	h, err := w.AwaitActive(context.Background(), pending("files/v"))
	if !errors.Is(err, ErrActivationFailed) {
		t.Fatalf("expected activation failed, got %v", err)
	}
	if h.State != remote.StateFailed {
		t.Errorf("expected failed state, got %s", h.State)
	}
	if calls := store.statusCalls["files/v"]; calls != 2 {
		t.Errorf("expected polling to stop after failure, got %d polls", calls)
	}
}

func TestAwaitActive_NotFoundEscalatesImmediately(t *testing.T) {
	store := newFakeStore()
	store.script("files/v", statusReply{err: fmt.Errorf("get file: %w", remote.ErrNotFound)})
	w := newTestWaiter(store, 20)

	_, err := w.AwaitActive(context.Background(), pending("files/v"))
	if !errors.Is(err, ErrActivationFailed) {
		t.Fatalf("expected activation failed, got %v", err)
	}
	if calls := store.statusCalls["files/v"]; calls != 1 {
		t.Errorf("expected a single poll, got %d", calls)
	}
}

func TestAwaitActive_TransientErrorsShareBudget(t *testing.T) {
	store := newFakeStore()
	store.script("files/v",
		statusReply{err: errors.New("connection reset")},
		statusReply{err: errors.New("connection reset")},
		statusReply{state: remote.StateActive},
	)
	w := newTestWaiter(store, 5)

	if _, err := w.AwaitActive(context.Background(), pending("files/v")); err != nil {
		t.Fatalf("expected recovery after transient errors, got %v", err)
	}
	if calls := store.statusCalls["files/v"]; calls != 3 {
		t.Errorf("expected 3 polls, got %d", calls)
	}
}

func TestAwaitActive_TransientErrorsExhaustBudget(t *testing.T) {
	store := newFakeStore()
	store.script("files/v", statusReply{err: errors.New("503 unavailable")})
	w := newTestWaiter(store, 4)

	_, err := w.AwaitActive(context.Background(), pending("files/v"))
	if !errors.Is(err, ErrActivationTimedOut) {
		t.Fatalf("expected activation timed out, got %v", err)
	}
	if calls := store.statusCalls["files/v"]; calls != 4 {
		t.Errorf("expected 4 polls, got %d", calls)
	}
}

func TestAwaitActive_BudgetExhausted(t *testing.T) {
	store := newFakeStore()
	store.script("files/v", statusReply{state: remote.StateProcessing})
	w := newTestWaiter(store, 5)

	h, err := w.AwaitActive(context.Background(), pending("files/v"))
	if !errors.Is(err, ErrActivationTimedOut) {
		t.Fatalf("expected activation timed out, got %v", err)
	}
	if h.State != remote.StateTimedOut {
		t.Errorf("expected timed_out state, got %s", h.State)
	}
	if calls := store.statusCalls["files/v"]; calls != 5 {
		t.Errorf("expected exactly 5 polls, got %d", calls)
	}
}

func TestAwaitActive_DeadlineAbortsWait(t *testing.T) {
	store := newFakeStore()
	store.script("files/v", statusReply{state: remote.StateProcessing})
	w := NewWaiter(store, WaiterConfig{Interval: time.Hour, MaxAttempts: 20}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	h, err := w.AwaitActive(ctx, pending("files/v"))
	if !errors.Is(err, ErrActivationTimedOut) {
		t.Fatalf("expected activation timed out, got %v", err)
	}
	if h.State != remote.StateTimedOut {
		t.Errorf("expected timed_out state, got %s", h.State)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("deadline did not abort the poll interval")
	}
}

func TestAwaitActive_CancelledBeforeFirstPoll(t *testing.T) {
	store := newFakeStore()
	w := newTestWaiter(store, 20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.AwaitActive(ctx, pending("files/v"))
	if !errors.Is(err, ErrActivationTimedOut) {
		t.Fatalf("expected activation timed out, got %v", err)
	}
	if store.totalStatusCalls() != 0 {
		t.Errorf("expected no polls on a cancelled context, got %d", store.totalStatusCalls())
	}
}

func TestNewWaiter_Defaults(t *testing.T) {
	w := NewWaiter(newFakeStore(), WaiterConfig{}, discardLogger())
	if w.maxAttempts != DefaultPollAttempts {
		t.Errorf("expected default attempts %d, got %d", DefaultPollAttempts, w.maxAttempts)
	}
	if w.interval != DefaultPollInterval {
		t.Errorf("expected default interval %s, got %s", DefaultPollInterval, w.interval)
	}

	w = NewWaiter(newFakeStore(), WaiterConfig{Interval: -time.Second}, discardLogger())
	if w.interval != DefaultPollInterval {
		t.Errorf("expected negative interval replaced by %s, got %s", DefaultPollInterval, w.interval)
	}
}

func TestAwaitActive_ZeroIntervalStillWaitsBetweenPolls(t *testing.T) {
	store := newFakeStore()
	store.script("files/v", statusReply{state: remote.StateProcessing})
	w := NewWaiter(store, WaiterConfig{MaxAttempts: 5}, discardLogger())

	var waits []time.Duration
	w.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		return instantAfter(d)
	}

	if _, err := w.AwaitActive(context.Background(), pending("files/v")); !errors.Is(err, ErrActivationTimedOut) {
		t.Fatalf("expected activation timed out, got %v", err)
	}
	if len(waits) != 4 {
		t.Fatalf("expected 4 waits between 5 polls, got %d", len(waits))
	}
	for i, d := range waits {
		if d != DefaultPollInterval {
			t.Errorf("wait %d lasted %s, want %s", i, d, DefaultPollInterval)
		}
	}
}

func TestActivation_TerminalStatesAreFinal(t *testing.T) {
	a := &activation{handle: pending("files/v"), state: remote.StateActive}
	a.transition(remote.Handle{State: remote.StateFailed}, nil)
	if a.state != remote.StateActive {
		t.Errorf("active handle changed state to %s", a.state)
	}
	a.timeout("late")
	if a.state != remote.StateActive || a.err != nil {
		t.Errorf("timeout must not override a terminal state, got %s / %v", a.state, a.err)
	}
}
