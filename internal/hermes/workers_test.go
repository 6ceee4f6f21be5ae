package hermes

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerPool_SlowHandlerDoesNotBlockOthers(t *testing.T) {
	pool := newWorkerPool(2, discardLogger())

	release := make(chan struct{})
	fastDone := make(chan string, 1)
	handler := func(subject string, _ []byte) {
		if subject == "slow" {
			<-release
			return
		}
		fastDone <- subject
	}

	pool.dispatch("slow", nil, handler)
	pool.dispatch("fast", nil, handler)

	select {
	case got := <-fastDone:
		if got != "fast" {
			t.Errorf("expected fast message, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fast message was held behind the slow handler")
	}

	close(release)
	pool.wait()
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	const size = 3
	pool := newWorkerPool(size, discardLogger())

	var running, peak, handled atomic.Int32
	gate := make(chan struct{})
	handler := func(string, []byte) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-gate
		running.Add(-1)
		handled.Add(1)
	}

	var dispatched sync.WaitGroup
	dispatched.Add(1)
	go func() {
		defer dispatched.Done()
		for i := 0; i < 10; i++ {
			pool.dispatch("work", nil, handler)
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for running.Load() < size && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := running.Load(); got != size {
		t.Fatalf("expected %d handlers running, got %d", size, got)
	}

	close(gate)
	dispatched.Wait()
	pool.wait()

	if got := peak.Load(); got > size {
		t.Errorf("expected at most %d concurrent handlers, saw %d", size, got)
	}
	if got := handled.Load(); got != 10 {
		t.Errorf("expected 10 handled messages, got %d", got)
	}
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool := newWorkerPool(1, discardLogger())

	var handled atomic.Int32
	pool.dispatch("boom", nil, func(string, []byte) { panic("bad payload") })
	pool.dispatch("ok", nil, func(string, []byte) { handled.Add(1) })
	pool.wait()

	if handled.Load() != 1 {
		t.Error("expected the pool to keep working after a panic")
	}
}

func TestNewWorkerPool_DefaultSize(t *testing.T) {
	if got := newWorkerPool(0, discardLogger()).size; got != defaultWorkers {
		t.Errorf("expected default size %d, got %d", defaultWorkers, got)
	}
}
