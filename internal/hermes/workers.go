package hermes

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// workerPool runs handlers off the delivery goroutine with bounded
// concurrency.
type workerPool struct {
	size   int
	group  errgroup.Group
	logger *slog.Logger
}

func newWorkerPool(size int, logger *slog.Logger) *workerPool {
	if size <= 0 {
		size = defaultWorkers
	}
	p := &workerPool{size: size, logger: logger}
	p.group.SetLimit(size)
	return p
}

// dispatch blocks until a worker is free, then runs handler on it.
func (p *workerPool) dispatch(subject string, data []byte, handler Handler) {
	p.group.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("handler panicked", "subject", subject, "panic", fmt.Sprint(r))
			}
		}()
		handler(subject, data)
		return nil
	})
}

func (p *workerPool) wait() {
	_ = p.group.Wait()
}
