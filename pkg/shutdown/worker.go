package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PeriodicWorker runs a function on a fixed interval until stopped. The first
// run happens immediately on Start.
type PeriodicWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeriodicWorker creates a new periodic worker
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &PeriodicWorker{
		name:     name,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the worker loop. The work function must respect ctx.Done().
func (w *PeriodicWorker) Start(work func(ctx context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.logger.Info("worker started",
			zap.String("worker", w.name),
			zap.Duration("interval", w.interval))

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		work(w.ctx)
		for {
			select {
			case <-w.ctx.Done():
				w.logger.Info("worker stopped", zap.String("worker", w.name))
				return
			case <-ticker.C:
				work(w.ctx)
			}
		}
	}()
}

// Shutdown cancels the worker and waits for the current run to finish
func (w *PeriodicWorker) Shutdown(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("worker shutdown timed out", zap.String("worker", w.name))
		return ctx.Err()
	}
}
