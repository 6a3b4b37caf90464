package handshake

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Worker is the background context shared by every module's exchange
// channel. It starts with the first Acquire; the Release that drops the
// last channel cancels it and blocks until every goroutine started with Go
// has returned.
type Worker struct {
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	channels int
	log      *zap.Logger
}

func NewWorker(log *zap.Logger) *Worker {
	return &Worker{log: log}
}

// Acquire registers a channel and returns the worker context.
func (w *Worker) Acquire() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.channels == 0 {
		w.ctx, w.cancel = context.WithCancel(context.Background())
		w.log.Info("handshake worker started")
	}
	w.channels++
	return w.ctx
}

// Go runs fn on the worker. It must be called between Acquire and the
// matching Release.
func (w *Worker) Go(fn func(ctx context.Context)) {
	w.mu.Lock()
	ctx := w.ctx
	w.wg.Add(1)
	w.mu.Unlock()
	go func() {
		defer w.wg.Done()
		fn(ctx)
	}()
}

// Release drops a channel. Dropping the last one stops the worker and
// waits for its goroutines.
func (w *Worker) Release() {
	w.mu.Lock()
	if w.channels == 0 {
		w.mu.Unlock()
		return
	}
	w.channels--
	if w.channels > 0 {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.log.Info("handshake worker stopped")
}

// Channels returns the number of registered channels.
func (w *Worker) Channels() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.channels
}

// Running reports whether the worker context is live.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.channels > 0
}
