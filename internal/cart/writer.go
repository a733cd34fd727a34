package cart

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// writer saves encoded carts off the caller's goroutine. Only the newest
// pending snapshot is kept; older ones are overwritten before they are saved.
// After the first failed save it stops writing and the cart lives in memory
// for the rest of the session.
type writer struct {
	storage Storage
	timeout time.Duration
	log     *slog.Logger

	mu         sync.Mutex
	pending    []byte
	pendingVer uint64

	kick      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	broken    atomic.Bool
}

func newWriter(st Storage, timeout time.Duration, log *slog.Logger) *writer {
	w := &writer{
		storage: st,
		timeout: timeout,
		log:     log,
		kick:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) schedule(version uint64, data []byte) {
	if w.broken.Load() {
		return
	}

	w.mu.Lock()
	if version > w.pendingVer {
		w.pending = data
		w.pendingVer = version
	}
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.kick:
			w.flush()
		case <-w.quit:
			w.flush()
			return
		}
	}
}

func (w *writer) flush() {
	w.mu.Lock()
	data := w.pending
	w.pending = nil
	w.mu.Unlock()

	if data == nil || w.broken.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.storage.Save(ctx, data); err != nil {
		w.broken.Store(true)
		w.log.Warn("cart save failed, persistence disabled for this session", "error", err)
	}
}

func (w *writer) failed() bool {
	return w.broken.Load()
}

func (w *writer) close() {
	w.closeOnce.Do(func() { close(w.quit) })
	<-w.done
}
