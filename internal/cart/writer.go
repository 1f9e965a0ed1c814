package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const saveTimeout = 2 * time.Second

var meter = otel.Meter("pos/cart")

// writer persists the most recent cart encoding in the background. Only the
// latest submitted payload is kept; older pending ones are superseded.
type writer struct {
	storage  Storage
	logger   *slog.Logger
	failures metric.Int64Counter

	mu      sync.Mutex
	pending []byte
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newWriter(storage Storage, logger *slog.Logger) *writer {
	failures, err := meter.Int64Counter("pos.cart.persist.failures",
		metric.WithDescription("Cart writes to local storage that failed"),
	)
	if err != nil {
		logger.Warn("failed to create persist failure counter", "error", err)
	}

	return &writer{
		storage:  storage,
		logger:   logger,
		failures: failures,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (w *writer) submit(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.pending = data
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.done)
	for range w.wake {
		w.flush()
	}
	w.flush()
}

func (w *writer) flush() {
	w.mu.Lock()
	data := w.pending
	w.pending = nil
	w.mu.Unlock()

	if data == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := w.storage.Save(ctx, data); err != nil {
		w.logger.Error("failed to persist cart", "error", err)
		if w.failures != nil {
			w.failures.Add(ctx, 1)
		}
	}
}

func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.wake)
	w.mu.Unlock()

	<-w.done
}
