package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler manages graceful shutdown of the application
type Handler struct {
	mu             sync.Mutex
	shutdownFuncs  []func(context.Context) error
	timeout        time.Duration
	signalChan     chan os.Signal
	shutdownChan   chan struct{}
	isShuttingDown bool
}

// New creates a new shutdown handler with the given grace window
func New(timeout time.Duration) *Handler {
	return &Handler{
		shutdownFuncs: make([]func(context.Context) error, 0),
		timeout:       timeout,
		signalChan:    make(chan os.Signal, 1),
		shutdownChan:  make(chan struct{}),
	}
}

// Register adds a shutdown function to be called during graceful shutdown.
// Functions are called in reverse order of registration (LIFO).
func (h *Handler) Register(fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdownFuncs = append(h.shutdownFuncs, fn)
}

// Wait blocks until SIGINT or SIGTERM is received, then runs the shutdown
func (h *Handler) Wait() {
	signal.Notify(h.signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-h.signalChan
	_ = h.Shutdown()
}

// Shutdown executes all registered shutdown functions with the grace window
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.isShuttingDown {
		h.mu.Unlock()
		return nil
	}
	h.isShuttingDown = true
	funcs := make([]func(context.Context) error, len(h.shutdownFuncs))
	copy(funcs, h.shutdownFuncs)
	h.mu.Unlock()

	close(h.shutdownChan)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	errChan := make(chan error, len(funcs))
	done := make(chan struct{})

	go func() {
		// Reverse order: last registered shuts down first
		for i := len(funcs) - 1; i >= 0; i-- {
			if err := funcs[i](ctx); err != nil {
				errChan <- err
			}
		}
		close(done)
	}()

	select {
	case <-done:
		close(errChan)
		for err := range errChan {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShuttingDown returns true if shutdown has been initiated
func (h *Handler) IsShuttingDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isShuttingDown
}

// ShutdownChan returns a channel that is closed when shutdown is initiated
func (h *Handler) ShutdownChan() <-chan struct{} {
	return h.shutdownChan
}
