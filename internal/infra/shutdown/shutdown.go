// Package shutdown runs close hooks on exit or on SIGINT/SIGTERM.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yndnr/tokpass/internal/telemetry/logger"
)

// DefaultTimeout bounds the whole hook run.
const DefaultTimeout = 5 * time.Second

// Hook releases one resource.
type Hook func(context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Handler collects hooks and runs them once, newest first.
type Handler struct {
	timeout time.Duration
	logger  logger.Logger

	mu    sync.Mutex
	hooks []namedHook
	once  sync.Once
	err   error
	done  chan struct{}
}

// NewHandler creates a handler whose Run is bounded by timeout.
func NewHandler(timeout time.Duration, l logger.Logger) *Handler {
	if l == nil {
		l = logger.Discard()
	}
	return &Handler{
		timeout: timeout,
		logger:  l,
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a hook. Hooks run in reverse order of registration,
// so resources opened later are closed first.
func (h *Handler) OnShutdown(name string, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: hook})
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Wait blocks until ctx is done, then runs the hooks.
func (h *Handler) Wait(ctx context.Context) error {
	<-ctx.Done()
	return h.Run()
}

// Run executes every hook once and returns their joined errors. Later calls
// return the first result.
func (h *Handler) Run() error {
	h.once.Do(func() {
		defer close(h.done)

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		h.mu.Lock()
		hooks := make([]namedHook, len(h.hooks))
		copy(hooks, h.hooks)
		h.mu.Unlock()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			hk := hooks[i]
			if err := hk.fn(ctx); err != nil {
				h.logger.Warn("shutdown hook failed", "hook", hk.name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
				continue
			}
			h.logger.Debug("shutdown hook done", "hook", hk.name)
		}
		h.err = errors.Join(errs...)
	})
	return h.err
}

// Done returns a channel that closes when Run has finished.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
