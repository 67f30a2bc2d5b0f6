// Package lifecycle coordinates ordered shutdown of the worker's components.
// Components register a closer as they start; on SIGTERM/SIGINT the closers
// run in reverse registration order, so consumers stop before the stores
// they write to.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Closer shuts one component down. It must respect ctx's deadline.
type Closer func(ctx context.Context) error

type registration struct {
	name   string
	closer Closer
}

// Manager holds the shutdown stack and the overall deadline shared by all
// closers in one shutdown pass.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	stack []registration
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{timeout: timeout, logger: logger}
}

// Register pushes a named closer onto the shutdown stack.
func (m *Manager) Register(name string, closer Closer) {
	if closer == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack, registration{name: name, closer: closer})
}

// Listen cancels the given function when a termination signal arrives.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}

// Shutdown pops and runs every closer, newest first. All closers share one
// deadline; a failing closer is logged and does not stop the rest. The
// joined error carries every failure for the caller's exit log.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	stack := m.stack
	m.stack = nil
	m.mu.Unlock()

	started := time.Now()
	var failures error
	for i := len(stack) - 1; i >= 0; i-- {
		reg := stack[i]
		if err := reg.closer(ctx); err != nil {
			m.logger.Error("component shutdown failed",
				zap.String("component", reg.name),
				zap.Error(err))
			failures = errors.Join(failures, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", reg.name))
	}

	m.logger.Info("shutdown complete",
		zap.Int("components", len(stack)),
		zap.Duration("took", time.Since(started)))
	return failures
}
