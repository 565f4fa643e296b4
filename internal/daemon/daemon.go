package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DaemonFunc represents the work a daemon does.
type DaemonFunc func(ctx context.Context, name string) error

// DaemonManager supervises background daemons and restarts any that crash.
type DaemonManager struct {
	logger  *slog.Logger
	daemons map[string]DaemonFunc
	wg      sync.WaitGroup
}

func NewDaemonManager(logger *slog.Logger) *DaemonManager {
	return &DaemonManager{
		logger:  logger,
		daemons: make(map[string]DaemonFunc),
	}
}

// Add registers a daemon by name.
func (m *DaemonManager) Add(name string, fn DaemonFunc) {
	m.daemons[name] = fn
}

// Start runs all registered daemons.
func (m *DaemonManager) Start(ctx context.Context) {
	for name, fn := range m.daemons {
		m.wg.Add(1)
		go m.runDaemon(ctx, name, fn)
	}
}

// Wait blocks until all daemons have stopped.
func (m *DaemonManager) Wait() {
	m.wg.Wait()
}

func (m *DaemonManager) runDaemon(ctx context.Context, name string, fn DaemonFunc) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Daemon received shutdown signal", "daemon", name)
			return
		default:
			if err := fn(ctx, name); err != nil {
				m.logger.Error("Daemon crashed, restarting in 2s", "daemon", name, "error", err)
				time.Sleep(2 * time.Second)
				continue
			}
			m.logger.Info("Daemon exited cleanly", "daemon", name)
			return
		}
	}
}
