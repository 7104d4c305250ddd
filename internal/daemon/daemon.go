package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"chorus/internal/action"
	"chorus/internal/config"
	"chorus/internal/engine"
	"chorus/internal/logging"
	"chorus/internal/notifications"
	"chorus/internal/store"
)

// Daemon coordinates the sync engine and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	engine  *engine.Engine
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LastCycle    *engine.CycleSummary
	Stats        store.Summary
	Health       []action.Health
	DBPath       string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, eng *engine.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || eng == nil {
		return nil, errors.New("daemon requires config, store, and engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		engine:   eng,
		logPath:  logging.DaemonLogPath(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the engine scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another chorus daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := d.engine.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("engine exited with error", logging.Error(err))
		}
	}(d.done)

	d.running.Store(true)
	d.logger.Info("chorus daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the scheduler and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("chorus daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// TriggerSync requests a manual cycle; false means one was already running.
func (d *Daemon) TriggerSync() bool {
	return d.engine.TriggerSync()
}

// RunPrune runs a deletion-enabled cycle synchronously, then optionally purges
// removed rows from the store.
func (d *Daemon) RunPrune(ctx context.Context, purge bool) (*engine.CycleSummary, int, error) {
	summary, err := d.engine.RunCycle(ctx, store.TriggerPrune, true)
	if err != nil {
		return summary, 0, err
	}
	purged := 0
	if purge {
		purged, err = d.store.PruneRemoved(ctx)
		if err != nil {
			return summary, 0, err
		}
	}
	return summary, purged, nil
}

// ListRecords returns records filtered by optional statuses.
func (d *Daemon) ListRecords(ctx context.Context, statuses []store.Status) ([]*store.Record, error) {
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.ListByStatus(ctx, statuses...)
}

// GetRecord returns one record by its remote item ID.
func (d *Daemon) GetRecord(ctx context.Context, itemID string) (*store.Record, error) {
	return d.store.GetByItemID(ctx, itemID)
}

// RetryFailed resets failed records for another attempt. An empty itemID
// resets every failed record.
func (d *Daemon) RetryFailed(ctx context.Context, itemID string) (int, error) {
	if strings.TrimSpace(itemID) == "" {
		return d.store.ResetAllFailed(ctx)
	}
	reset, err := d.store.ResetFailed(ctx, itemID)
	if err != nil {
		return 0, err
	}
	if !reset {
		return 0, nil
	}
	return 1, nil
}

// RecentCycles returns the latest cycle rows, newest first.
func (d *Daemon) RecentCycles(ctx context.Context, limit int) ([]*store.Cycle, error) {
	if limit <= 0 {
		limit = 10
	}
	return d.store.RecentCycles(ctx, limit)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) store.DatabaseHealth {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test event using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	_, last := d.engine.Status()
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("could not read store stats", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		LastCycle:    last,
		Stats:        stats,
		Health:       d.engine.HealthChecks(ctx),
		DBPath:       d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}
