// Package engine runs the sync orchestrator: it schedules reconciliation
// cycles, fetches playlist snapshots, and executes planned actions on a
// bounded worker pool with heartbeat visibility.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"chorus/internal/action"
	"chorus/internal/config"
	"chorus/internal/logging"
	"chorus/internal/notifications"
	"chorus/internal/planner"
	"chorus/internal/playlist"
	"chorus/internal/store"
)

// SnapshotFetcher retrieves the current remote state of one playlist.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, playlistID string) (playlist.Snapshot, error)
}

// ErrCycleRunning reports a sync request that arrived while a cycle was
// already in progress. Triggers are skipped, never queued.
var ErrCycleRunning = errors.New("sync cycle already running")

type triggerRequest struct {
	trigger string
	prune   bool
}

// Engine coordinates sync cycles over the state store.
type Engine struct {
	cfg      *config.Config
	store    *store.Store
	fetcher  SnapshotFetcher
	handlers map[planner.Kind]action.Handler
	notifier notifications.Service
	logger   *slog.Logger

	interval time.Duration
	triggers chan triggerRequest

	cycleMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	lastCycle *CycleSummary
}

// New constructs an engine. The handler map must cover every action kind the
// planner can emit.
func New(cfg *config.Config, st *store.Store, fetcher SnapshotFetcher, handlers map[planner.Kind]action.Handler, notifier notifications.Service, logger *slog.Logger) *Engine {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	interval := time.Duration(cfg.Sync.Interval) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	return &Engine{
		cfg:      cfg,
		store:    st,
		fetcher:  fetcher,
		handlers: handlers,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "engine"),
		interval: interval,
		triggers: make(chan triggerRequest, 1),
	}
}

// Run drives the cycle schedule until the context is cancelled: one startup
// cycle, then periodic cycles on the configured interval, with manual
// triggers interleaved.
func (e *Engine) Run(ctx context.Context) error {
	e.setRunning(true)
	defer e.setRunning(false)

	e.runScheduled(ctx, store.TriggerStartup, false)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.runScheduled(ctx, store.TriggerPeriodic, false)
		case req := <-e.triggers:
			e.runScheduled(ctx, req.trigger, req.prune)
		}
	}
}

// TriggerSync requests a manual cycle. It never blocks: when a cycle is
// already running or queued the request is dropped and false is returned.
func (e *Engine) TriggerSync() bool {
	select {
	case e.triggers <- triggerRequest{trigger: store.TriggerManual}:
		return true
	default:
		e.logger.Info("sync already in progress, trigger skipped")
		return false
	}
}

// RunCycle executes one cycle synchronously on behalf of an operator request.
// It returns ErrCycleRunning when a scheduled cycle holds the lock.
func (e *Engine) RunCycle(ctx context.Context, trigger string, prune bool) (*CycleSummary, error) {
	if !e.cycleMu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer e.cycleMu.Unlock()
	return e.runCycle(ctx, trigger, prune)
}

func (e *Engine) runScheduled(ctx context.Context, trigger string, prune bool) {
	if ctx.Err() != nil {
		return
	}
	if !e.cycleMu.TryLock() {
		e.logger.Info("cycle already running, skipping",
			logging.String("trigger", trigger))
		return
	}
	defer e.cycleMu.Unlock()

	if _, err := e.runCycle(ctx, trigger, prune); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Error("sync cycle failed",
			logging.String("trigger", trigger),
			logging.Error(err))
	}
}

func (e *Engine) setRunning(v bool) {
	e.mu.Lock()
	e.running = v
	e.mu.Unlock()
}

func (e *Engine) setLastCycle(summary *CycleSummary) {
	e.mu.Lock()
	e.lastCycle = summary
	e.mu.Unlock()
}

// Status reports the scheduler state and the most recent cycle summary.
func (e *Engine) Status() (running bool, last *CycleSummary) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running, e.lastCycle
}

// HealthChecks runs every registered handler's health check.
func (e *Engine) HealthChecks(ctx context.Context) []action.Health {
	kinds := []planner.Kind{
		planner.KindMembership,
		planner.KindRelocate,
		planner.KindTag,
		planner.KindTranscribe,
		planner.KindLink,
		planner.KindDownload,
		planner.KindDelete,
	}
	checks := make([]action.Health, 0, len(kinds))
	for _, kind := range kinds {
		handler, ok := e.handlers[kind]
		if !ok {
			continue
		}
		checks = append(checks, handler.HealthCheck(ctx))
	}
	return checks
}

// playlistIDs merges the inline playlist list with the optional sources file,
// preserving order and dropping duplicates.
func (e *Engine) playlistIDs() ([]string, error) {
	ids := e.cfg.PlaylistIDs()
	if e.cfg.Sync.SourcesFile == "" {
		return ids, nil
	}
	fromFile, err := playlist.ParseSources(e.cfg.Sync.SourcesFile)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, id := range fromFile {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
