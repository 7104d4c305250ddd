package engine

import (
	"context"
	"time"

	"chorus/internal/logging"
	"chorus/internal/planner"
	"chorus/internal/playlist"
	"chorus/internal/services"
	"chorus/internal/store"
)

// CycleSummary captures the outcome of one reconciliation cycle.
type CycleSummary struct {
	CycleID   int64
	Trigger   string
	Outcome   store.Outcome
	Playlists int
	Skipped   int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// runCycle performs one full reconciliation pass. The caller holds cycleMu.
func (e *Engine) runCycle(ctx context.Context, trigger string, prune bool) (*CycleSummary, error) {
	cycle, err := e.store.BeginCycle(ctx, trigger)
	if err != nil {
		return nil, err
	}

	cycleCtx := services.WithCycleID(ctx, cycle.ID)
	log := logging.WithContext(cycleCtx, e.logger)
	summary := &CycleSummary{CycleID: cycle.ID, Trigger: trigger}
	started := time.Now()

	defer func() {
		summary.Duration = time.Since(started)
		e.setLastCycle(summary)
	}()

	ids, err := e.playlistIDs()
	if err != nil {
		return summary, e.abortCycle(cycleCtx, cycle.ID, summary, "resolve playlist sources", err)
	}
	log.Info("sync cycle started",
		logging.String("trigger", trigger),
		logging.Int("playlists", len(ids)))
	if err := e.notifier.NotifySyncStarted(cycleCtx, trigger, len(ids)); err != nil {
		log.Warn("sync start notification failed", logging.Error(err))
	}

	snapshots := make([]playlist.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := e.fetcher.FetchSnapshot(services.WithPlaylistID(cycleCtx, id), id)
		if err != nil {
			if services.IsFatal(err) {
				return summary, e.abortCycle(cycleCtx, cycle.ID, summary, "snapshot fetch", err)
			}
			// A failed fetch skips the playlist; it never implies removal.
			summary.Skipped++
			log.Warn("snapshot fetch failed, playlist skipped this cycle",
				logging.String(logging.FieldPlaylistID, id),
				logging.Error(err))
			continue
		}
		snapshots = append(snapshots, snap)
		if err := e.store.UpsertPlaylist(cycleCtx, &store.Playlist{
			PlaylistID: snap.PlaylistID,
			Title:      snap.Title,
			CoverURL:   snap.CoverURL,
			ItemCount:  len(snap.Items),
		}); err != nil {
			return summary, e.abortCycle(cycleCtx, cycle.ID, summary, "persist playlist", err)
		}
	}
	summary.Playlists = len(snapshots)

	opts := planner.Options{
		TranscriptionEnabled: e.cfg.Transcription.Enabled,
		MaxAttempts:          e.cfg.Sync.MaxAttempts,
		RemoveFiles:          e.cfg.Sync.RemoveFiles,
		PruneRequested:       prune,
		CycleStartedAt:       cycle.StartedAt,
	}

	// Items travel as far as they can within one cycle: replan after every
	// pass and stop once the plan is empty or nothing moved forward.
	for {
		if err := ctx.Err(); err != nil {
			return summary, e.abortCycle(cycleCtx, cycle.ID, summary, "cycle interrupted", err)
		}
		records, err := e.store.List(cycleCtx)
		if err != nil {
			return summary, e.abortCycle(cycleCtx, cycle.ID, summary, "list records", err)
		}
		plan := planner.Build(snapshots, records, opts)
		if len(plan) == 0 {
			break
		}
		log.Info("executing plan", logging.Int("actions", len(plan)))
		succeeded, failed := e.executePlan(cycleCtx, plan)
		summary.Succeeded += succeeded
		summary.Failed += failed
		if err := ctx.Err(); err != nil {
			return summary, e.abortCycle(cycleCtx, cycle.ID, summary, "cycle interrupted", err)
		}
		if succeeded == 0 {
			break
		}
	}

	summary.Outcome = store.OutcomeCompleted
	if err := e.store.EndCycle(cycleCtx, cycle.ID, store.OutcomeCompleted, ""); err != nil {
		return summary, err
	}
	log.Info("sync cycle completed",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", time.Since(started)))
	if err := e.notifier.NotifySyncCompleted(cycleCtx, summary.Succeeded, summary.Failed, time.Since(started)); err != nil {
		log.Warn("sync completion notification failed", logging.Error(err))
	}
	return summary, nil
}

// abortCycle closes the cycle as crashed and notifies the operator. The
// original error is returned for the caller to surface.
func (e *Engine) abortCycle(ctx context.Context, cycleID int64, summary *CycleSummary, operation string, cause error) error {
	summary.Outcome = store.OutcomeCrashed
	log := logging.WithContext(ctx, e.logger)
	log.Error("sync cycle aborted",
		logging.String("operation", operation),
		logging.Error(cause))

	// Closing the cycle must not hang on a cancelled context.
	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.EndCycle(endCtx, cycleID, store.OutcomeCrashed, services.Message(cause)); err != nil {
		log.Error("could not close crashed cycle", logging.Error(err))
	}
	if err := e.notifier.NotifyError(endCtx, cause, operation); err != nil {
		log.Warn("error notification failed", logging.Error(err))
	}
	return cause
}
