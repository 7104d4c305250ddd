package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chorus/internal/action"
	"chorus/internal/logging"
	"chorus/internal/planner"
	"chorus/internal/services"
	"chorus/internal/store"
)

// processingStatus returns the in-flight status an action kind passes through,
// or "" for kinds that run without a processing marker.
func processingStatus(kind planner.Kind) store.Status {
	switch kind {
	case planner.KindDownload:
		return store.StatusDownloading
	case planner.KindTranscribe:
		return store.StatusTranscribing
	case planner.KindTag:
		return store.StatusTagging
	default:
		return ""
	}
}

// executePlan runs the plan's actions on the worker pool, submitting in plan
// order. It returns how many actions succeeded and how many failed; actions
// interrupted by cancellation count as neither.
func (e *Engine) executePlan(ctx context.Context, plan []planner.Action) (succeeded, failed int) {
	workers := e.cfg.Sync.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(plan) {
		workers = len(plan)
	}

	jobs := make(chan *planner.Action)
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for act := range jobs {
				if ctx.Err() != nil {
					continue
				}
				err := e.executeAction(ctx, act)
				mu.Lock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, context.Canceled):
				default:
					failed++
				}
				mu.Unlock()
			}
		}()
	}

	for i := range plan {
		jobs <- &plan[i]
	}
	close(jobs)
	wg.Wait()
	return succeeded, failed
}

// executeAction drives one action through its handler: persist the processing
// status, run with a heartbeat, then persist the advanced record in a single
// write. Cancellation leaves the processing status for recovery to roll back
// and burns no attempt.
func (e *Engine) executeAction(ctx context.Context, act *planner.Action) error {
	record := act.Record
	actionCtx := services.WithRequestID(
		services.WithAction(
			services.WithItemID(ctx, record.ItemID),
			string(act.Kind)),
		uuid.NewString())
	log := logging.WithContext(actionCtx, e.logger)

	handler, ok := e.handlers[act.Kind]
	if !ok {
		err := services.Wrap(services.ErrConfiguration, "engine", "execute",
			fmt.Sprintf("no handler registered for %s", act.Kind), nil)
		return e.persistFailure(actionCtx, act, err)
	}

	started := time.Now()
	log.Info("action started")

	if err := handler.Prepare(actionCtx, act); err != nil {
		log.Error("action preparation failed", logging.Error(err))
		return e.persistFailure(actionCtx, act, err)
	}

	if status := processingStatus(act.Kind); status != "" {
		record.Status = status
		if err := e.store.Upsert(actionCtx, record); err != nil {
			log.Error("could not persist processing status", logging.Error(err))
			return err
		}
	}

	execErr := e.executeWithHeartbeat(actionCtx, handler, act)
	if execErr != nil {
		// A cancelled context usually reaches us as the killed subprocess's
		// exit error rather than context.Canceled, so consult the context
		// itself: an interrupted action burns no attempt.
		if errors.Is(execErr, context.Canceled) || actionCtx.Err() != nil {
			log.Debug("action interrupted by shutdown")
			return context.Canceled
		}
		log.Error("action failed",
			logging.Duration("action_duration", time.Since(started)),
			logging.Error(execErr))
		return e.persistFailure(actionCtx, act, execErr)
	}

	record.FailedStage = ""
	record.LastError = ""
	record.AttemptCount = 0
	record.LastHeartbeat = nil
	if err := e.store.Upsert(actionCtx, record); err != nil {
		log.Error("could not persist action result", logging.Error(err))
		return err
	}

	log.Info("action completed",
		logging.String("status", string(record.Status)),
		logging.Duration("action_duration", time.Since(started)))

	if act.Kind == planner.KindRelocate && record.Status == store.StatusComplete {
		if err := e.notifier.NotifyTrackAdded(actionCtx, record.Uploader, record.Title); err != nil {
			log.Warn("track notification failed", logging.Error(err))
		}
	}
	return nil
}

// persistFailure records a failed attempt: FAILED(stage), the classified
// message, and the incremented attempt count in one write.
func (e *Engine) persistFailure(ctx context.Context, act *planner.Action, cause error) error {
	record := act.Record
	record.SetFailed(act.Kind.Stage(), services.Message(cause))
	if record.ID == 0 && record.ItemID == "" {
		return cause
	}
	if err := e.store.Upsert(ctx, record); err != nil {
		logging.WithContext(ctx, e.logger).Error("could not persist failure", logging.Error(err))
	}
	return cause
}

// executeWithHeartbeat runs the handler while a ticker refreshes the record's
// last_heartbeat so stalled actions stay visible to operators.
func (e *Engine) executeWithHeartbeat(ctx context.Context, handler action.Handler, act *planner.Action) error {
	interval := time.Duration(e.cfg.Sync.HeartbeatInterval) * time.Second
	if interval <= 0 || act.Record.ID == 0 {
		return handler.Execute(ctx, act)
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := e.store.UpdateHeartbeat(hbCtx, act.Record.ID, time.Now().UTC()); err != nil {
					if !errors.Is(err, context.Canceled) {
						logging.WithContext(hbCtx, e.logger).Warn("heartbeat update failed", logging.Error(err))
					}
				}
			}
		}
	}()

	err := handler.Execute(ctx, act)
	hbCancel()
	hbWG.Wait()
	return err
}
