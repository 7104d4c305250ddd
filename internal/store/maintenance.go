package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"chorus/internal/services"
)

// Recover repairs state left behind by a crash or hard shutdown: unclosed
// cycles are marked CRASHED and records stuck in a processing status are
// rolled back to their prior durable status. No attempt is charged for the
// interrupted action.
func (s *Store) Recover(ctx context.Context) (RecoveryReport, error) {
	ctx = ensureContext(ctx)
	var report RecoveryReport

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		"UPDATE sync_cycles SET outcome = ?, error = ?, finished_at = ? WHERE finished_at IS NULL",
		string(OutcomeCrashed), "interrupted by crash or shutdown", now)
	if err != nil {
		return report, services.Wrap(services.ErrStore, "store", "recover", "close crashed cycles", err)
	}
	if affected, err := res.RowsAffected(); err == nil {
		report.CrashedCycles = int(affected)
	}

	stuck, err := s.ListByStatus(ctx, StatusDownloading, StatusTranscribing, StatusTagging)
	if err != nil {
		return report, err
	}
	for _, record := range stuck {
		record.Status = record.DurableStatus()
		record.LastHeartbeat = nil
		if err := s.Upsert(ctx, record); err != nil {
			return report, err
		}
		report.RolledBackRecords++
	}
	return report, nil
}

// ResetFailed returns a failed record to the durable status implied by its
// failed stage, clearing the error and attempt counter so the next cycle
// plans it again. Returns false when the record is absent or not failed.
func (s *Store) ResetFailed(ctx context.Context, itemID string) (bool, error) {
	record, err := s.GetByItemID(ctx, itemID)
	if err != nil {
		return false, err
	}
	if record == nil || record.Status != StatusFailed {
		return false, nil
	}
	record.Status = record.DurableStatus()
	record.FailedStage = ""
	record.LastError = ""
	record.AttemptCount = 0
	record.LastHeartbeat = nil
	if err := s.Upsert(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

// ResetAllFailed resets every failed record, returning the count reset.
func (s *Store) ResetAllFailed(ctx context.Context) (int, error) {
	failed, err := s.ListByStatus(ctx, StatusFailed)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, record := range failed {
		record.Status = record.DurableStatus()
		record.FailedStage = ""
		record.LastError = ""
		record.AttemptCount = 0
		record.LastHeartbeat = nil
		if err := s.Upsert(ctx, record); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// PruneRemoved drops records whose files were already deleted.
func (s *Store) PruneRemoved(ctx context.Context) (int, error) {
	res, err := s.execWithRetry(ctx,
		"DELETE FROM sync_records WHERE status = ?", string(StatusRemoved))
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "store", "prune removed", "", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "store", "prune removed", "read affected rows", err)
	}
	return int(affected), nil
}

// Stats aggregates record counts per lifecycle bucket.
func (s *Store) Stats(ctx context.Context) (Summary, error) {
	ctx = ensureContext(ctx)
	var summary Summary
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM sync_records GROUP BY status")
	if err != nil {
		return summary, services.Wrap(services.ErrStore, "store", "stats", "", err)
	}
	defer rows.Close()

	for rows.Next() {
		var statusStr string
		var count int
		if err := rows.Scan(&statusStr, &count); err != nil {
			return summary, services.Wrap(services.ErrStore, "store", "stats", "scan row", err)
		}
		summary.Total += count
		switch status := Status(statusStr); {
		case status == StatusDiscovered:
			summary.Discovered += count
		case IsProcessingStatus(status):
			summary.Processing += count
		case status == StatusComplete:
			summary.Completed += count
		case status == StatusFailed:
			summary.Failed += count
		case status == StatusRemoved:
			summary.Removed += count
		default:
			summary.Processing += count
		}
	}
	if err := rows.Err(); err != nil {
		return summary, services.Wrap(services.ErrStore, "store", "stats", "iterate rows", err)
	}
	return summary, nil
}

// CheckHealth inspects the database file and schema, reporting diagnostics
// without mutating anything.
func (s *Store) CheckHealth(ctx context.Context) DatabaseHealth {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{DBPath: s.path}

	if _, err := os.Stat(s.path); err != nil {
		health.Error = fmt.Sprintf("stat database: %v", err)
		return health
	}
	health.DatabaseExists = true

	if err := s.db.PingContext(ctx); err != nil {
		health.Error = fmt.Sprintf("ping database: %v", err)
		return health
	}
	health.DatabaseReadable = true

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		health.Error = fmt.Sprintf("read schema version: %v", err)
		return health
	}
	health.SchemaVersion = strconv.Itoa(version)

	var tableExists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='sync_records'",
	).Scan(&tableExists); err != nil {
		health.Error = fmt.Sprintf("check sync_records table: %v", err)
		return health
	}
	health.TableExists = tableExists > 0

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = fmt.Sprintf("integrity check: %v", err)
		return health
	}
	health.IntegrityCheck = integrity == "ok"
	if !health.IntegrityCheck {
		health.Error = "integrity check reported corruption"
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM sync_records").Scan(&health.TotalRecords); err != nil {
		health.Error = fmt.Sprintf("count records: %v", err)
	}
	return health
}
