package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chorus/internal/services"
)

const cycleColumns = "id, trigger_kind, outcome, error, started_at, finished_at"

func scanCycle(scanner interface{ Scan(dest ...any) error }) (*Cycle, error) {
	var (
		id          int64
		trigger     string
		outcome     string
		errNote     sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &trigger, &outcome, &errNote, &startedRaw, &finishedRaw); err != nil {
		return nil, err
	}

	cycle := &Cycle{
		ID:      id,
		Trigger: trigger,
		Outcome: Outcome(outcome),
		Error:   errNote.String,
	}
	if started, err := parseTimeString(startedRaw.String); err == nil {
		cycle.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			cycle.FinishedAt = &finished
		}
	}
	return cycle, nil
}

// BeginCycle opens a new sync cycle row in the RUNNING outcome.
func (s *Store) BeginCycle(ctx context.Context, trigger string) (*Cycle, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		"INSERT INTO sync_cycles (trigger_kind, outcome, started_at) VALUES (?, ?, ?)",
		trigger, string(OutcomeRunning), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "begin cycle", trigger, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "begin cycle", "read insert id", err)
	}
	return &Cycle{ID: id, Trigger: trigger, Outcome: OutcomeRunning, StartedAt: now}, nil
}

// EndCycle closes a cycle with its final outcome and optional error note.
func (s *Store) EndCycle(ctx context.Context, id int64, outcome Outcome, note string) error {
	now := time.Now().UTC()
	_, err := s.execWithRetry(ctx,
		"UPDATE sync_cycles SET outcome = ?, error = ?, finished_at = ? WHERE id = ?",
		string(outcome), nullableString(note), now.Format(time.RFC3339Nano), id)
	if err != nil {
		return services.Wrap(services.ErrStore, "store", "end cycle", fmt.Sprintf("cycle %d", id), err)
	}
	return nil
}

// LastUnclosedCycle returns the most recent cycle with no finished_at, or nil.
func (s *Store) LastUnclosedCycle(ctx context.Context) (*Cycle, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+cycleColumns+" FROM sync_cycles WHERE finished_at IS NULL ORDER BY id DESC LIMIT 1")
	cycle, err := scanCycle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrStore, "store", "last unclosed cycle", "", err)
	}
	return cycle, nil
}

// RecentCycles returns up to n cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, n int) ([]*Cycle, error) {
	if n <= 0 {
		n = 10
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+cycleColumns+" FROM sync_cycles ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "recent cycles", "", err)
	}
	defer rows.Close()

	var cycles []*Cycle
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStore, "store", "recent cycles", "scan row", err)
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "recent cycles", "iterate rows", err)
	}
	return cycles, nil
}
