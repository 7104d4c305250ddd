package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chorus/internal/services"
)

const recordColumns = "id, item_id, status, failed_stage, title, uploader, duration_seconds, thumbnail_url, local_path, lyrics_path, content_hash, playlist_membership, attempt_count, last_error, last_heartbeat, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id               int64
		itemID           string
		statusStr        string
		failedStage      sql.NullString
		title            sql.NullString
		uploader         sql.NullString
		durationSeconds  sql.NullInt64
		thumbnailURL     sql.NullString
		localPath        sql.NullString
		lyricsPath       sql.NullString
		contentHash      sql.NullString
		membership       sql.NullString
		attemptCount     sql.NullInt64
		lastError        sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&itemID,
		&statusStr,
		&failedStage,
		&title,
		&uploader,
		&durationSeconds,
		&thumbnailURL,
		&localPath,
		&lyricsPath,
		&contentHash,
		&membership,
		&attemptCount,
		&lastError,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:              id,
		ItemID:          itemID,
		Status:          Status(statusStr),
		FailedStage:     failedStage.String,
		Title:           title.String,
		Uploader:        uploader.String,
		DurationSeconds: int(durationSeconds.Int64),
		ThumbnailURL:    thumbnailURL.String,
		LocalPath:       localPath.String,
		LyricsPath:      lyricsPath.String,
		ContentHash:     contentHash.String,
		Playlists:       decodeMembership(membership.String),
		AttemptCount:    int(attemptCount.Int64),
		LastError:       lastError.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			record.LastHeartbeat = &heartbeat
		}
	}
	return record, nil
}

// Upsert persists a record as a single atomic write. New records (ID zero) are
// inserted and receive their row ID; existing records are updated wholesale.
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return services.Wrap(services.ErrValidation, "store", "upsert", "nil record", nil)
	}
	if record.ItemID == "" {
		return services.Wrap(services.ErrValidation, "store", "upsert", "record missing item_id", nil)
	}
	ctx = ensureContext(ctx)

	now := time.Now().UTC()
	record.UpdatedAt = now

	if record.ID == 0 {
		record.CreatedAt = now
		res, err := s.execWithRetry(ctx, `
			INSERT INTO sync_records (item_id, status, failed_stage, title, uploader, duration_seconds, thumbnail_url, local_path, lyrics_path, content_hash, playlist_membership, attempt_count, last_error, last_heartbeat, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ItemID,
			string(record.Status),
			nullableString(record.FailedStage),
			nullableString(record.Title),
			nullableString(record.Uploader),
			record.DurationSeconds,
			nullableString(record.ThumbnailURL),
			nullableString(record.LocalPath),
			nullableString(record.LyricsPath),
			nullableString(record.ContentHash),
			encodeMembership(record.Playlists),
			record.AttemptCount,
			nullableString(record.LastError),
			nullableTime(record.LastHeartbeat),
			now.Format(time.RFC3339Nano),
			now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return services.Wrap(services.ErrStore, "store", "upsert", fmt.Sprintf("insert record %s", record.ItemID), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return services.Wrap(services.ErrStore, "store", "upsert", "read insert id", err)
		}
		record.ID = id
		return nil
	}

	_, err := s.execWithRetry(ctx, `
		UPDATE sync_records
		SET status = ?, failed_stage = ?, title = ?, uploader = ?, duration_seconds = ?, thumbnail_url = ?, local_path = ?, lyrics_path = ?, content_hash = ?, playlist_membership = ?, attempt_count = ?, last_error = ?, last_heartbeat = ?, updated_at = ?
		WHERE id = ?`,
		string(record.Status),
		nullableString(record.FailedStage),
		nullableString(record.Title),
		nullableString(record.Uploader),
		record.DurationSeconds,
		nullableString(record.ThumbnailURL),
		nullableString(record.LocalPath),
		nullableString(record.LyricsPath),
		nullableString(record.ContentHash),
		encodeMembership(record.Playlists),
		record.AttemptCount,
		nullableString(record.LastError),
		nullableTime(record.LastHeartbeat),
		now.Format(time.RFC3339Nano),
		record.ID,
	)
	if err != nil {
		return services.Wrap(services.ErrStore, "store", "upsert", fmt.Sprintf("update record %s", record.ItemID), err)
	}
	return nil
}

// GetByItemID returns the record for a remote item, or nil when absent.
func (s *Store) GetByItemID(ctx context.Context, itemID string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM sync_records WHERE item_id = ?", itemID)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrStore, "store", "get record", itemID, err)
	}
	return record, nil
}

// List returns all records ordered by creation.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	return s.queryRecords(ctx,
		"SELECT "+recordColumns+" FROM sync_records ORDER BY created_at, id")
}

// ListByStatus returns records in any of the given statuses, ordered by creation.
func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]*Record, error) {
	if len(statuses) == 0 {
		return s.List(ctx)
	}
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	query := "SELECT " + recordColumns + " FROM sync_records WHERE status IN (" + makePlaceholders(len(statuses)) + ") ORDER BY created_at, id"
	return s.queryRecords(ctx, query, args...)
}

// FindByContentHash returns records carrying the given audio hash.
func (s *Store) FindByContentHash(ctx context.Context, hash string) ([]*Record, error) {
	if hash == "" {
		return nil, nil
	}
	return s.queryRecords(ctx,
		"SELECT "+recordColumns+" FROM sync_records WHERE content_hash = ? ORDER BY created_at, id", hash)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]*Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "list records", "", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStore, "store", "list records", "scan row", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "list records", "iterate rows", err)
	}
	return records, nil
}

// UpdateHeartbeat stamps the record's liveness marker without touching other fields.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64, at time.Time) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE sync_records SET last_heartbeat = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return services.Wrap(services.ErrStore, "store", "heartbeat", fmt.Sprintf("record %d", id), err)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
