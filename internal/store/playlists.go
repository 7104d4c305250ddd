package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chorus/internal/services"
)

const playlistColumns = "playlist_id, title, cover_url, item_count, last_synced_at"

func scanPlaylist(scanner interface{ Scan(dest ...any) error }) (*Playlist, error) {
	var (
		playlistID    string
		title         sql.NullString
		coverURL      sql.NullString
		itemCount     sql.NullInt64
		lastSyncedRaw sql.NullString
	)
	if err := scanner.Scan(&playlistID, &title, &coverURL, &itemCount, &lastSyncedRaw); err != nil {
		return nil, err
	}

	pl := &Playlist{
		PlaylistID: playlistID,
		Title:      title.String,
		CoverURL:   coverURL.String,
		ItemCount:  int(itemCount.Int64),
	}
	if lastSyncedRaw.Valid {
		if synced, err := parseTimeString(lastSyncedRaw.String); err == nil {
			pl.LastSyncedAt = &synced
		}
	}
	return pl, nil
}

// UpsertPlaylist refreshes the stored playlist identity from a snapshot.
func (s *Store) UpsertPlaylist(ctx context.Context, pl *Playlist) error {
	if pl == nil || pl.PlaylistID == "" {
		return services.Wrap(services.ErrValidation, "store", "upsert playlist", "missing playlist_id", nil)
	}
	now := time.Now().UTC()
	if pl.LastSyncedAt == nil {
		pl.LastSyncedAt = &now
	}
	_, err := s.execWithRetry(ctx, `
		INSERT INTO playlists (playlist_id, title, cover_url, item_count, last_synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(playlist_id) DO UPDATE SET
			title = excluded.title,
			cover_url = excluded.cover_url,
			item_count = excluded.item_count,
			last_synced_at = excluded.last_synced_at`,
		pl.PlaylistID,
		nullableString(pl.Title),
		nullableString(pl.CoverURL),
		pl.ItemCount,
		nullableTime(pl.LastSyncedAt),
	)
	if err != nil {
		return services.Wrap(services.ErrStore, "store", "upsert playlist", pl.PlaylistID, err)
	}
	return nil
}

// GetPlaylist returns the stored playlist identity, or nil when unknown.
func (s *Store) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+playlistColumns+" FROM playlists WHERE playlist_id = ?", playlistID)
	pl, err := scanPlaylist(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrStore, "store", "get playlist", playlistID, err)
	}
	return pl, nil
}

// ListPlaylists returns all stored playlists ordered by identifier.
func (s *Store) ListPlaylists(ctx context.Context) ([]*Playlist, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+playlistColumns+" FROM playlists ORDER BY playlist_id")
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "list playlists", "", err)
	}
	defer rows.Close()

	var playlists []*Playlist
	for rows.Next() {
		pl, err := scanPlaylist(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStore, "store", "list playlists", "scan row", err)
		}
		playlists = append(playlists, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStore, "store", "list playlists", "iterate rows", err)
	}
	return playlists, nil
}
