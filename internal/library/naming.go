package library

import (
	"context"
	"path/filepath"
	"strings"

	"chorus/internal/config"
	"chorus/internal/store"
	"chorus/internal/textutil"
)

// ResolvePlaylistTitle returns the display name for a playlist: the config
// override when set, else the stored snapshot title, else the raw ID.
func ResolvePlaylistTitle(ctx context.Context, cfg *config.Config, st *store.Store, playlistID string) string {
	if name := cfg.PlaylistName(playlistID); name != "" {
		return name
	}
	if pl, err := st.GetPlaylist(ctx, playlistID); err == nil && pl != nil && pl.Title != "" {
		return pl.Title
	}
	return playlistID
}

// HomePlaylist picks the playlist that owns a record's library placement and
// album naming: the first configured playlist present in the record's
// membership, falling back to the record's first membership entry.
func HomePlaylist(cfg *config.Config, record *store.Record) string {
	for _, id := range cfg.PlaylistIDs() {
		if record.InPlaylist(id) {
			return id
		}
	}
	if len(record.Playlists) > 0 {
		return record.Playlists[0]
	}
	return ""
}

// ResolveAlbum returns the album tag for a record under the configured album
// mapping mode.
func ResolveAlbum(ctx context.Context, cfg *config.Config, st *store.Store, record *store.Record) string {
	if cfg.Tagging.AlbumMode == config.AlbumModeUploader {
		if record.Uploader != "" {
			return record.Uploader
		}
		return "Unknown Artist"
	}
	if home := HomePlaylist(cfg, record); home != "" {
		return ResolvePlaylistTitle(ctx, cfg, st, home)
	}
	return "Unknown Album"
}

// TrackFileName builds the sanitized "<Artist> - <Title> [<item id>]<ext>"
// name for a record's library file. The item ID suffix keeps distinct uploads
// that share an artist and title from resolving to the same path: every
// record's local_path stays exclusively its own.
func TrackFileName(record *store.Record, ext string) string {
	title := strings.TrimSpace(record.Title)
	if title == "" {
		title = record.ItemID
	}
	name := title
	if artist := strings.TrimSpace(record.Uploader); artist != "" {
		name = artist + " - " + title
	}
	name = textutil.SanitizeFileName(name) + " [" + textutil.SanitizeFileName(record.ItemID) + "]"
	return name + ext
}

// TargetPath computes a record's final library location for its current audio
// extension.
func TargetPath(ctx context.Context, cfg *config.Config, st *store.Store, record *store.Record, ext string) string {
	dir := textutil.SanitizeFileName(ResolvePlaylistTitle(ctx, cfg, st, HomePlaylist(cfg, record)))
	if dir == "" {
		dir = "library"
	}
	return filepath.Join(cfg.Paths.LibraryDir, dir, TrackFileName(record, ext))
}
