// Package library owns the store-only and filesystem actions around the music
// library: membership updates, final placement, dedup links, deletions, and
// per-playlist cover art.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chorus/internal/action"
	"chorus/internal/config"
	"chorus/internal/coverart"
	"chorus/internal/fileutil"
	"chorus/internal/logging"
	"chorus/internal/planner"
	"chorus/internal/services"
	"chorus/internal/store"
)

// CoverFetcher downloads a cover image to a destination path.
type CoverFetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// MembershipHandler applies store-only membership and metadata updates.
type MembershipHandler struct {
	logger *slog.Logger
}

// NewMembershipHandler builds the membership handler.
func NewMembershipHandler(logger *slog.Logger) *MembershipHandler {
	return &MembershipHandler{logger: logging.NewComponentLogger(logger, "membership")}
}

func (h *MembershipHandler) Prepare(_ context.Context, act *planner.Action) error {
	if act == nil || act.Record == nil {
		return services.Wrap(services.ErrValidation, "membership", "prepare", "nil action", nil)
	}
	return nil
}

// Execute rewrites the membership set and refreshes snapshot metadata. A
// removed record re-added to a playlist restarts its pipeline from scratch:
// its file was already deleted, so paths and hash are cleared.
func (h *MembershipHandler) Execute(ctx context.Context, act *planner.Action) error {
	record := act.Record
	record.SetPlaylists(act.Playlists)

	if act.Item != nil {
		if act.Item.Title != "" {
			record.Title = act.Item.Title
		}
		if act.Item.Uploader != "" {
			record.Uploader = act.Item.Uploader
		}
		if act.Item.DurationSeconds > 0 {
			record.DurationSeconds = act.Item.DurationSeconds
		}
		if act.Item.ThumbnailURL != "" {
			record.ThumbnailURL = act.Item.ThumbnailURL
		}
	}

	if record.Status == store.StatusRemoved && len(record.Playlists) > 0 {
		record.Status = store.StatusDiscovered
		record.LocalPath = ""
		record.LyricsPath = ""
		record.ContentHash = ""
		record.FailedStage = ""
		record.LastError = ""
		record.AttemptCount = 0
		logging.WithContext(ctx, h.logger).Info("removed item re-added, pipeline restarted")
	}
	return nil
}

func (h *MembershipHandler) HealthCheck(context.Context) action.Health {
	return action.Healthy("membership")
}

// RelocateHandler moves tagged audio and lyrics into the library and ensures
// the playlist cover exists.
type RelocateHandler struct {
	cfg     *config.Config
	store   *store.Store
	fetcher CoverFetcher
	logger  *slog.Logger
}

// NewRelocateHandler builds the relocate handler.
func NewRelocateHandler(cfg *config.Config, st *store.Store, fetcher CoverFetcher, logger *slog.Logger) *RelocateHandler {
	if fetcher == nil {
		fetcher = coverart.NewFetcher(0)
	}
	return &RelocateHandler{
		cfg:     cfg,
		store:   st,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "relocate"),
	}
}

func (h *RelocateHandler) Prepare(_ context.Context, act *planner.Action) error {
	if act == nil || act.Record == nil {
		return services.Wrap(services.ErrValidation, "relocate", "prepare", "nil action", nil)
	}
	if act.Record.LocalPath == "" {
		return services.Wrap(services.ErrValidation, "relocate", "prepare",
			fmt.Sprintf("record %s has no local audio", act.Record.ItemID), nil)
	}
	return nil
}

// Execute moves the audio (and lyrics, if present) into
// library/<Playlist>/<Artist> - <Title> [<item id>].<ext>. A missing source
// with an existing target is success so a crashed relocation re-runs cleanly.
func (h *RelocateHandler) Execute(ctx context.Context, act *planner.Action) error {
	record := act.Record
	log := logging.WithContext(ctx, h.logger)

	target := TargetPath(ctx, h.cfg, h.store, record, filepath.Ext(record.LocalPath))

	switch {
	case fileutil.FileExists(record.LocalPath):
		if err := fileutil.MoveFile(record.LocalPath, target); err != nil {
			return services.Wrap(services.ErrTransient, "relocate", "move audio", target, err)
		}
	case fileutil.FileExists(target):
		// Crash between move and status write; the move already happened.
		log.Info("audio already in place", logging.String("path", target))
	default:
		return services.Wrap(services.ErrValidation, "relocate", "move audio",
			fmt.Sprintf("audio missing at %s", record.LocalPath), nil)
	}

	if record.LyricsPath != "" {
		lyricsTarget := strings.TrimSuffix(target, filepath.Ext(target)) + ".lrc"
		switch {
		case fileutil.FileExists(record.LyricsPath):
			if err := fileutil.MoveFile(record.LyricsPath, lyricsTarget); err != nil {
				return services.Wrap(services.ErrTransient, "relocate", "move lyrics", lyricsTarget, err)
			}
			record.LyricsPath = lyricsTarget
		case fileutil.FileExists(lyricsTarget):
			record.LyricsPath = lyricsTarget
		default:
			log.Warn("lyrics missing, continuing without them",
				logging.String("path", record.LyricsPath))
			record.LyricsPath = ""
		}
	}

	h.ensureCover(ctx, record, filepath.Dir(target))

	record.Status = store.StatusComplete
	record.LocalPath = target
	log.Info("track placed in library", logging.String("path", target))
	return nil
}

// ensureCover fetches the playlist cover into the playlist directory on a
// best-effort basis; a missing cover never fails the relocation.
func (h *RelocateHandler) ensureCover(ctx context.Context, record *store.Record, dir string) {
	home := HomePlaylist(h.cfg, record)
	if home == "" {
		return
	}
	pl, err := h.store.GetPlaylist(ctx, home)
	if err != nil || pl == nil || pl.CoverURL == "" {
		return
	}
	coverPath := filepath.Join(dir, "cover.jpg")
	if err := h.fetcher.Fetch(ctx, pl.CoverURL, coverPath); err != nil {
		logging.WithContext(ctx, h.logger).Warn("cover fetch failed",
			logging.String("playlist_id", home),
			logging.Error(err))
	}
}

func (h *RelocateHandler) HealthCheck(context.Context) action.Health {
	if strings.TrimSpace(h.cfg.Paths.LibraryDir) == "" {
		return action.Unhealthy("relocate", "library directory not configured")
	}
	return action.Healthy("relocate")
}

// LinkHandler satisfies a duplicate record by hard-linking (or copying) the
// owning record's file into this record's library location.
type LinkHandler struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// NewLinkHandler builds the link handler.
func NewLinkHandler(cfg *config.Config, st *store.Store, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{cfg: cfg, store: st, logger: logging.NewComponentLogger(logger, "link")}
}

func (h *LinkHandler) Prepare(_ context.Context, act *planner.Action) error {
	if act == nil || act.Record == nil {
		return services.Wrap(services.ErrValidation, "link", "prepare", "nil action", nil)
	}
	if act.Owner == nil || act.Owner.LocalPath == "" {
		return services.Wrap(services.ErrValidation, "link", "prepare",
			fmt.Sprintf("record %s has no link owner", act.Record.ItemID), nil)
	}
	return nil
}

func (h *LinkHandler) Execute(ctx context.Context, act *planner.Action) error {
	record := act.Record
	owner := act.Owner

	if !fileutil.FileExists(owner.LocalPath) {
		return services.Wrap(services.ErrValidation, "link", "execute",
			fmt.Sprintf("owner file missing at %s", owner.LocalPath), nil)
	}

	target := TargetPath(ctx, h.cfg, h.store, record, filepath.Ext(owner.LocalPath))
	if !fileutil.FileExists(target) {
		if err := fileutil.LinkOrCopy(owner.LocalPath, target); err != nil {
			return services.Wrap(services.ErrTransient, "link", "execute", target, err)
		}
	}

	record.Status = store.StatusComplete
	record.LocalPath = target
	record.ContentHash = owner.ContentHash
	logging.WithContext(ctx, h.logger).Info("duplicate satisfied by link",
		logging.String("owner_item_id", owner.ItemID),
		logging.String("path", target))
	return nil
}

func (h *LinkHandler) HealthCheck(context.Context) action.Health {
	return action.Healthy("link")
}

// DeleteHandler removes a membership-empty record's files from disk.
type DeleteHandler struct {
	logger *slog.Logger
}

// NewDeleteHandler builds the delete handler.
func NewDeleteHandler(logger *slog.Logger) *DeleteHandler {
	return &DeleteHandler{logger: logging.NewComponentLogger(logger, "delete")}
}

func (h *DeleteHandler) Prepare(_ context.Context, act *planner.Action) error {
	if act == nil || act.Record == nil {
		return services.Wrap(services.ErrValidation, "delete", "prepare", "nil action", nil)
	}
	if len(act.Record.Playlists) > 0 {
		return services.Wrap(services.ErrValidation, "delete", "prepare",
			fmt.Sprintf("record %s still has memberships", act.Record.ItemID), nil)
	}
	return nil
}

// Execute removes the audio and lyrics files. An already absent file counts
// as success so a crashed deletion re-runs cleanly.
func (h *DeleteHandler) Execute(ctx context.Context, act *planner.Action) error {
	record := act.Record
	log := logging.WithContext(ctx, h.logger)

	for _, path := range []string{record.LocalPath, record.LyricsPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return services.Wrap(services.ErrTransient, "delete", "remove file", path, err)
		}
	}

	record.Status = store.StatusRemoved
	record.LocalPath = ""
	record.LyricsPath = ""
	record.ContentHash = ""
	record.LastHeartbeat = nil
	log.Info("files removed")
	return nil
}

func (h *DeleteHandler) HealthCheck(context.Context) action.Health {
	return action.Healthy("delete")
}
