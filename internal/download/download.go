// Package download executes download actions: yt-dlp audio extraction into
// the staging directory plus content-hash dedup detection.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"chorus/internal/action"
	"chorus/internal/fileutil"
	"chorus/internal/logging"
	"chorus/internal/planner"
	"chorus/internal/services"
	"chorus/internal/store"
)

// AudioDownloader extracts one item's audio into a staging directory and
// returns the resulting file path.
type AudioDownloader interface {
	Download(ctx context.Context, itemID, stagingDir string) (string, error)
	Binary() string
}

// Handler implements the download action.
type Handler struct {
	store      *store.Store
	client     AudioDownloader
	stagingDir string
	logger     *slog.Logger
}

// NewHandler builds the download handler.
func NewHandler(st *store.Store, client AudioDownloader, stagingDir string, logger *slog.Logger) *Handler {
	return &Handler{
		store:      st,
		client:     client,
		stagingDir: stagingDir,
		logger:     logging.NewComponentLogger(logger, "download"),
	}
}

// Prepare ensures the staging directory exists.
func (h *Handler) Prepare(_ context.Context, act *planner.Action) error {
	if act == nil || act.Record == nil {
		return services.Wrap(services.ErrValidation, "download", "prepare", "nil action", nil)
	}
	if err := os.MkdirAll(h.stagingDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "download", "prepare", "ensure staging dir", err)
	}
	return nil
}

// Execute downloads the item's audio, hashes it, and either records the
// download or detects a duplicate. On a hash collision with a live owner the
// fresh file is removed and only the hash is recorded; the record stays
// discovered so the next plan emits a link action instead.
func (h *Handler) Execute(ctx context.Context, act *planner.Action) error {
	record := act.Record
	log := logging.WithContext(ctx, h.logger)

	path, err := h.client.Download(ctx, record.ItemID, h.stagingDir)
	if err != nil {
		return err
	}

	hash, err := fileutil.HashFile(path)
	if err != nil {
		return services.Wrap(services.ErrTransient, "download", "hash", path, err)
	}

	owners, err := h.store.FindByContentHash(ctx, hash)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		if owner.ItemID == record.ItemID {
			continue
		}
		if owner.Status == store.StatusFailed || owner.Status == store.StatusRemoved {
			continue
		}
		log.Info("duplicate audio detected, deferring to link",
			logging.String("owner_item_id", owner.ItemID),
			logging.String("content_hash", hash))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return services.Wrap(services.ErrTransient, "download", "remove duplicate", path, err)
		}
		record.ContentHash = hash
		return nil
	}

	record.Status = store.StatusDownloaded
	record.LocalPath = path
	record.ContentHash = hash
	log.Info("audio downloaded",
		logging.String("path", path),
		logging.String("content_hash", hash))
	return nil
}

// HealthCheck verifies the download binary is resolvable.
func (h *Handler) HealthCheck(context.Context) action.Health {
	if _, err := exec.LookPath(h.client.Binary()); err != nil {
		return action.Unhealthy("download", fmt.Sprintf("%s not found on PATH", h.client.Binary()))
	}
	return action.Healthy("download")
}
