// Package tagging executes tag actions: it writes title/artist/album metadata
// into the staged audio with ffmpeg, optionally converting the container and
// embedding cover art.
package tagging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"chorus/internal/action"
	"chorus/internal/config"
	"chorus/internal/library"
	"chorus/internal/logging"
	"chorus/internal/planner"
	"chorus/internal/services"
	"chorus/internal/services/ffmpeg"
	"chorus/internal/store"
)

// TagWriter rewrites an audio file with metadata.
type TagWriter interface {
	WriteTags(ctx context.Context, req ffmpeg.TagRequest) error
	Binary() string
}

// CoverFetcher downloads a cover image to a destination path.
type CoverFetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// Handler implements the tag action.
type Handler struct {
	cfg     *config.Config
	store   *store.Store
	client  TagWriter
	fetcher CoverFetcher
	caser   cases.Caser
	logger  *slog.Logger
}

// NewHandler builds the tag handler.
func NewHandler(cfg *config.Config, st *store.Store, client TagWriter, fetcher CoverFetcher, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   st,
		client:  client,
		fetcher: fetcher,
		caser:   cases.Title(language.English),
		logger:  logging.NewComponentLogger(logger, "tagging"),
	}
}

// Prepare validates the staged audio is still on disk. A missing source with
// the tagged result already present is fine; Execute resolves that case.
func (h *Handler) Prepare(_ context.Context, act *planner.Action) error {
	if act == nil || act.Record == nil {
		return services.Wrap(services.ErrValidation, "tagging", "prepare", "nil action", nil)
	}
	if act.Record.LocalPath == "" {
		return services.Wrap(services.ErrValidation, "tagging", "prepare",
			fmt.Sprintf("record %s has no local audio", act.Record.ItemID), nil)
	}
	return nil
}

// Execute writes metadata into a ".tagged" sibling, then renames it over the
// final path. When the configured target format differs from the source, the
// rename lands on the new extension and the original is removed afterwards,
// so an interrupted pass converges on re-run.
func (h *Handler) Execute(ctx context.Context, act *planner.Action) error {
	record := act.Record
	log := logging.WithContext(ctx, h.logger)

	source := record.LocalPath
	sourceExt := filepath.Ext(source)
	finalExt := h.targetExt(sourceExt)
	base := strings.TrimSuffix(source, sourceExt)
	final := base + finalExt

	if _, err := os.Stat(source); err != nil {
		if _, ferr := os.Stat(final); ferr == nil {
			// Crash between rename and status write.
			log.Info("tagged audio already in place", logging.String("path", final))
			record.Status = store.StatusTagged
			record.LocalPath = final
			return nil
		}
		return services.Wrap(services.ErrValidation, "tagging", "execute",
			fmt.Sprintf("audio missing at %s", source), err)
	}

	title := h.normalizeTitle(record.Title)
	if title == "" {
		title = record.ItemID
	}

	req := ffmpeg.TagRequest{
		Source: source,
		Dest:   base + ".tagged" + finalExt,
		Title:  title,
		Artist: record.Uploader,
		Album:  library.ResolveAlbum(ctx, h.cfg, h.store, record),
	}

	coverPath := h.fetchCover(ctx, record, base, finalExt)
	if coverPath != "" {
		req.CoverPath = coverPath
		defer os.Remove(coverPath)
	}

	if err := h.client.WriteTags(ctx, req); err != nil {
		_ = os.Remove(req.Dest)
		return err
	}
	if err := os.Rename(req.Dest, final); err != nil {
		return services.Wrap(services.ErrTransient, "tagging", "execute", final, err)
	}
	if final != source {
		if err := os.Remove(source); err != nil && !os.IsNotExist(err) {
			log.Warn("could not remove pre-conversion audio",
				logging.String("path", source),
				logging.Error(err))
		}
	}

	record.Status = store.StatusTagged
	record.LocalPath = final
	record.Title = title
	log.Info("metadata written",
		logging.String("path", final),
		logging.String("album", req.Album))
	return nil
}

// HealthCheck verifies the ffmpeg binary is resolvable.
func (h *Handler) HealthCheck(context.Context) action.Health {
	if _, err := exec.LookPath(h.client.Binary()); err != nil {
		return action.Unhealthy("tagging", fmt.Sprintf("%s not found on PATH", h.client.Binary()))
	}
	return action.Healthy("tagging")
}

// targetExt returns the extension tagging should end on, honoring the
// configured conversion format.
func (h *Handler) targetExt(sourceExt string) string {
	convert := strings.TrimSpace(h.cfg.Tagging.ConvertTo)
	if convert == "" {
		return sourceExt
	}
	return "." + strings.TrimPrefix(strings.ToLower(convert), ".")
}

// normalizeTitle tames shouting uploads: an all-caps title is retitled in
// English title case. Mixed-case titles pass through untouched.
func (h *Handler) normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	hasLetter := false
	for _, r := range title {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return title
			}
		}
	}
	if !hasLetter {
		return title
	}
	return h.caser.String(strings.ToLower(title))
}

// fetchCover downloads the record thumbnail for embedding. Cover art only
// applies to mp3 output and never fails the tag pass.
func (h *Handler) fetchCover(ctx context.Context, record *store.Record, base, finalExt string) string {
	if !h.cfg.Tagging.EmbedCover || finalExt != ".mp3" || record.ThumbnailURL == "" || h.fetcher == nil {
		return ""
	}
	coverPath := base + ".cover.jpg"
	if err := h.fetcher.Fetch(ctx, record.ThumbnailURL, coverPath); err != nil {
		logging.WithContext(ctx, h.logger).Warn("cover fetch failed, tagging without art",
			logging.Error(err))
		return ""
	}
	return coverPath
}
