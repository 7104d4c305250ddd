// Package transcriber executes transcribe actions: whisper speech-to-text
// followed by VTT to LRC conversion next to the audio.
package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"chorus/internal/action"
	"chorus/internal/logging"
	"chorus/internal/lyrics"
	"chorus/internal/planner"
	"chorus/internal/services"
	"chorus/internal/store"
)

// Transcriber produces a VTT subtitle file for an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, outputDir string) (string, error)
	Binary() string
}

// Handler implements the transcribe action.
type Handler struct {
	client Transcriber
	logger *slog.Logger
}

// NewHandler builds the transcribe handler.
func NewHandler(client Transcriber, logger *slog.Logger) *Handler {
	return &Handler{
		client: client,
		logger: logging.NewComponentLogger(logger, "transcriber"),
	}
}

// Prepare validates the downloaded audio is still on disk.
func (h *Handler) Prepare(_ context.Context, act *planner.Action) error {
	if act == nil || act.Record == nil {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare", "nil action", nil)
	}
	if act.Record.LocalPath == "" {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare",
			fmt.Sprintf("record %s has no local audio", act.Record.ItemID), nil)
	}
	if _, err := os.Stat(act.Record.LocalPath); err != nil {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare",
			fmt.Sprintf("audio missing at %s", act.Record.LocalPath), err)
	}
	return nil
}

// Execute transcribes the audio and writes the LRC next to it. The VTT
// intermediate is removed after conversion.
func (h *Handler) Execute(ctx context.Context, act *planner.Action) error {
	record := act.Record
	log := logging.WithContext(ctx, h.logger)

	outputDir := filepath.Dir(record.LocalPath)
	vttPath, err := h.client.Transcribe(ctx, record.LocalPath, outputDir)
	if err != nil {
		return err
	}

	lrcPath := strings.TrimSuffix(record.LocalPath, filepath.Ext(record.LocalPath)) + ".lrc"
	if err := lyrics.ConvertFile(vttPath, lrcPath); err != nil {
		return err
	}
	if err := os.Remove(vttPath); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove VTT intermediate",
			logging.String("path", vttPath),
			logging.Error(err))
	}

	record.Status = store.StatusTranscribed
	record.LyricsPath = lrcPath
	log.Info("lyrics written", logging.String("path", lrcPath))
	return nil
}

// HealthCheck verifies the transcription binary is resolvable.
func (h *Handler) HealthCheck(context.Context) action.Health {
	if _, err := exec.LookPath(h.client.Binary()); err != nil {
		return action.Unhealthy("transcriber", fmt.Sprintf("%s not found on PATH", h.client.Binary()))
	}
	return action.Healthy("transcriber")
}
