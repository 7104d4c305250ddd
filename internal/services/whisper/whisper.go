// Package whisper shells out to a whisper-style CLI for speech-to-text,
// producing VTT subtitle files next to the audio.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"chorus/internal/config"
	"chorus/internal/services"
)

// DefaultBinary is the whisper executable resolved from PATH.
const DefaultBinary = "whisper"

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client invokes the transcription subprocess.
type Client struct {
	binary   string
	model    string
	language string
	timeout  time.Duration
	runner   commandRunner
}

// NewClient builds a client from transcription configuration.
func NewClient(cfg config.Transcription) *Client {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	var timeout time.Duration
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &Client{
		binary:   binary,
		model:    cfg.Model,
		language: cfg.Language,
		timeout:  timeout,
		runner:   runCommand,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	c.runner = runner
}

// Binary returns the configured whisper executable name.
func (c *Client) Binary() string {
	return c.binary
}

// Transcribe runs the CLI against an audio file and returns the path of the
// VTT output written into outputDir.
func (c *Client) Transcribe(ctx context.Context, audioPath, outputDir string) (string, error) {
	if audioPath == "" {
		return "", services.Wrap(services.ErrValidation, "whisper", "transcribe", "audio path required", nil)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "whisper", "transcribe", "ensure output dir", err)
	}

	args := []string{audioPath}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	if c.language != "" {
		args = append(args, "--language", c.language)
	}
	args = append(args, "--output_format", "vtt", "--output_dir", outputDir)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if output, err := c.runner(ctx, c.binary, args...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "whisper", "transcribe",
			fmt.Sprintf("%s: %s", filepath.Base(audioPath), strings.TrimSpace(string(output))), err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	vttPath := filepath.Join(outputDir, base+".vtt")
	if _, err := os.Stat(vttPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "whisper", "transcribe",
			fmt.Sprintf("expected VTT output at %s", vttPath), err)
	}
	return vttPath, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	err := cmd.Run()
	return combined.Bytes(), err
}
