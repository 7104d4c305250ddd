// Package ffmpeg shells out to ffmpeg for metadata tagging, optional format
// conversion, and cover art embedding.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"chorus/internal/config"
	"chorus/internal/services"
)

// DefaultBinary is the ffmpeg executable resolved from PATH.
const DefaultBinary = "ffmpeg"

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client invokes ffmpeg subprocesses.
type Client struct {
	binary string
	runner commandRunner
}

// NewClient builds a client from tagging configuration.
func NewClient(cfg config.Tagging) *Client {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	return &Client{binary: binary, runner: runCommand}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	c.runner = runner
}

// Binary returns the configured ffmpeg executable name.
func (c *Client) Binary() string {
	return c.binary
}

// TagRequest describes one tagging pass: rewrite Source into Dest with the
// given metadata. Conversion happens when the destination extension differs;
// cover embedding only applies to mp3 destinations.
type TagRequest struct {
	Source    string
	Dest      string
	Title     string
	Artist    string
	Album     string
	Track     int
	CoverPath string
}

// WriteTags rewrites the audio container with metadata. The source file is
// left untouched; the caller swaps files after success.
func (c *Client) WriteTags(ctx context.Context, req TagRequest) error {
	if req.Source == "" || req.Dest == "" {
		return services.Wrap(services.ErrValidation, "ffmpeg", "write tags", "source and dest required", nil)
	}
	if req.Source == req.Dest {
		return services.Wrap(services.ErrValidation, "ffmpeg", "write tags", "dest must differ from source", nil)
	}

	destExt := strings.ToLower(filepath.Ext(req.Dest))
	sourceExt := strings.ToLower(filepath.Ext(req.Source))
	embedCover := req.CoverPath != "" && destExt == ".mp3"

	args := []string{"-y", "-i", req.Source}
	if embedCover {
		args = append(args, "-i", req.CoverPath)
	}
	args = append(args, "-map", "0:a")
	if embedCover {
		args = append(args, "-map", "1:0", "-c:v", "copy",
			"-metadata:s:v", "title=Album cover",
			"-metadata:s:v", "comment=Cover (front)",
			"-id3v2_version", "3",
		)
	}

	if destExt == ".mp3" && sourceExt != ".mp3" {
		args = append(args, "-c:a", "libmp3lame", "-q:a", "2")
	} else {
		args = append(args, "-c:a", "copy")
	}

	if req.Title != "" {
		args = append(args, "-metadata", "title="+req.Title)
	}
	if req.Artist != "" {
		args = append(args, "-metadata", "artist="+req.Artist)
	}
	if req.Album != "" {
		args = append(args, "-metadata", "album="+req.Album)
	}
	if req.Track > 0 {
		args = append(args, "-metadata", "track="+strconv.Itoa(req.Track))
	}
	args = append(args, req.Dest)

	if output, err := c.runner(ctx, c.binary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "write tags",
			fmt.Sprintf("%s: %s", filepath.Base(req.Source), lastLine(output)), err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	err := cmd.Run()
	return combined.Bytes(), err
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}
