// Package ytdlp shells out to yt-dlp for playlist snapshots and audio
// downloads. Calls share a rate limiter so repeated invocations stay polite.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"chorus/internal/config"
	"chorus/internal/playlist"
	"chorus/internal/services"
)

// DefaultBinary is the yt-dlp executable resolved from PATH.
const DefaultBinary = "yt-dlp"

type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Client invokes yt-dlp subprocesses.
type Client struct {
	binary  string
	format  string
	quality string
	timeout time.Duration
	limiter *rate.Limiter
	runner  commandRunner
}

// NewClient builds a client from download configuration.
func NewClient(cfg config.Download) *Client {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	limit := rate.Inf
	if cfg.RateLimitPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RateLimitPerMinute))
	}
	var timeout time.Duration
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &Client{
		binary:  binary,
		format:  cfg.Format,
		quality: cfg.Quality,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, 1),
		runner:  runCommand,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)) {
	c.runner = runner
}

// Binary returns the configured yt-dlp executable name.
func (c *Client) Binary() string {
	return c.binary
}

type flatEntry struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Uploader      string  `json:"uploader"`
	Channel       string  `json:"channel"`
	Duration      float64 `json:"duration"`
	PlaylistTitle string  `json:"playlist_title"`
	Thumbnails    []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"thumbnails"`
}

func (e flatEntry) uploaderName() string {
	if e.Uploader != "" {
		return e.Uploader
	}
	return e.Channel
}

func (e flatEntry) largestThumbnail() string {
	best := ""
	bestArea := -1
	for _, thumb := range e.Thumbnails {
		area := thumb.Width * thumb.Height
		if area > bestArea {
			bestArea = area
			best = thumb.URL
		}
	}
	return best
}

// FetchSnapshot lists a playlist without downloading anything. Each stdout
// line is one JSON entry; playlist identity comes from the entries.
func (c *Client) FetchSnapshot(ctx context.Context, playlistID string) (playlist.Snapshot, error) {
	snap := playlist.Snapshot{PlaylistID: playlistID}

	if err := c.limiter.Wait(ctx); err != nil {
		return snap, err
	}

	stdout, stderr, err := c.run(ctx,
		"--flat-playlist",
		"--dump-json",
		playlist.URL(playlistID),
	)
	if err != nil {
		marker := classifyStderr(string(stderr))
		return snap, services.Wrap(marker, "ytdlp", "fetch snapshot", fmt.Sprintf("playlist %s: %s", playlistID, summarizeStderr(stderr)), err)
	}

	position := 0
	for _, line := range bytes.Split(stdout, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var entry flatEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return snap, services.Wrap(services.ErrExternalTool, "ytdlp", "fetch snapshot", fmt.Sprintf("playlist %s: malformed entry", playlistID), err)
		}
		if entry.ID == "" {
			continue
		}
		position++
		snap.Items = append(snap.Items, playlist.Item{
			ItemID:          entry.ID,
			Title:           entry.Title,
			Uploader:        entry.uploaderName(),
			DurationSeconds: int(entry.Duration),
			ThumbnailURL:    entry.largestThumbnail(),
			Position:        position,
		})
		if snap.Title == "" {
			snap.Title = entry.PlaylistTitle
		}
		if snap.CoverURL == "" {
			snap.CoverURL = entry.largestThumbnail()
		}
	}
	snap.FetchedAt = time.Now().UTC()
	return snap, nil
}

// Download extracts an item's audio into the staging directory and returns
// the final file path yt-dlp printed.
func (c *Client) Download(ctx context.Context, itemID, stagingDir string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	args := []string{"-x"}
	if c.format != "" {
		args = append(args, "--audio-format", c.format)
	}
	if c.quality != "" {
		args = append(args, "--audio-quality", c.quality)
	}
	args = append(args,
		"--no-playlist",
		"--no-overwrites",
		"-o", filepath.Join(stagingDir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		"--no-simulate",
		playlist.ItemURL(itemID),
	)

	stdout, stderr, err := c.run(ctx, args...)
	if err != nil {
		marker := classifyStderr(string(stderr))
		return "", services.Wrap(marker, "ytdlp", "download", fmt.Sprintf("item %s: %s", itemID, summarizeStderr(stderr)), err)
	}

	path := lastNonEmptyLine(stdout)
	if path == "" {
		return "", services.Wrap(services.ErrExternalTool, "ytdlp", "download", fmt.Sprintf("item %s: no output path printed", itemID), nil)
	}
	return path, nil
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.runner(ctx, c.binary, args...)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// classifyStderr maps yt-dlp failure text to the error taxonomy. Auth and
// permission failures are configuration errors that abort the cycle; missing
// media is not-found; everything else is a retryable tool failure.
func classifyStderr(stderr string) error {
	lowered := strings.ToLower(stderr)
	switch {
	case strings.Contains(lowered, "sign in"),
		strings.Contains(lowered, "private"),
		strings.Contains(lowered, "cookies"),
		strings.Contains(lowered, "authentication"),
		strings.Contains(lowered, "403"):
		return services.ErrConfiguration
	case strings.Contains(lowered, "video unavailable"),
		strings.Contains(lowered, "does not exist"),
		strings.Contains(lowered, "has been removed"),
		strings.Contains(lowered, "404"):
		return services.ErrNotFound
	case strings.Contains(lowered, "timed out"),
		strings.Contains(lowered, "timeout"):
		return services.ErrTimeout
	case strings.Contains(lowered, "unable to download"),
		strings.Contains(lowered, "connection"),
		strings.Contains(lowered, "network"):
		return services.ErrTransient
	default:
		return services.ErrExternalTool
	}
}

func summarizeStderr(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no stderr output"
}

func lastNonEmptyLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
