package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LibraryDir string `toml:"library_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// Playlist identifies one remote playlist to mirror. Name overrides the
// remote title for the library directory and album tag when set.
type Playlist struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Sync contains configuration for the reconciliation loop.
type Sync struct {
	Interval          int    `toml:"interval"`
	Workers           int    `toml:"workers"`
	MaxAttempts       int    `toml:"max_attempts"`
	RemoveFiles       bool   `toml:"remove_files"`
	SourcesFile       string `toml:"sources_file"`
	HeartbeatInterval int    `toml:"heartbeat_interval"`
	HeartbeatTimeout  int    `toml:"heartbeat_timeout"`
}

// Download contains configuration for the yt-dlp download collaborator.
type Download struct {
	Binary             string `toml:"binary"`
	Format             string `toml:"format"`
	Quality            string `toml:"quality"`
	Timeout            int    `toml:"timeout"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
}

// Transcription contains configuration for the speech-to-text collaborator.
type Transcription struct {
	Enabled  bool   `toml:"enabled"`
	Binary   string `toml:"binary"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
	Timeout  int    `toml:"timeout"`
}

// Tagging contains configuration for metadata writing.
type Tagging struct {
	Binary     string `toml:"binary"`
	AlbumMode  string `toml:"album_mode"`
	EmbedCover bool   `toml:"embed_cover"`
	ConvertTo  string `toml:"convert_to"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Album mapping modes accepted by tagging.album_mode.
const (
	AlbumModePlaylist = "playlist"
	AlbumModeUploader = "uploader"
)

// Config encapsulates all configuration values for Chorus.
//
// Configuration sections by subsystem:
//   - Paths: staging/library/state/log directories
//   - Playlists: remote playlists to mirror (plus an optional sources file)
//   - Sync: reconciliation interval, worker pool, retry ceiling, removal policy
//   - Download: yt-dlp binary, audio format, pacing
//   - Transcription: whisper binary, model, language
//   - Tagging: ffmpeg binary, album mapping, cover embedding, conversion
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Playlists     []Playlist    `toml:"playlists"`
	Sync          Sync          `toml:"sync"`
	Download      Download      `toml:"download"`
	Transcription Transcription `toml:"transcription"`
	Tagging       Tagging       `toml:"tagging"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/chorus/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/chorus/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("chorus.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// DatabasePath returns the location of the state database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "chorus.db")
}

// SocketPath returns the location of the daemon control socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "chorus.sock")
}

// LockPath returns the location of the single-instance daemon lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "chorusd.lock")
}

// PIDPath returns the location of the daemon PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "chorusd.pid")
}

// PlaylistName returns the configured display name for a playlist ID, or the
// empty string when the playlist has no override.
func (c *Config) PlaylistName(playlistID string) string {
	for _, p := range c.Playlists {
		if p.ID == playlistID {
			return strings.TrimSpace(p.Name)
		}
	}
	return ""
}

// PlaylistIDs returns the configured playlist IDs in configuration order.
func (c *Config) PlaylistIDs() []string {
	ids := make([]string, 0, len(c.Playlists))
	for _, p := range c.Playlists {
		ids = append(ids, p.ID)
	}
	return ids
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
