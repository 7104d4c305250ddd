package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePlaylists(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateTagging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.LibraryDir {
		return errors.New("paths.staging_dir and paths.library_dir must differ")
	}
	return nil
}

func (c *Config) validatePlaylists() error {
	if len(c.Playlists) == 0 && c.Sync.SourcesFile == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/chorus/config.toml"
		}
		return fmt.Errorf("no playlists configured. Add [[playlists]] entries or set sync.sources_file in %s (create with 'chorus config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateSync() error {
	if err := ensurePositiveMap(map[string]int{
		"sync.interval":                  c.Sync.Interval,
		"sync.workers":                   c.Sync.Workers,
		"sync.max_attempts":              c.Sync.MaxAttempts,
		"download.timeout":               c.Download.Timeout,
		"transcription.timeout":          c.Transcription.Timeout,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
		"download.rate_limit_per_minute": c.Download.RateLimitPerMinute,
	}); err != nil {
		return err
	}
	if c.Sync.HeartbeatInterval <= 0 {
		return errors.New("sync.heartbeat_interval must be positive")
	}
	if c.Sync.HeartbeatTimeout <= 0 {
		return errors.New("sync.heartbeat_timeout must be positive")
	}
	if c.Sync.HeartbeatTimeout <= c.Sync.HeartbeatInterval {
		return errors.New("sync.heartbeat_timeout must be greater than sync.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateDownload() error {
	switch c.Download.Format {
	case "opus", "mp3", "m4a", "aac", "flac", "vorbis", "wav", "best":
		return nil
	default:
		return fmt.Errorf("download.format %q is not a recognized audio format", c.Download.Format)
	}
}

func (c *Config) validateTagging() error {
	switch c.Tagging.AlbumMode {
	case AlbumModePlaylist, AlbumModeUploader:
	default:
		return fmt.Errorf("tagging.album_mode must be %q or %q", AlbumModePlaylist, AlbumModeUploader)
	}
	switch c.Tagging.ConvertTo {
	case "", "mp3", "opus", "m4a", "flac":
		return nil
	default:
		return fmt.Errorf("tagging.convert_to %q is not a supported conversion target", c.Tagging.ConvertTo)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
