package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlaylists()
	if err := c.normalizeSync(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeTranscription()
	c.normalizeTagging()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlaylists() {
	playlists := make([]Playlist, 0, len(c.Playlists))
	seen := make(map[string]struct{}, len(c.Playlists))
	for _, p := range c.Playlists {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		playlists = append(playlists, p)
	}
	c.Playlists = playlists
}

func (c *Config) normalizeSync() error {
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = defaultSyncInterval
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = defaultSyncWorkers
	}
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = defaultMaxAttempts
	}
	if c.Sync.HeartbeatInterval <= 0 {
		c.Sync.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Sync.HeartbeatTimeout <= 0 {
		c.Sync.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	c.Sync.SourcesFile = strings.TrimSpace(c.Sync.SourcesFile)
	if c.Sync.SourcesFile != "" {
		expanded, err := expandPath(c.Sync.SourcesFile)
		if err != nil {
			return fmt.Errorf("sync.sources_file: %w", err)
		}
		c.Sync.SourcesFile = expanded
	}
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultDownloadBinary
	}
	c.Download.Format = strings.ToLower(strings.TrimSpace(c.Download.Format))
	if c.Download.Format == "" {
		c.Download.Format = defaultDownloadFormat
	}
	c.Download.Quality = strings.TrimSpace(c.Download.Quality)
	if c.Download.Quality == "" {
		c.Download.Quality = defaultDownloadQuality
	}
	if c.Download.Timeout <= 0 {
		c.Download.Timeout = defaultDownloadTimeout
	}
	if c.Download.RateLimitPerMinute <= 0 {
		c.Download.RateLimitPerMinute = defaultRatePerMinute
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Binary = strings.TrimSpace(c.Transcription.Binary)
	if c.Transcription.Binary == "" {
		c.Transcription.Binary = defaultWhisperBinary
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if c.Transcription.Language == "" {
		c.Transcription.Language = defaultWhisperLanguage
	}
	if c.Transcription.Timeout <= 0 {
		c.Transcription.Timeout = defaultWhisperTimeout
	}
}

func (c *Config) normalizeTagging() {
	c.Tagging.Binary = strings.TrimSpace(c.Tagging.Binary)
	if c.Tagging.Binary == "" {
		c.Tagging.Binary = defaultFFmpegBinary
	}
	c.Tagging.AlbumMode = strings.ToLower(strings.TrimSpace(c.Tagging.AlbumMode))
	switch c.Tagging.AlbumMode {
	case AlbumModePlaylist, AlbumModeUploader:
	default:
		c.Tagging.AlbumMode = defaultAlbumMode
	}
	c.Tagging.ConvertTo = strings.ToLower(strings.TrimSpace(c.Tagging.ConvertTo))
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("CHORUS_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
