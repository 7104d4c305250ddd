package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"chorus/internal/config"
)

func writeConfig(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadDefaultConfigExpandsPathsAndAppliesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	writeConfig(t, filepath.Join(tempHome, ".config", "chorus", "config.toml"), `
[[playlists]]
id = "PLabc123"
name = "Focus"
`)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if !exists {
		t.Fatal("expected config file to be found in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "chorus", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "music", "chorus") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Sync.Interval != config.Default().Sync.Interval {
		t.Fatalf("unexpected sync interval: %d", cfg.Sync.Interval)
	}
	if cfg.Sync.Workers != config.Default().Sync.Workers {
		t.Fatalf("unexpected worker count: %d", cfg.Sync.Workers)
	}
	if cfg.Download.Binary != "yt-dlp" {
		t.Fatalf("unexpected download binary: %q", cfg.Download.Binary)
	}
	if cfg.Download.Format != "opus" {
		t.Fatalf("unexpected download format: %q", cfg.Download.Format)
	}
	if !cfg.Transcription.Enabled {
		t.Fatal("expected transcription enabled by default")
	}
	if cfg.Tagging.AlbumMode != config.AlbumModePlaylist {
		t.Fatalf("unexpected album mode: %q", cfg.Tagging.AlbumMode)
	}
	if got := cfg.PlaylistName("PLabc123"); got != "Focus" {
		t.Fatalf("unexpected playlist name: %q", got)
	}
	if got := cfg.PlaylistName("PLmissing"); got != "" {
		t.Fatalf("expected empty name for unknown playlist, got %q", got)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.StateDir, "chorus.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.SocketPath() != filepath.Join(cfg.Paths.StateDir, "chorus.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.LibraryDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "chorus.toml")

	type payload struct {
		Playlists []struct {
			ID   string `toml:"id"`
			Name string `toml:"name"`
		} `toml:"playlists"`
		Sync struct {
			Interval    int  `toml:"interval"`
			Workers     int  `toml:"workers"`
			RemoveFiles bool `toml:"remove_files"`
		} `toml:"sync"`
		Download struct {
			Format string `toml:"format"`
		} `toml:"download"`
	}
	custom := payload{}
	custom.Playlists = append(custom.Playlists, struct {
		ID   string `toml:"id"`
		Name string `toml:"name"`
	}{ID: "PLone", Name: "One"}, struct {
		ID   string `toml:"id"`
		Name string `toml:"name"`
	}{ID: "PLtwo"})
	custom.Sync.Interval = 60
	custom.Sync.Workers = 5
	custom.Sync.RemoveFiles = true
	custom.Download.Format = "MP3"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if got := cfg.PlaylistIDs(); len(got) != 2 || got[0] != "PLone" || got[1] != "PLtwo" {
		t.Fatalf("unexpected playlist ids: %v", got)
	}
	if cfg.Sync.Interval != 60 {
		t.Fatalf("expected interval 60, got %d", cfg.Sync.Interval)
	}
	if cfg.Sync.Workers != 5 {
		t.Fatalf("expected workers 5, got %d", cfg.Sync.Workers)
	}
	if !cfg.Sync.RemoveFiles {
		t.Fatal("expected remove_files true")
	}
	if cfg.Download.Format != "mp3" {
		t.Fatalf("expected lowercased format mp3, got %q", cfg.Download.Format)
	}
}

func TestNtfyTopicEnvFallback(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "chorus.toml")
	writeConfig(t, configPath, `
[[playlists]]
id = "PLabc"
`)
	t.Setenv("CHORUS_NTFY_TOPIC", "https://ntfy.sh/env-topic")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/env-topic" {
		t.Fatalf("expected topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestPlaylistsDeduplicatedAndTrimmed(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "chorus.toml")
	writeConfig(t, configPath, `
[[playlists]]
id = "  PLabc  "
name = " Workout "

[[playlists]]
id = "PLabc"
name = "Duplicate"

[[playlists]]
id = ""
`)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := cfg.PlaylistIDs(); len(got) != 1 || got[0] != "PLabc" {
		t.Fatalf("unexpected playlist ids: %v", got)
	}
	if got := cfg.PlaylistName("PLabc"); got != "Workout" {
		t.Fatalf("expected first name to win, got %q", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "library_dir") {
		t.Fatalf("sample config missing library_dir: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StagingDir, "chorus") {
		t.Fatalf("expected staging dir to contain chorus, got %q", cfg.Paths.StagingDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	withPlaylist := func() config.Config {
		cfg := config.Default()
		cfg.Playlists = []config.Playlist{{ID: "PLabc"}}
		return cfg
	}

	cfg := config.Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when no playlists configured")
	}

	cfg = withPlaylist()
	cfg.Sync.Interval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive interval")
	}

	cfg = withPlaylist()
	cfg.Sync.HeartbeatTimeout = cfg.Sync.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when heartbeat timeout <= interval")
	}

	cfg = withPlaylist()
	cfg.Download.Format = "wma"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unrecognized download format")
	}

	cfg = withPlaylist()
	cfg.Tagging.ConvertTo = "ogg-vorbis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported conversion target")
	}

	cfg = withPlaylist()
	cfg.Paths.LibraryDir = cfg.Paths.StagingDir
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when staging and library collide")
	}
}
