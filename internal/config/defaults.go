package config

const (
	defaultStagingDir        = "~/.local/share/chorus/staging"
	defaultLibraryDir        = "~/music/chorus"
	defaultStateDir          = "~/.local/share/chorus"
	defaultLogDir            = "~/.local/share/chorus/logs"
	defaultLogRetentionDays  = 60
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultSyncInterval      = 900
	defaultSyncWorkers       = 3
	defaultMaxAttempts       = 4
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120
	defaultDownloadBinary    = "yt-dlp"
	defaultDownloadFormat    = "opus"
	defaultDownloadQuality   = "0"
	defaultDownloadTimeout   = 1800
	defaultRatePerMinute     = 30
	defaultWhisperBinary     = "whisper"
	defaultWhisperModel      = "small"
	defaultWhisperLanguage   = "en"
	defaultWhisperTimeout    = 900
	defaultFFmpegBinary      = "ffmpeg"
	defaultAlbumMode         = AlbumModePlaylist
	defaultNotifyTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		Sync: Sync{
			Interval:          defaultSyncInterval,
			Workers:           defaultSyncWorkers,
			MaxAttempts:       defaultMaxAttempts,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Download: Download{
			Binary:             defaultDownloadBinary,
			Format:             defaultDownloadFormat,
			Quality:            defaultDownloadQuality,
			Timeout:            defaultDownloadTimeout,
			RateLimitPerMinute: defaultRatePerMinute,
		},
		Transcription: Transcription{
			Enabled:  true,
			Binary:   defaultWhisperBinary,
			Model:    defaultWhisperModel,
			Language: defaultWhisperLanguage,
			Timeout:  defaultWhisperTimeout,
		},
		Tagging: Tagging{
			Binary:     defaultFFmpegBinary,
			AlbumMode:  defaultAlbumMode,
			EmbedCover: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
