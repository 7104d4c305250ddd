package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"chorus/internal/config"
	"chorus/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Download.Binary,
			Description: "Required for playlist snapshots and audio downloads",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tagging.Binary,
			Description: "Required for metadata tagging and format conversion",
		},
	}
	if cfg.Transcription.Enabled {
		requirements = append(requirements, deps.Requirement{
			Name:        "Whisper",
			Command:     cfg.Transcription.Binary,
			Description: "Required for lyrics transcription",
		})
	}
	return deps.CheckBinaries(requirements)
}
