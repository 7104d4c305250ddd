package store

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Status represents the lifecycle of a sync record.
type Status string

const (
	StatusDiscovered   Status = "discovered"
	StatusDownloading  Status = "downloading"
	StatusDownloaded   Status = "downloaded"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusTagging      Status = "tagging"
	StatusTagged       Status = "tagged"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
	StatusRemoved      Status = "removed"
)

// Stage names persisted in failed_stage and used to resume a failed record.
const (
	StageDownload   = "download"
	StageTranscribe = "transcribe"
	StageTag        = "tag"
	StageRelocate   = "relocate"
	StageLink       = "link"
	StageDelete     = "delete"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusDownloading,
	StatusDownloaded,
	StatusTranscribing,
	StatusTranscribed,
	StatusTagging,
	StatusTagged,
	StatusComplete,
	StatusFailed,
	StatusRemoved,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusDownloading:  {},
	StatusTranscribing: {},
	StatusTagging:      {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight action.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// Record is one remote item persisted in SQLite, shared across all playlists
// that reference it.
type Record struct {
	ID              int64
	ItemID          string
	Status          Status
	FailedStage     string
	Title           string
	Uploader        string
	DurationSeconds int
	ThumbnailURL    string
	LocalPath       string
	LyricsPath      string
	ContentHash     string
	Playlists       []string
	AttemptCount    int
	LastError       string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsProcessing returns true when the record reflects an in-flight action.
func (r Record) IsProcessing() bool {
	_, ok := processingStatuses[r.Status]
	return ok
}

// InPlaylist reports whether the record's membership contains the playlist.
func (r Record) InPlaylist(playlistID string) bool {
	for _, id := range r.Playlists {
		if id == playlistID {
			return true
		}
	}
	return false
}

// SetPlaylists replaces the membership set, deduplicated and sorted so the
// persisted encoding is canonical.
func (r *Record) SetPlaylists(ids []string) {
	seen := make(map[string]struct{}, len(ids))
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	sort.Strings(cleaned)
	r.Playlists = cleaned
}

// SetFailed marks the record failed at the given stage with the error message,
// bumping the attempt counter and clearing the heartbeat.
func (r *Record) SetFailed(stage, message string) {
	r.Status = StatusFailed
	r.FailedStage = stage
	r.LastError = message
	r.AttemptCount++
	r.LastHeartbeat = nil
}

// DurableStatus returns the last durable (non-processing, non-failed) status
// the record's artifacts imply. Used by failure resets and crash rollback.
func (r Record) DurableStatus() Status {
	stage := r.FailedStage
	if stage == "" && r.IsProcessing() {
		switch r.Status {
		case StatusDownloading:
			stage = StageDownload
		case StatusTranscribing:
			stage = StageTranscribe
		case StatusTagging:
			stage = StageTag
		}
	}
	switch stage {
	case StageDownload, StageLink:
		return StatusDiscovered
	case StageTranscribe:
		return StatusDownloaded
	case StageTag:
		if r.LyricsPath != "" {
			return StatusTranscribed
		}
		return StatusDownloaded
	case StageRelocate:
		return StatusTagged
	case StageDelete:
		return StatusComplete
	default:
		if r.LocalPath != "" {
			return StatusDownloaded
		}
		return StatusDiscovered
	}
}

func encodeMembership(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeMembership(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

// Cycle trigger kinds.
const (
	TriggerPeriodic = "periodic"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
	TriggerPrune    = "prune"
)

// Outcome classifies how a sync cycle ended.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeCrashed   Outcome = "crashed"
)

// Cycle is one reconciliation run persisted in SQLite.
type Cycle struct {
	ID         int64
	Trigger    string
	Outcome    Outcome
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Playlist is the stored identity of a mirrored playlist, refreshed from each
// successful snapshot fetch.
type Playlist struct {
	PlaylistID   string
	Title        string
	CoverURL     string
	ItemCount    int
	LastSyncedAt *time.Time
}

// Summary describes aggregated record counts per key lifecycle states.
type Summary struct {
	Total      int
	Discovered int
	Processing int
	Completed  int
	Failed     int
	Removed    int
}

// DatabaseHealth captures diagnostic information about the state database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	IntegrityCheck   bool
	TotalRecords     int
	Error            string
}

// RecoveryReport summarizes startup crash recovery.
type RecoveryReport struct {
	CrashedCycles     int
	RolledBackRecords int
}
