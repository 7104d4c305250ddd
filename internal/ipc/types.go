package ipc

import (
	"time"

	"chorus/internal/store"
)

// StartRequest triggers daemon scheduler startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon scheduler.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// Record is the wire shape of one sync record.
type Record struct {
	ID              int64    `json:"id"`
	ItemID          string   `json:"item_id"`
	Status          string   `json:"status"`
	FailedStage     string   `json:"failed_stage,omitempty"`
	Title           string   `json:"title"`
	Uploader        string   `json:"uploader"`
	DurationSeconds int      `json:"duration_seconds"`
	LocalPath       string   `json:"local_path,omitempty"`
	LyricsPath      string   `json:"lyrics_path,omitempty"`
	ContentHash     string   `json:"content_hash,omitempty"`
	Playlists       []string `json:"playlists"`
	AttemptCount    int      `json:"attempt_count"`
	LastError       string   `json:"last_error,omitempty"`
	LastHeartbeat   string   `json:"last_heartbeat,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// FromRecord converts a store record into its wire shape.
func FromRecord(record *store.Record) Record {
	wire := Record{
		ID:              record.ID,
		ItemID:          record.ItemID,
		Status:          string(record.Status),
		FailedStage:     record.FailedStage,
		Title:           record.Title,
		Uploader:        record.Uploader,
		DurationSeconds: record.DurationSeconds,
		LocalPath:       record.LocalPath,
		LyricsPath:      record.LyricsPath,
		ContentHash:     record.ContentHash,
		Playlists:       append([]string(nil), record.Playlists...),
		AttemptCount:    record.AttemptCount,
		LastError:       record.LastError,
		CreatedAt:       record.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       record.UpdatedAt.Format(time.RFC3339),
	}
	if record.LastHeartbeat != nil {
		wire.LastHeartbeat = record.LastHeartbeat.Format(time.RFC3339)
	}
	return wire
}

// ActionHealth describes readiness of one action handler.
type ActionHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// CycleSummary is the wire shape of a cycle outcome.
type CycleSummary struct {
	CycleID   int64   `json:"cycle_id"`
	Trigger   string  `json:"trigger"`
	Outcome   string  `json:"outcome"`
	Playlists int     `json:"playlists"`
	Skipped   int     `json:"skipped"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	DurationS float64 `json:"duration_seconds"`
}

// StatusResponse represents combined daemon status information.
type StatusResponse struct {
	Running   bool           `json:"running"`
	Stats     map[string]int `json:"stats"`
	LastCycle *CycleSummary  `json:"last_cycle,omitempty"`
	Health    []ActionHealth `json:"health"`
	DBPath    string         `json:"db_path"`
	LockPath  string         `json:"lock_path"`
}

// SyncRequest triggers a manual sync cycle.
type SyncRequest struct{}

// SyncResponse reports whether the trigger was accepted.
type SyncResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// PruneRequest runs a deletion-enabled cycle. Purge additionally drops
// removed rows from the store.
type PruneRequest struct {
	Purge bool `json:"purge"`
}

// PruneResponse reports the prune cycle outcome.
type PruneResponse struct {
	Summary CycleSummary `json:"summary"`
	Purged  int          `json:"purged"`
}

// RecordListRequest filters record listing by status.
type RecordListRequest struct {
	Statuses []string `json:"statuses"`
}

// RecordListResponse contains sync records.
type RecordListResponse struct {
	Records []Record `json:"records"`
}

// RecordDescribeRequest fetches a single record by remote item ID.
type RecordDescribeRequest struct {
	ItemID string `json:"item_id"`
}

// RecordDescribeResponse contains a single record.
type RecordDescribeResponse struct {
	Record Record `json:"record"`
}

// RetryRequest resets failed records. An empty item ID resets all of them.
type RetryRequest struct {
	ItemID string `json:"item_id"`
}

// RetryResponse reports number of reset records.
type RetryResponse struct {
	Updated int `json:"updated"`
}

// CyclesRequest fetches recent cycle history.
type CyclesRequest struct {
	Limit int `json:"limit"`
}

// Cycle is the wire shape of one cycle row.
type Cycle struct {
	ID         int64  `json:"id"`
	Trigger    string `json:"trigger"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// CyclesResponse contains cycle history, newest first.
type CyclesResponse struct {
	Cycles []Cycle `json:"cycles"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    string `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalRecords     int    `json:"total_records"`
	Error            string `json:"error,omitempty"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
