package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"chorus/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "chorus.db"))
	if err != nil {
		t.Fatalf("OpenPath returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGetRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	record := &store.Record{
		ItemID:          "abc123",
		Status:          store.StatusDiscovered,
		Title:           "Test Track",
		Uploader:        "Test Artist",
		DurationSeconds: 215,
		ThumbnailURL:    "https://example.com/t.jpg",
	}
	record.SetPlaylists([]string{"PLb", "PLa", "PLb"})

	if err := s.Upsert(ctx, record); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if record.ID == 0 {
		t.Fatal("expected record ID to be assigned")
	}

	got, err := s.GetByItemID(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByItemID returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.Title != "Test Track" || got.Uploader != "Test Artist" || got.DurationSeconds != 215 {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if len(got.Playlists) != 2 || got.Playlists[0] != "PLa" || got.Playlists[1] != "PLb" {
		t.Fatalf("expected sorted deduplicated membership, got %v", got.Playlists)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	got.Status = store.StatusDownloaded
	got.LocalPath = "/tmp/abc123.opus"
	got.ContentHash = "deadbeef"
	if err := s.Upsert(ctx, got); err != nil {
		t.Fatalf("Upsert update returned error: %v", err)
	}

	again, err := s.GetByItemID(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByItemID returned error: %v", err)
	}
	if again.Status != store.StatusDownloaded || again.LocalPath != "/tmp/abc123.opus" || again.ContentHash != "deadbeef" {
		t.Fatalf("update not persisted: %+v", again)
	}
}

func TestGetByItemIDMissing(t *testing.T) {
	s := openStore(t)
	got, err := s.GetByItemID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByItemID returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
}

func TestUpsertRejectsDuplicateItemID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, &store.Record{ItemID: "dup", Status: store.StatusDiscovered}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := s.Upsert(ctx, &store.Record{ItemID: "dup", Status: store.StatusDiscovered}); err == nil {
		t.Fatal("expected unique constraint violation")
	}
}

func TestListByStatus(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, seed := range []struct {
		id     string
		status store.Status
	}{
		{"one", store.StatusDiscovered},
		{"two", store.StatusDownloaded},
		{"three", store.StatusComplete},
	} {
		if err := s.Upsert(ctx, &store.Record{ItemID: seed.id, Status: seed.status}); err != nil {
			t.Fatalf("Upsert %s returned error: %v", seed.id, err)
		}
	}

	records, err := s.ListByStatus(ctx, store.StatusDiscovered, store.StatusDownloaded)
	if err != nil {
		t.Fatalf("ListByStatus returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ItemID != "one" || records[1].ItemID != "two" {
		t.Fatalf("unexpected order: %s, %s", records[0].ItemID, records[1].ItemID)
	}
}

func TestFindByContentHash(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	owner := &store.Record{ItemID: "owner", Status: store.StatusComplete, ContentHash: "cafe"}
	if err := s.Upsert(ctx, owner); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := s.Upsert(ctx, &store.Record{ItemID: "other", Status: store.StatusDiscovered}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	matches, err := s.FindByContentHash(ctx, "cafe")
	if err != nil {
		t.Fatalf("FindByContentHash returned error: %v", err)
	}
	if len(matches) != 1 || matches[0].ItemID != "owner" {
		t.Fatalf("unexpected matches: %+v", matches)
	}

	none, err := s.FindByContentHash(ctx, "")
	if err != nil || none != nil {
		t.Fatalf("expected empty result for empty hash, got %v, %v", none, err)
	}
}

func TestCycleLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	cycle, err := s.BeginCycle(ctx, store.TriggerManual)
	if err != nil {
		t.Fatalf("BeginCycle returned error: %v", err)
	}
	if cycle.ID == 0 || cycle.Outcome != store.OutcomeRunning {
		t.Fatalf("unexpected cycle: %+v", cycle)
	}

	unclosed, err := s.LastUnclosedCycle(ctx)
	if err != nil {
		t.Fatalf("LastUnclosedCycle returned error: %v", err)
	}
	if unclosed == nil || unclosed.ID != cycle.ID {
		t.Fatalf("expected unclosed cycle %d, got %+v", cycle.ID, unclosed)
	}

	if err := s.EndCycle(ctx, cycle.ID, store.OutcomeCompleted, ""); err != nil {
		t.Fatalf("EndCycle returned error: %v", err)
	}

	unclosed, err = s.LastUnclosedCycle(ctx)
	if err != nil {
		t.Fatalf("LastUnclosedCycle returned error: %v", err)
	}
	if unclosed != nil {
		t.Fatalf("expected no unclosed cycle, got %+v", unclosed)
	}

	recent, err := s.RecentCycles(ctx, 5)
	if err != nil {
		t.Fatalf("RecentCycles returned error: %v", err)
	}
	if len(recent) != 1 || recent[0].Outcome != store.OutcomeCompleted || recent[0].FinishedAt == nil {
		t.Fatalf("unexpected recent cycles: %+v", recent)
	}
}

func TestRecoverClosesCyclesAndRollsBack(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.BeginCycle(ctx, store.TriggerPeriodic); err != nil {
		t.Fatalf("BeginCycle returned error: %v", err)
	}

	heartbeat := time.Now().UTC()
	seeds := []*store.Record{
		{ItemID: "dl", Status: store.StatusDownloading, LastHeartbeat: &heartbeat},
		{ItemID: "tr", Status: store.StatusTranscribing, LocalPath: "/tmp/tr.opus"},
		{ItemID: "tag-lyrics", Status: store.StatusTagging, LocalPath: "/tmp/tl.opus", LyricsPath: "/tmp/tl.lrc"},
		{ItemID: "tag-plain", Status: store.StatusTagging, LocalPath: "/tmp/tp.opus"},
		{ItemID: "done", Status: store.StatusComplete, LocalPath: "/lib/done.mp3"},
	}
	for _, record := range seeds {
		if err := s.Upsert(ctx, record); err != nil {
			t.Fatalf("Upsert %s returned error: %v", record.ItemID, err)
		}
	}

	report, err := s.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	if report.CrashedCycles != 1 || report.RolledBackRecords != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}

	want := map[string]store.Status{
		"dl":         store.StatusDiscovered,
		"tr":         store.StatusDownloaded,
		"tag-lyrics": store.StatusTranscribed,
		"tag-plain":  store.StatusDownloaded,
		"done":       store.StatusComplete,
	}
	for itemID, wantStatus := range want {
		got, err := s.GetByItemID(ctx, itemID)
		if err != nil {
			t.Fatalf("GetByItemID %s returned error: %v", itemID, err)
		}
		if got.Status != wantStatus {
			t.Fatalf("record %s: expected %s, got %s", itemID, wantStatus, got.Status)
		}
		if got.LastHeartbeat != nil {
			t.Fatalf("record %s: expected heartbeat cleared", itemID)
		}
	}

	recent, err := s.RecentCycles(ctx, 1)
	if err != nil {
		t.Fatalf("RecentCycles returned error: %v", err)
	}
	if len(recent) != 1 || recent[0].Outcome != store.OutcomeCrashed {
		t.Fatalf("expected crashed cycle, got %+v", recent)
	}
}

func TestResetFailed(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	record := &store.Record{
		ItemID:       "broken",
		Status:       store.StatusFailed,
		FailedStage:  store.StageTranscribe,
		LocalPath:    "/tmp/broken.opus",
		AttemptCount: 3,
		LastError:    "whisper exited 1",
	}
	if err := s.Upsert(ctx, record); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	reset, err := s.ResetFailed(ctx, "broken")
	if err != nil {
		t.Fatalf("ResetFailed returned error: %v", err)
	}
	if !reset {
		t.Fatal("expected record to be reset")
	}

	got, err := s.GetByItemID(ctx, "broken")
	if err != nil {
		t.Fatalf("GetByItemID returned error: %v", err)
	}
	if got.Status != store.StatusDownloaded || got.AttemptCount != 0 || got.LastError != "" || got.FailedStage != "" {
		t.Fatalf("reset not applied: %+v", got)
	}
	if got.LocalPath != "/tmp/broken.opus" {
		t.Fatal("expected local path retained across reset")
	}

	reset, err = s.ResetFailed(ctx, "missing")
	if err != nil {
		t.Fatalf("ResetFailed returned error: %v", err)
	}
	if reset {
		t.Fatal("expected false for missing record")
	}
}

func TestPruneRemoved(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, &store.Record{ItemID: "gone", Status: store.StatusRemoved}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := s.Upsert(ctx, &store.Record{ItemID: "kept", Status: store.StatusComplete}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	pruned, err := s.PruneRemoved(ctx)
	if err != nil {
		t.Fatalf("PruneRemoved returned error: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned, got %d", pruned)
	}

	kept, err := s.GetByItemID(ctx, "kept")
	if err != nil || kept == nil {
		t.Fatalf("expected kept record, got %v, %v", kept, err)
	}
}

func TestStats(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, seed := range []struct {
		id     string
		status store.Status
	}{
		{"a", store.StatusDiscovered},
		{"b", store.StatusDownloading},
		{"c", store.StatusComplete},
		{"d", store.StatusComplete},
		{"e", store.StatusFailed},
	} {
		if err := s.Upsert(ctx, &store.Record{ItemID: seed.id, Status: seed.status}); err != nil {
			t.Fatalf("Upsert returned error: %v", err)
		}
	}

	summary, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if summary.Total != 5 || summary.Discovered != 1 || summary.Processing != 1 || summary.Completed != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestPlaylistUpsertAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.UpsertPlaylist(ctx, &store.Playlist{PlaylistID: "PLone", Title: "Focus", CoverURL: "https://example.com/c.jpg", ItemCount: 12}); err != nil {
		t.Fatalf("UpsertPlaylist returned error: %v", err)
	}
	if err := s.UpsertPlaylist(ctx, &store.Playlist{PlaylistID: "PLone", Title: "Focus Renamed", ItemCount: 13}); err != nil {
		t.Fatalf("UpsertPlaylist update returned error: %v", err)
	}

	got, err := s.GetPlaylist(ctx, "PLone")
	if err != nil {
		t.Fatalf("GetPlaylist returned error: %v", err)
	}
	if got == nil || got.Title != "Focus Renamed" || got.ItemCount != 13 {
		t.Fatalf("unexpected playlist: %+v", got)
	}
	if got.LastSyncedAt == nil {
		t.Fatal("expected last_synced_at to be set")
	}

	playlists, err := s.ListPlaylists(ctx)
	if err != nil {
		t.Fatalf("ListPlaylists returned error: %v", err)
	}
	if len(playlists) != 1 {
		t.Fatalf("expected 1 playlist, got %d", len(playlists))
	}
}

func TestSchemaMismatchFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chorus.db")

	s, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath returned error: %v", err)
	}
	if err := s.ForceSchemaVersion(context.Background(), 99); err != nil {
		t.Fatalf("ForceSchemaVersion returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	_, err = store.OpenPath(path)
	if !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, &store.Record{ItemID: "x", Status: store.StatusDiscovered}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	health := s.CheckHealth(ctx)
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.SchemaVersion != "1" || health.TotalRecords != 1 {
		t.Fatalf("unexpected health details: %+v", health)
	}
}
