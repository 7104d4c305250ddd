package library_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"chorus/internal/config"
	"chorus/internal/library"
	"chorus/internal/planner"
	"chorus/internal/playlist"
	"chorus/internal/store"
)

type noopFetcher struct{ fetched []string }

func (f *noopFetcher) Fetch(_ context.Context, url, destPath string) error {
	f.fetched = append(f.fetched, url)
	return os.WriteFile(destPath, []byte("cover"), 0o644)
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(t.TempDir(), "library")
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Playlists = []config.Playlist{{ID: "PL1", Name: "Chill"}, {ID: "PL2"}}
	return &cfg
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "chorus.db"))
	if err != nil {
		t.Fatalf("OpenPath returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMembershipUpdatesRecord(t *testing.T) {
	handler := library.NewMembershipHandler(nil)

	record := &store.Record{ItemID: "abc", Status: store.StatusComplete, Title: "Old"}
	record.SetPlaylists([]string{"PL1", "PL2"})

	act := &planner.Action{
		Kind:      planner.KindMembership,
		Record:    record,
		Playlists: []string{"PL1"},
		Item:      &playlist.Item{ItemID: "abc", Title: "New Title", Uploader: "Artist"},
	}
	if err := handler.Execute(context.Background(), act); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(record.Playlists) != 1 || record.Playlists[0] != "PL1" {
		t.Fatalf("unexpected membership %v", record.Playlists)
	}
	if record.Title != "New Title" {
		t.Fatalf("metadata not refreshed: %q", record.Title)
	}
	if record.Status != store.StatusComplete {
		t.Fatalf("status must not change on membership update, got %s", record.Status)
	}
}

func TestMembershipReaddResetsRemovedRecord(t *testing.T) {
	handler := library.NewMembershipHandler(nil)

	record := &store.Record{
		ItemID:      "abc",
		Status:      store.StatusRemoved,
		ContentHash: "stale",
		LastError:   "old failure",
	}
	act := &planner.Action{Kind: planner.KindMembership, Record: record, Playlists: []string{"PL1"}}
	if err := handler.Execute(context.Background(), act); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if record.Status != store.StatusDiscovered {
		t.Fatalf("expected discovered, got %s", record.Status)
	}
	if record.ContentHash != "" || record.LocalPath != "" || record.LastError != "" || record.AttemptCount != 0 {
		t.Fatalf("expected artifacts cleared: %+v", record)
	}
}

func TestRelocateMovesIntoLibrary(t *testing.T) {
	cfg := newConfig(t)
	s := openStore(t)
	ctx := context.Background()

	if err := s.UpsertPlaylist(ctx, &store.Playlist{PlaylistID: "PL1", Title: "Remote Title", CoverURL: "https://example.com/c.jpg"}); err != nil {
		t.Fatal(err)
	}

	staging := cfg.Paths.StagingDir
	audio := filepath.Join(staging, "abc.mp3")
	lrc := filepath.Join(staging, "abc.lrc")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(lrc, []byte("[00:01.00]line"), 0o644); err != nil {
		t.Fatal(err)
	}

	record := &store.Record{
		ItemID:     "abc",
		Status:     store.StatusTagged,
		Title:      "Song",
		Uploader:   "Artist",
		LocalPath:  audio,
		LyricsPath: lrc,
	}
	record.SetPlaylists([]string{"PL1"})

	fetcher := &noopFetcher{}
	handler := library.NewRelocateHandler(cfg, s, fetcher, nil)
	act := &planner.Action{Kind: planner.KindRelocate, Record: record}
	if err := handler.Prepare(ctx, act); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if err := handler.Execute(ctx, act); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	// Config name override wins over the stored snapshot title.
	wantAudio := filepath.Join(cfg.Paths.LibraryDir, "Chill", "Artist - Song [abc].mp3")
	if record.Status != store.StatusComplete || record.LocalPath != wantAudio {
		t.Fatalf("unexpected record after relocate: %+v", record)
	}
	if _, err := os.Stat(wantAudio); err != nil {
		t.Fatalf("audio not in library: %v", err)
	}
	wantLRC := filepath.Join(cfg.Paths.LibraryDir, "Chill", "Artist - Song [abc].lrc")
	if record.LyricsPath != wantLRC {
		t.Fatalf("unexpected lyrics path %q", record.LyricsPath)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LibraryDir, "Chill", "cover.jpg")); err != nil {
		t.Fatalf("cover not placed: %v", err)
	}
	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != "https://example.com/c.jpg" {
		t.Fatalf("unexpected cover fetches %v", fetcher.fetched)
	}
}

func TestRelocateKeepsSameTitledItemsApart(t *testing.T) {
	cfg := newConfig(t)
	s := openStore(t)
	ctx := context.Background()

	handler := library.NewRelocateHandler(cfg, s, &noopFetcher{}, nil)

	relocate := func(itemID, content string) *store.Record {
		audio := filepath.Join(cfg.Paths.StagingDir, itemID+".mp3")
		if err := os.WriteFile(audio, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		record := &store.Record{
			ItemID:    itemID,
			Status:    store.StatusTagged,
			Title:     "Song",
			Uploader:  "Artist",
			LocalPath: audio,
		}
		record.SetPlaylists([]string{"PL1"})
		if err := handler.Execute(ctx, &planner.Action{Kind: planner.KindRelocate, Record: record}); err != nil {
			t.Fatalf("Execute(%s) returned error: %v", itemID, err)
		}
		return record
	}

	first := relocate("vidAAA", "audio-of-A")
	second := relocate("vidBBB", "audio-of-B")

	if first.LocalPath == second.LocalPath {
		t.Fatalf("same-titled items resolved to one path %q", first.LocalPath)
	}
	for record, want := range map[*store.Record]string{first: "audio-of-A", second: "audio-of-B"} {
		content, err := os.ReadFile(record.LocalPath)
		if err != nil {
			t.Fatalf("read %s audio: %v", record.ItemID, err)
		}
		if string(content) != want {
			t.Fatalf("record %s audio = %q, want %q", record.ItemID, content, want)
		}
	}
}

func TestRelocateIdempotentAfterCrash(t *testing.T) {
	cfg := newConfig(t)
	s := openStore(t)
	ctx := context.Background()

	record := &store.Record{
		ItemID:    "abc",
		Status:    store.StatusTagged,
		Title:     "Song",
		Uploader:  "Artist",
		LocalPath: filepath.Join(cfg.Paths.StagingDir, "abc.mp3"),
	}
	record.SetPlaylists([]string{"PL1"})

	// Simulate a crash after the move: target exists, source does not.
	target := filepath.Join(cfg.Paths.LibraryDir, "Chill", "Artist - Song [abc].mp3")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	handler := library.NewRelocateHandler(cfg, s, &noopFetcher{}, nil)
	act := &planner.Action{Kind: planner.KindRelocate, Record: record}
	if err := handler.Execute(ctx, act); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if record.Status != store.StatusComplete || record.LocalPath != target {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestLinkSharesOwnerFile(t *testing.T) {
	cfg := newConfig(t)
	s := openStore(t)
	ctx := context.Background()

	ownerPath := filepath.Join(cfg.Paths.LibraryDir, "Chill", "Artist - Original.mp3")
	if err := os.MkdirAll(filepath.Dir(ownerPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ownerPath, []byte("shared-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	owner := &store.Record{ItemID: "owner", Status: store.StatusComplete, LocalPath: ownerPath, ContentHash: "h1"}
	dup := &store.Record{ItemID: "dup", Status: store.StatusDiscovered, Title: "Copy", Uploader: "Artist", ContentHash: "h1"}
	dup.SetPlaylists([]string{"PL2"})

	handler := library.NewLinkHandler(cfg, s, nil)
	act := &planner.Action{Kind: planner.KindLink, Record: dup, Owner: owner}
	if err := handler.Prepare(ctx, act); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if err := handler.Execute(ctx, act); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if dup.Status != store.StatusComplete || dup.ContentHash != "h1" {
		t.Fatalf("unexpected record: %+v", dup)
	}
	content, err := os.ReadFile(dup.LocalPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "shared-bytes" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestDeleteRemovesFilesAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	record := &store.Record{ItemID: "abc", Status: store.StatusComplete, LocalPath: audio, ContentHash: "h"}
	handler := library.NewDeleteHandler(nil)
	act := &planner.Action{Kind: planner.KindDelete, Record: record}

	if err := handler.Prepare(context.Background(), act); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if err := handler.Execute(context.Background(), act); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if record.Status != store.StatusRemoved || record.LocalPath != "" || record.ContentHash != "" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if _, err := os.Stat(audio); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err: %v", err)
	}

	// Absent files are success on re-run.
	if err := handler.Execute(context.Background(), &planner.Action{Kind: planner.KindDelete, Record: record}); err != nil {
		t.Fatalf("re-run returned error: %v", err)
	}
}

func TestHomePlaylistPrefersConfigOrder(t *testing.T) {
	cfg := newConfig(t)
	record := &store.Record{ItemID: "abc"}
	record.SetPlaylists([]string{"PL2", "PL1"})

	if home := library.HomePlaylist(cfg, record); home != "PL1" {
		t.Fatalf("expected first configured playlist, got %q", home)
	}

	record.SetPlaylists([]string{"PLother"})
	if home := library.HomePlaylist(cfg, record); home != "PLother" {
		t.Fatalf("expected fallback to membership, got %q", home)
	}
}

func TestResolveAlbumModes(t *testing.T) {
	cfg := newConfig(t)
	s := openStore(t)
	ctx := context.Background()

	record := &store.Record{ItemID: "abc", Uploader: "Some Artist"}
	record.SetPlaylists([]string{"PL1"})

	if album := library.ResolveAlbum(ctx, cfg, s, record); album != "Chill" {
		t.Fatalf("expected playlist album, got %q", album)
	}

	cfg.Tagging.AlbumMode = config.AlbumModeUploader
	if album := library.ResolveAlbum(ctx, cfg, s, record); album != "Some Artist" {
		t.Fatalf("expected uploader album, got %q", album)
	}
}
