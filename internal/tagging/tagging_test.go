package tagging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chorus/internal/config"
	"chorus/internal/planner"
	"chorus/internal/services"
	"chorus/internal/services/ffmpeg"
	"chorus/internal/store"
	"chorus/internal/tagging"
)

type fakeWriter struct {
	requests []ffmpeg.TagRequest
	err      error
}

func (f *fakeWriter) WriteTags(_ context.Context, req ffmpeg.TagRequest) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(req.Dest, []byte("tagged"), 0o644)
}

func (f *fakeWriter) Binary() string { return "ffmpeg" }

type fakeFetcher struct{ urls []string }

func (f *fakeFetcher) Fetch(_ context.Context, url, destPath string) error {
	f.urls = append(f.urls, url)
	return os.WriteFile(destPath, []byte("cover"), 0o644)
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LibraryDir = t.TempDir()
	cfg.Playlists = []config.Playlist{{ID: "PL1", Name: "Chill"}}
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

func stagedRecord(t *testing.T) *store.Record {
	t.Helper()
	audio := filepath.Join(t.TempDir(), "abc.opus")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	record := &store.Record{
		ItemID:    "abc",
		Status:    store.StatusTagging,
		Title:     "Some Song",
		Uploader:  "Artist",
		LocalPath: audio,
	}
	record.SetPlaylists([]string{"PL1"})
	return record
}

func TestExecuteTagsInPlace(t *testing.T) {
	cfg := newConfig(t)
	writer := &fakeWriter{}
	handler := tagging.NewHandler(cfg, openStore(t), writer, nil, nil)

	record := stagedRecord(t)
	source := record.LocalPath
	act := &planner.Action{Kind: planner.KindTag, Record: record}

	if err := handler.Prepare(context.Background(), act); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if err := handler.Execute(context.Background(), act); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if record.Status != store.StatusTagged || record.LocalPath != source {
		t.Fatalf("unexpected record: %+v", record)
	}
	if len(writer.requests) != 1 {
		t.Fatalf("expected one tag pass, got %d", len(writer.requests))
	}
	req := writer.requests[0]
	if req.Title != "Some Song" || req.Artist != "Artist" || req.Album != "Chill" {
		t.Fatalf("unexpected metadata: %+v", req)
	}
	content, err := os.ReadFile(source)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "tagged" {
		t.Fatalf("tagged result not swapped in, got %q", content)
	}
	if _, err := os.Stat(req.Dest); !os.IsNotExist(err) {
		t.Fatalf("expected intermediate removed, stat err: %v", err)
	}
}

func TestExecuteConvertsFormat(t *testing.T) {
	cfg := newConfig(t)
	cfg.Tagging.ConvertTo = "mp3"
	writer := &fakeWriter{}
	handler := tagging.NewHandler(cfg, openStore(t), writer, nil, nil)

	record := stagedRecord(t)
	source := record.LocalPath

	if err := handler.Execute(context.Background(), &planner.Action{Kind: planner.KindTag, Record: record}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	want := filepath.Join(filepath.Dir(source), "abc.mp3")
	if record.LocalPath != want {
		t.Fatalf("expected converted path %q, got %q", want, record.LocalPath)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("converted file missing: %v", err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("expected original removed, stat err: %v", err)
	}
}

func TestExecuteNormalizesShoutingTitle(t *testing.T) {
	cfg := newConfig(t)
	writer := &fakeWriter{}
	handler := tagging.NewHandler(cfg, openStore(t), writer, nil, nil)

	record := stagedRecord(t)
	record.Title = "NEVER GONNA STOP"

	if err := handler.Execute(context.Background(), &planner.Action{Kind: planner.KindTag, Record: record}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if record.Title != "Never Gonna Stop" {
		t.Fatalf("title not normalized: %q", record.Title)
	}
	if writer.requests[0].Title != "Never Gonna Stop" {
		t.Fatalf("metadata title not normalized: %q", writer.requests[0].Title)
	}
}

func TestExecuteEmbedsCoverForMP3(t *testing.T) {
	cfg := newConfig(t)
	cfg.Tagging.ConvertTo = "mp3"
	cfg.Tagging.EmbedCover = true
	writer := &fakeWriter{}
	fetcher := &fakeFetcher{}
	handler := tagging.NewHandler(cfg, openStore(t), writer, fetcher, nil)

	record := stagedRecord(t)
	record.ThumbnailURL = "https://example.com/thumb.jpg"

	if err := handler.Execute(context.Background(), &planner.Action{Kind: planner.KindTag, Record: record}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(fetcher.urls) != 1 || fetcher.urls[0] != "https://example.com/thumb.jpg" {
		t.Fatalf("unexpected cover fetches %v", fetcher.urls)
	}
	if writer.requests[0].CoverPath == "" {
		t.Fatal("cover path not passed to tag writer")
	}
	if _, err := os.Stat(writer.requests[0].CoverPath); !os.IsNotExist(err) {
		t.Fatalf("expected cover temp removed, stat err: %v", err)
	}
}

func TestExecuteSkipsCoverForNonMP3(t *testing.T) {
	cfg := newConfig(t)
	cfg.Tagging.EmbedCover = true
	writer := &fakeWriter{}
	fetcher := &fakeFetcher{}
	handler := tagging.NewHandler(cfg, openStore(t), writer, fetcher, nil)

	record := stagedRecord(t)
	record.ThumbnailURL = "https://example.com/thumb.jpg"

	if err := handler.Execute(context.Background(), &planner.Action{Kind: planner.KindTag, Record: record}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(fetcher.urls) != 0 {
		t.Fatalf("cover fetched for non-mp3 output: %v", fetcher.urls)
	}
}

func TestExecuteIdempotentAfterCrash(t *testing.T) {
	cfg := newConfig(t)
	cfg.Tagging.ConvertTo = "mp3"
	writer := &fakeWriter{}
	handler := tagging.NewHandler(cfg, openStore(t), writer, nil, nil)

	record := stagedRecord(t)
	source := record.LocalPath
	final := filepath.Join(filepath.Dir(source), "abc.mp3")

	// Crash after the conversion renamed and removed the source.
	if err := os.Rename(source, final); err != nil {
		t.Fatal(err)
	}
	if err := handler.Execute(context.Background(), &planner.Action{Kind: planner.KindTag, Record: record}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if record.Status != store.StatusTagged || record.LocalPath != final {
		t.Fatalf("unexpected record: %+v", record)
	}
	if len(writer.requests) != 0 {
		t.Fatalf("expected no tag pass on converged state, got %d", len(writer.requests))
	}
}

func TestExecutePropagatesToolError(t *testing.T) {
	cfg := newConfig(t)
	writer := &fakeWriter{err: services.Wrap(services.ErrExternalTool, "ffmpeg", "write tags", "boom", errors.New("exit 1"))}
	handler := tagging.NewHandler(cfg, openStore(t), writer, nil, nil)

	record := stagedRecord(t)
	err := handler.Execute(context.Background(), &planner.Action{Kind: planner.KindTag, Record: record})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected tool error, got %v", err)
	}
	if record.Status != store.StatusTagging {
		t.Fatalf("record mutated on failure: %+v", record)
	}
}
