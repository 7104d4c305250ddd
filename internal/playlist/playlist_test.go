package playlist_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chorus/internal/playlist"
	"chorus/internal/services"
)

func TestParseIDBare(t *testing.T) {
	id, err := playlist.ParseID("PLabc123_-XYZ")
	if err != nil {
		t.Fatalf("ParseID returned error: %v", err)
	}
	if id != "PLabc123_-XYZ" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestParseIDFromURL(t *testing.T) {
	id, err := playlist.ParseID("https://www.youtube.com/playlist?list=PLxyz789")
	if err != nil {
		t.Fatalf("ParseID returned error: %v", err)
	}
	if id != "PLxyz789" {
		t.Fatalf("unexpected id %q", id)
	}

	id, err = playlist.ParseID("https://www.youtube.com/watch?v=abc&list=PLfromwatch")
	if err != nil {
		t.Fatalf("ParseID returned error: %v", err)
	}
	if id != "PLfromwatch" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestParseIDRejectsInvalid(t *testing.T) {
	for _, value := range []string{"", "   ", "https://example.com/nolist", "has spaces"} {
		if _, err := playlist.ParseID(value); err == nil {
			t.Fatalf("expected error for %q", value)
		} else if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", value, err)
		}
	}
}

func TestParseSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.txt")
	content := "# mirrored playlists\n" +
		"PLfirst\n" +
		"\n" +
		"https://www.youtube.com/playlist?list=PLsecond  # focus mix\n" +
		"PLfirst\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := playlist.ParseSources(path)
	if err != nil {
		t.Fatalf("ParseSources returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "PLfirst" || ids[1] != "PLsecond" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestParseSourcesMissingFile(t *testing.T) {
	_, err := playlist.ParseSources(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSnapshotItemIDs(t *testing.T) {
	snap := playlist.Snapshot{
		PlaylistID: "PLone",
		Items: []playlist.Item{
			{ItemID: "a"},
			{ItemID: "b"},
		},
	}
	ids := snap.ItemIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}
}
