package testsupport

import (
	"context"
	"testing"

	"chorus/internal/config"
	"chorus/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// NewRecord inserts a record for tests using the provided store.
func NewRecord(t testing.TB, st *store.Store, itemID string, status store.Status, playlists ...string) *store.Record {
	t.Helper()

	record := &store.Record{
		ItemID:   itemID,
		Status:   status,
		Title:    "Track " + itemID,
		Uploader: "Artist",
	}
	record.SetPlaylists(playlists)
	if err := st.Upsert(context.Background(), record); err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return record
}
