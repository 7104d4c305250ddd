package coverart_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chorus/internal/coverart"
	"chorus/internal/services"
)

func TestFetchWritesCover(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "playlist", "cover.jpg")
	fetcher := coverart.NewFetcher(5 * time.Second)

	if err := fetcher.Fetch(context.Background(), server.URL, dest); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "jpeg-bytes" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestFetchSkipsExistingCover(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		_, _ = w.Write([]byte("new-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(dest, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher := coverart.NewFetcher(5 * time.Second)
	if err := fetcher.Fetch(context.Background(), server.URL, dest); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if called {
		t.Fatal("expected no HTTP request for existing cover")
	}
	content, _ := os.ReadFile(dest)
	if string(content) != "existing" {
		t.Fatalf("existing cover overwritten: %q", content)
	}
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := coverart.NewFetcher(5 * time.Second)
	err := fetcher.Fetch(context.Background(), server.URL, filepath.Join(t.TempDir(), "cover.jpg"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestFetchEmptyURL(t *testing.T) {
	fetcher := coverart.NewFetcher(time.Second)
	err := fetcher.Fetch(context.Background(), "", filepath.Join(t.TempDir(), "cover.jpg"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
