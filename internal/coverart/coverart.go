// Package coverart fetches playlist cover images over HTTP.
package coverart

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"chorus/internal/services"
)

const defaultTimeout = 30 * time.Second

// Fetcher downloads cover images.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// WithHTTPClient replaces the underlying HTTP client (for testing).
func (f *Fetcher) WithHTTPClient(client *http.Client) {
	if client != nil {
		f.client = client
	}
}

// Fetch downloads url into destPath, writing through a temp file so a partial
// download never leaves a corrupt cover behind. An already existing dest is
// left untouched.
func (f *Fetcher) Fetch(ctx context.Context, url, destPath string) error {
	if url == "" {
		return services.Wrap(services.ErrValidation, "coverart", "fetch", "empty cover URL", nil)
	}
	if _, err := os.Stat(destPath); err == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "coverart", "fetch", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "coverart", "fetch", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusNotFound {
			marker = services.ErrNotFound
		}
		return services.Wrap(marker, "coverart", "fetch", fmt.Sprintf("%s: status %d", url, resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "coverart", "fetch", "ensure cover directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".cover-*")
	if err != nil {
		return services.Wrap(services.ErrTransient, "coverart", "fetch", "create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return services.Wrap(services.ErrTransient, "coverart", "fetch", url, err)
	}
	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrTransient, "coverart", "fetch", "close temp file", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return services.Wrap(services.ErrTransient, "coverart", "fetch", fmt.Sprintf("place %s", destPath), err)
	}
	return nil
}
