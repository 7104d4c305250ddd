// Package playlist defines remote playlist snapshot types and parsing helpers
// for playlist identifiers and source lists.
package playlist

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"chorus/internal/services"
)

// Item is one entry of a remote playlist snapshot.
type Item struct {
	ItemID          string
	Title           string
	Uploader        string
	DurationSeconds int
	ThumbnailURL    string
	Position        int
}

// Snapshot is an immutable listing of a remote playlist at fetch time.
type Snapshot struct {
	PlaylistID string
	Title      string
	CoverURL   string
	Items      []Item
	FetchedAt  time.Time
}

// ItemIDs returns the snapshot's item identifiers in playlist order.
func (s Snapshot) ItemIDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.ItemID)
	}
	return ids
}

// URL returns the canonical playlist URL for a playlist identifier.
func URL(playlistID string) string {
	return "https://www.youtube.com/playlist?list=" + playlistID
}

// ItemURL returns the canonical watch URL for an item identifier.
func ItemURL(itemID string) string {
	return "https://www.youtube.com/watch?v=" + itemID
}

// ParseID extracts a playlist identifier from a bare ID or any URL carrying a
// list query parameter.
func ParseID(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "playlist", "parse id", "empty playlist reference", nil)
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "playlist", "parse id", fmt.Sprintf("invalid playlist URL %q", trimmed), err)
		}
		if list := parsed.Query().Get("list"); list != "" {
			return list, nil
		}
		return "", services.Wrap(services.ErrValidation, "playlist", "parse id", fmt.Sprintf("URL %q has no list parameter", trimmed), nil)
	}
	if strings.ContainsAny(trimmed, " \t/?&=") {
		return "", services.Wrap(services.ErrValidation, "playlist", "parse id", fmt.Sprintf("invalid playlist id %q", trimmed), nil)
	}
	return trimmed, nil
}

// ParseSources reads a playlist sources file: one playlist reference per line,
// blank lines and #-comments ignored. Returns the parsed IDs in file order
// with duplicates removed.
func ParseSources(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "playlist", "read sources", fmt.Sprintf("open %q", path), err)
	}
	defer file.Close()

	seen := make(map[string]struct{})
	var ids []string
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if line == "" {
				continue
			}
		}
		id, err := ParseID(line)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "playlist", "read sources", fmt.Sprintf("%s line %d", path, lineNo), err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "playlist", "read sources", fmt.Sprintf("scan %q", path), err)
	}
	return ids, nil
}
