package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chorus/internal/config"
	"chorus/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifySyncStarted(context.Background(), "manual", 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "sync started",
			notify: func(svc notifications.Service) error {
				return svc.NotifySyncStarted(context.Background(), "manual", 3)
			},
			expectTitle:   "Chorus - Sync Started",
			expectMessage: "Started manual sync across 3 playlists",
			expectTags:    "chorus,sync,started",
		},
		{
			name: "sync completed clean",
			notify: func(svc notifications.Service) error {
				return svc.NotifySyncCompleted(context.Background(), 12, 0, 90*time.Second)
			},
			expectTitle:   "Chorus - Sync Complete",
			expectMessage: "Sync complete: 12 actions in 1m30s",
			expectTags:    "chorus,sync,completed",
		},
		{
			name: "sync completed with failures",
			notify: func(svc notifications.Service) error {
				return svc.NotifySyncCompleted(context.Background(), 10, 2, 30*time.Second)
			},
			expectTitle:   "Chorus - Sync Complete (with errors)",
			expectMessage: "Sync complete: 10 succeeded, 2 failed in 30s",
			expectTags:    "chorus,sync,completed",
		},
		{
			name: "track added",
			notify: func(svc notifications.Service) error {
				return svc.NotifyTrackAdded(context.Background(), "Artist", "Song")
			},
			expectTitle:   "Chorus - Track Added",
			expectMessage: "Added to library: Artist - Song",
			expectTags:    "chorus,library,added",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("yt-dlp requires sign in"), "snapshot fetch")
			},
			expectTitle:    "Chorus - Error",
			expectMessage:  "Error with snapshot fetch: yt-dlp requires sign in",
			expectTags:     "chorus,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
