package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chorus/internal/config"
)

const userAgent = "Chorus-Go/0.1.0"

// Service defines the notification surface exposed to the sync engine.
type Service interface {
	NotifySyncStarted(ctx context.Context, trigger string, playlists int) error
	NotifySyncCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyTrackAdded(ctx context.Context, artist, title string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifySyncStarted(ctx context.Context, trigger string, playlists int) error {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		trigger = "periodic"
	}
	data := payload{
		title:   "Chorus - Sync Started",
		message: fmt.Sprintf("Started %s sync across %d playlists", trigger, playlists),
		tags:    []string{"chorus", "sync", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var message string
	var title string
	if failed == 0 {
		title = "Chorus - Sync Complete"
		message = fmt.Sprintf("Sync complete: %d actions in %s", processed, durationText)
	} else {
		title = "Chorus - Sync Complete (with errors)"
		message = fmt.Sprintf("Sync complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"chorus", "sync", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTrackAdded(ctx context.Context, artist, title string) error {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	message := title
	if artist != "" {
		message = artist + " - " + title
	}
	data := payload{
		title:   "Chorus - Track Added",
		message: fmt.Sprintf("Added to library: %s", message),
		tags:    []string{"chorus", "library", "added"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Chorus - Error",
		message:  builder.String(),
		tags:     []string{"chorus", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Chorus - Test",
		message:  "Notification system test",
		tags:     []string{"chorus", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySyncStarted(context.Context, string, int) error                { return nil }
func (noopService) NotifySyncCompleted(context.Context, int, int, time.Duration) error  { return nil }
func (noopService) NotifyTrackAdded(context.Context, string, string) error              { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
