package services

import "context"

type contextKey string

const (
	itemIDKey     contextKey = "item_id"
	actionKey     contextKey = "action"
	playlistIDKey contextKey = "playlist_id"
	cycleIDKey    contextKey = "cycle_id"
	requestIDKey  contextKey = "request_id"
)

// WithItemID annotates context with the remote item identifier.
func WithItemID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, itemIDKey, id)
}

// ItemIDFromContext extracts the remote item identifier if present.
func ItemIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(itemIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithAction annotates context with the sync action kind.
func WithAction(ctx context.Context, action string) context.Context {
	if action == "" {
		return ctx
	}
	return context.WithValue(ctx, actionKey, action)
}

// ActionFromContext returns the action kind if present.
func ActionFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(actionKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPlaylistID annotates context with the playlist being reconciled.
func WithPlaylistID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, playlistIDKey, id)
}

// PlaylistIDFromContext returns the playlist identifier if present.
func PlaylistIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(playlistIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCycleID annotates context with the running sync cycle identifier.
func WithCycleID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext extracts the sync cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (int64, bool) {
	switch v := ctx.Value(cycleIDKey).(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
