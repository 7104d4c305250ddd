package logging

import (
	"context"
	"log/slog"

	"chorus/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for remote item identifiers.
	FieldItemID = "item_id"
	// FieldPlaylistID is the standardized structured logging key for playlist identifiers.
	FieldPlaylistID = "playlist_id"
	// FieldActionKind is the standardized structured logging key for sync action kinds.
	FieldActionKind = "action"
	// FieldCycleID is the standardized structured logging key for sync cycle identifiers.
	FieldCycleID = "cycle_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType labels log lines with a machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint carries a short operator-facing remediation hint.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the consequence of a warning for operators.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.ItemIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldItemID, id))
	}
	if action, ok := services.ActionFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldActionKind, action))
	}
	if pid, ok := services.PlaylistIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPlaylistID, pid))
	}
	if cid, ok := services.CycleIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldCycleID, cid))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
