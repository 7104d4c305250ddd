package services_test

import (
	"context"
	"testing"

	"chorus/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, "dQw4w9WgXcQ")
	ctx = services.WithAction(ctx, "download")
	ctx = services.WithPlaylistID(ctx, "PLabc")
	ctx = services.WithCycleID(ctx, 7)
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != "dQw4w9WgXcQ" {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if action, ok := services.ActionFromContext(ctx); !ok || action != "download" {
		t.Fatalf("unexpected action: %v %v", action, ok)
	}
	if pid, ok := services.PlaylistIDFromContext(ctx); !ok || pid != "PLabc" {
		t.Fatalf("unexpected playlist id: %v %v", pid, ok)
	}
	if cid, ok := services.CycleIDFromContext(ctx); !ok || cid != 7 {
		t.Fatalf("unexpected cycle id: %v %v", cid, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestActionBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithAction(ctx, "")
	if _, ok := services.ActionFromContext(ctx); ok {
		t.Fatal("expected no action value")
	}
}
