package services_test

import (
	"errors"
	"strings"
	"testing"

	"chorus/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "download", "extract", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"download", "extract", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "fetch", "snapshot", "connection reset", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected nil marker to default to transient, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	authErr := services.Wrap(services.ErrConfiguration, "fetch", "snapshot", "sign-in required", nil)
	if !services.IsFatal(authErr) {
		t.Fatalf("expected configuration error to be fatal: %v", authErr)
	}

	toolErr := services.Wrap(services.ErrExternalTool, "download", "extract", "exit status 1", nil)
	if services.IsFatal(toolErr) {
		t.Fatalf("expected tool error to be non-fatal: %v", toolErr)
	}

	if services.IsFatal(nil) {
		t.Fatal("expected nil to be non-fatal")
	}
}

func TestMessageStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrTransient, "fetch", "snapshot", "timed out", nil)
	msg := services.Message(err)
	if strings.Contains(msg, "transient failure") {
		t.Fatalf("expected marker prefix stripped, got %q", msg)
	}
	if !strings.Contains(msg, "fetch: snapshot: timed out") {
		t.Fatalf("unexpected message %q", msg)
	}

	if got := services.Message(nil); got != "" {
		t.Fatalf("expected empty message for nil error, got %q", got)
	}

	plain := errors.New("plain failure")
	if got := services.Message(plain); got != "plain failure" {
		t.Fatalf("expected passthrough for unwrapped error, got %q", got)
	}
}
