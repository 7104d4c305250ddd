package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chorus/internal/action"
	"chorus/internal/config"
	"chorus/internal/daemon"
	"chorus/internal/engine"
	"chorus/internal/ipc"
	"chorus/internal/logging"
	"chorus/internal/planner"
	"chorus/internal/playlist"
	"chorus/internal/store"
	"chorus/internal/testsupport"
)

type noopHandler struct{ name string }

func (h noopHandler) Prepare(context.Context, *planner.Action) error { return nil }
func (h noopHandler) Execute(context.Context, *planner.Action) error { return nil }
func (h noopHandler) HealthCheck(context.Context) action.Health      { return action.Healthy(h.name) }

type emptyFetcher struct{}

func (emptyFetcher) FetchSnapshot(_ context.Context, playlistID string) (playlist.Snapshot, error) {
	return playlist.Snapshot{PlaylistID: playlistID}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	cfg := testsupport.NewConfig(t)

	configPath := filepath.Join(homeDir, ".config", "chorus", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	handlers := map[planner.Kind]action.Handler{
		planner.KindMembership: noopHandler{name: "membership"},
		planner.KindDownload:   noopHandler{name: "download"},
	}
	eng := engine.New(cfg, st, emptyFetcher{}, handlers, nil, logger)

	d, err := daemon.New(cfg, st, eng, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      st,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nstaging_dir = %q\nlibrary_dir = %q\nstate_dir = %q\nlog_dir = %q\n\n",
		cfg.Paths.StagingDir, cfg.Paths.LibraryDir, cfg.Paths.StateDir, cfg.Paths.LogDir)
	for _, p := range cfg.Playlists {
		fmt.Fprintf(&b, "[[playlists]]\nid = %q\nname = %q\n\n", p.ID, p.Name)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func insertRecord(t *testing.T, env *cliTestEnv, itemID string, status store.Status) *store.Record {
	t.Helper()
	return testsupport.NewRecord(t, env.store, itemID, status, env.cfg.Playlists[0].ID)
}
