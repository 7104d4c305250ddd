package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"chorus/internal/action"
	"chorus/internal/config"
	"chorus/internal/coverart"
	"chorus/internal/daemon"
	"chorus/internal/download"
	"chorus/internal/engine"
	"chorus/internal/ipc"
	"chorus/internal/library"
	"chorus/internal/logging"
	"chorus/internal/notifications"
	"chorus/internal/planner"
	"chorus/internal/preflight"
	"chorus/internal/services/ffmpeg"
	"chorus/internal/services/whisper"
	"chorus/internal/services/ytdlp"
	"chorus/internal/store"
	"chorus/internal/tagging"
	"chorus/internal/transcriber"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	SocketPath  string
	Development bool
}

// Run starts the chorus daemon runtime loop and blocks until the context is
// cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logPath := logging.DaemonLogPath(cfg)
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "*.log", Exclude: []string{logPath}},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return err
	}

	report, err := st.Recover(signalCtx)
	if err != nil {
		logger.Error("crash recovery failed", logging.Error(err))
		_ = st.Close()
		return err
	}
	if report.CrashedCycles > 0 || report.RolledBackRecords > 0 {
		logger.Info("recovered interrupted state",
			logging.String(logging.FieldEventType, "crash_recovery"),
			logging.Int("crashed_cycles", report.CrashedCycles),
			logging.Int("rolled_back_records", report.RolledBackRecords),
		)
	}

	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if result.Passed {
			continue
		}
		logger.Warn("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "actions depending on this resource will fail"),
		)
	}

	ytClient := ytdlp.NewClient(cfg.Download)
	notifier := notifications.NewService(cfg)
	eng := engine.New(cfg, st, ytClient, buildHandlers(cfg, st, ytClient, logger), notifier, logger)

	d, err := daemon.New(cfg, st, eng, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and state database access"),
			logging.String(logging.FieldImpact, "sync cycles will not run"),
		)
	}

	<-signalCtx.Done()
	logger.Info("chorus daemon shutting down")
	return nil
}

func buildHandlers(cfg *config.Config, st *store.Store, ytClient *ytdlp.Client, logger *slog.Logger) map[planner.Kind]action.Handler {
	covers := coverart.NewFetcher(0)

	return map[planner.Kind]action.Handler{
		planner.KindMembership: library.NewMembershipHandler(logger),
		planner.KindDownload:   download.NewHandler(st, ytClient, cfg.Paths.StagingDir, logger),
		planner.KindTranscribe: transcriber.NewHandler(whisper.NewClient(cfg.Transcription), logger),
		planner.KindTag:        tagging.NewHandler(cfg, st, ffmpeg.NewClient(cfg.Tagging), covers, logger),
		planner.KindRelocate:   library.NewRelocateHandler(cfg, st, covers, logger),
		planner.KindLink:       library.NewLinkHandler(cfg, st, logger),
		planner.KindDelete:     library.NewDeleteHandler(logger),
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ytdlp_available", binaryAvailable(cfg.Download.Binary)),
		logging.String("ytdlp_binary", cfg.Download.Binary),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.Tagging.Binary)),
		logging.String("ffmpeg_binary", cfg.Tagging.Binary),
		logging.Bool("transcription_enabled", cfg.Transcription.Enabled),
		logging.Bool("whisper_available", binaryAvailable(cfg.Transcription.Binary)),
		logging.Bool("ntfy_topic_present", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
