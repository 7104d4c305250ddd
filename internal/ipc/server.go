package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"chorus/internal/daemon"
	"chorus/internal/engine"
	"chorus/internal/logging"
	"chorus/internal/logs"
	"chorus/internal/services"
	"chorus/internal/store"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Chorus", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun chorus stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) requestCtx() context.Context {
	return services.WithRequestID(s.ctx, uuid.NewString())
}

func convertSummary(summary *engine.CycleSummary) *CycleSummary {
	if summary == nil {
		return nil
	}
	return &CycleSummary{
		CycleID:   summary.CycleID,
		Trigger:   summary.Trigger,
		Outcome:   string(summary.Outcome),
		Playlists: summary.Playlists,
		Skipped:   summary.Skipped,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		DurationS: summary.Duration.Seconds(),
	}
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.requestCtx())
	resp.Running = status.Running
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockFilePath
	resp.LastCycle = convertSummary(status.LastCycle)
	resp.Stats = map[string]int{
		"total":      status.Stats.Total,
		"discovered": status.Stats.Discovered,
		"processing": status.Stats.Processing,
		"completed":  status.Stats.Completed,
		"failed":     status.Stats.Failed,
		"removed":    status.Stats.Removed,
	}
	resp.Health = make([]ActionHealth, 0, len(status.Health))
	for _, health := range status.Health {
		resp.Health = append(resp.Health, ActionHealth{
			Name:   health.Name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	return nil
}

func (s *service) Sync(_ SyncRequest, resp *SyncResponse) error {
	s.log().Debug("manual sync requested")
	if s.daemon.TriggerSync() {
		resp.Triggered = true
		resp.Message = "sync triggered"
		s.log().Info("sync triggered via IPC",
			logging.String(logging.FieldEventType, "sync_trigger"))
		return nil
	}
	resp.Triggered = false
	resp.Message = "sync already in progress"
	return nil
}

func (s *service) Prune(req PruneRequest, resp *PruneResponse) error {
	s.log().Debug("prune requested")
	summary, purged, err := s.daemon.RunPrune(s.requestCtx(), req.Purge)
	if err != nil {
		return err
	}
	if converted := convertSummary(summary); converted != nil {
		resp.Summary = *converted
	}
	resp.Purged = purged
	s.log().Info("prune completed via IPC",
		logging.String(logging.FieldEventType, "prune"),
		logging.Int("purged", purged))
	return nil
}

func (s *service) RecordList(req RecordListRequest, resp *RecordListResponse) error {
	statuses := make([]store.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, ok := store.ParseStatus(raw)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	records, err := s.daemon.ListRecords(s.requestCtx(), statuses)
	if err != nil {
		return err
	}
	resp.Records = make([]Record, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		resp.Records = append(resp.Records, FromRecord(record))
	}
	return nil
}

func (s *service) RecordDescribe(req RecordDescribeRequest, resp *RecordDescribeResponse) error {
	if req.ItemID == "" {
		return errors.New("record describe requires an item id")
	}
	record, err := s.daemon.GetRecord(s.requestCtx(), req.ItemID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("record %s not found", req.ItemID)
	}
	resp.Record = FromRecord(record)
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	s.log().Debug("retry requested", logging.String(logging.FieldItemID, req.ItemID))
	updated, err := s.daemon.RetryFailed(s.requestCtx(), req.ItemID)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("failed records reset",
		logging.String(logging.FieldEventType, "retry"),
		logging.Int("updated_count", updated))
	return nil
}

func (s *service) Cycles(req CyclesRequest, resp *CyclesResponse) error {
	cycles, err := s.daemon.RecentCycles(s.requestCtx(), req.Limit)
	if err != nil {
		return err
	}
	resp.Cycles = make([]Cycle, 0, len(cycles))
	for _, cycle := range cycles {
		wire := Cycle{
			ID:        cycle.ID,
			Trigger:   cycle.Trigger,
			Outcome:   string(cycle.Outcome),
			Error:     cycle.Error,
			StartedAt: cycle.StartedAt.Format(time.RFC3339),
		}
		if cycle.FinishedAt != nil {
			wire.FinishedAt = cycle.FinishedAt.Format(time.RFC3339)
		}
		resp.Cycles = append(resp.Cycles, wire)
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health := s.daemon.DatabaseHealth(s.requestCtx())
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalRecords = health.TotalRecords
	resp.Error = health.Error
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.requestCtx())
	resp.Sent = sent
	resp.Message = message
	return err
}
