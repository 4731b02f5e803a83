// Package daemon implements the local RPC transport: line-delimited
// JSON frames over a unix socket, one goroutine per connection.
//
// The daemon answers "methods" and "stop" itself and forwards every
// other method to the service dispatcher. Mutating methods are recorded
// in the history audit log; every dispatch feeds the metrics registry.
package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"verceld/internal/history"
	"verceld/internal/metrics"
	"verceld/internal/service"
)

const (
	// MaxFrameBytes caps a single request line.
	MaxFrameBytes = 1_000_000 // 1 MB

	// Per-connection rate limiting. Generous for a local channel; it
	// exists to stop a runaway client from monopolizing the daemon.
	ConnRateLimit = 50  // requests per second
	ConnRateBurst = 100

	// ShutdownTimeout bounds how long Shutdown waits for in-flight
	// connections.
	ShutdownTimeout = 10 * time.Second
)

// mutatingMethods are recorded in the history audit log, keyed by the
// parameter naming the targeted resource.
var mutatingMethods = map[string]string{
	"set_env":  "project_id",
	"redeploy": "deployment_id",
}

// Server serves the RPC socket.
type Server struct {
	Service *service.Service
	History *history.History // may be nil
	Metrics *metrics.Metrics // may be nil
	Logger  *slog.Logger

	socketPath string
	listener   net.Listener
	connWg     sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a server bound to the given socket path. History
// and metrics are optional.
func NewServer(svc *service.Service, hist *history.History, m *metrics.Metrics, logger *slog.Logger, socketPath string) *Server {
	return &Server{
		Service:    svc,
		History:    hist,
		Metrics:    m,
		Logger:     logger,
		socketPath: socketPath,
		done:       make(chan struct{}),
	}
}

// SocketPath returns the socket the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Serve listens on the unix socket and handles connections until Stop
// is called or the listener fails. It also writes the pidfile next to
// the socket and removes both on shutdown.
func (s *Server) Serve() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	// A leftover socket from an unclean shutdown would fail the bind.
	if err := removeStaleSocket(s.socketPath); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	// Local-user channel only.
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	pidPath := PidFilePath(s.socketPath)
	if err := WritePidFile(pidPath); err != nil {
		_ = listener.Close()
		return err
	}

	s.Logger.Info("RPC server listening", "socket", s.socketPath, "service", s.Service.Name())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				s.cleanupFiles()
				return nil
			default:
				s.cleanupFiles()
				return fmt.Errorf("accept failed: %w", err)
			}
		}

		s.connWg.Add(1)
		go func() {
			defer s.connWg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop closes the listener; in-flight connections drain in Shutdown.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Shutdown stops the server and waits for in-flight connections, up to
// ShutdownTimeout.
func (s *Server) Shutdown() error {
	s.Stop()

	drained := make(chan struct{})
	go func() {
		s.connWg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-time.After(ShutdownTimeout):
		return errors.New("shutdown timed out waiting for connections")
	}
}

func (s *Server) cleanupFiles() {
	_ = os.Remove(s.socketPath)
	_ = os.Remove(PidFilePath(s.socketPath))
}

// handleConn serves one client connection: read a line, answer a line.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	logger := s.Logger.With("conn", connID)
	logger.Debug("Client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// Tear the call context down if the server stops mid-request.
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(ConnRateLimit), ConnRateBurst)
	encoder := json.NewEncoder(conn)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFrameBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		response, stopping := s.handleFrame(ctx, logger, limiter, line)

		// Encode appends the newline that frames the response.
		if err := encoder.Encode(response); err != nil {
			logger.Error("Failed to write response", "error", err)
			return
		}

		if stopping {
			s.Stop()
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("Connection read failed", "error", err)
	}
	logger.Debug("Client disconnected")
}

// handleFrame processes one request line and returns the response plus
// whether the daemon should stop.
func (s *Server) handleFrame(ctx context.Context, logger *slog.Logger, limiter *rate.Limiter, line []byte) (Response, bool) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		logger.Warn("Malformed request frame", "error", err)
		return Response{OK: false, Error: fmt.Sprintf("invalid request frame: %v", err)}, false
	}

	if !limiter.Allow() {
		logger.Warn("Rate limit exceeded", "method", req.Method)
		return Response{ID: req.ID, OK: false, Error: "rate limit exceeded"}, false
	}

	switch req.Method {
	case methodStop:
		logger.Info("Stop requested")
		return Response{ID: req.ID, OK: true, Result: map[string]string{"message": "stopping"}}, true

	case methodMethods:
		return Response{ID: req.ID, OK: true, Result: s.Service.Methods()}, false
	}

	start := time.Now()
	result, err := s.Service.Dispatch(ctx, req.Method, req.Params)
	duration := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if s.Metrics != nil {
		s.Metrics.ObserveDispatch(req.Method, outcome, duration)
	}
	s.recordMutation(ctx, &req, err, duration)

	if err != nil {
		logger.Warn("Dispatch failed", "method", req.Method, "duration_ms", duration.Milliseconds(), "error", err)
		return Response{ID: req.ID, OK: false, Error: err.Error()}, false
	}

	logger.Info("Dispatched", "method", req.Method, "duration_ms", duration.Milliseconds())
	return Response{ID: req.ID, OK: true, Result: result}, false
}

// recordMutation audits set_env and redeploy outcomes.
func (s *Server) recordMutation(ctx context.Context, req *Request, dispatchErr error, duration time.Duration) {
	if s.History == nil {
		return
	}

	method := bareMethod(req.Method)
	resourceParam, mutating := mutatingMethods[method]
	if !mutating {
		return
	}

	resource, _ := req.Params[resourceParam].(string)
	record := &history.OperationRecord{
		Method:     method,
		Resource:   resource,
		Status:     "ok",
		DurationMS: float64(duration.Microseconds()) / 1000.0,
	}
	if dispatchErr != nil {
		record.Status = "error"
		msg := dispatchErr.Error()
		record.ErrorMessage = &msg
	}

	if _, err := s.History.Record(ctx, record); err != nil {
		s.Logger.Error("Failed to record operation in history", "method", method, "error", err)
	}
}

func bareMethod(name string) string {
	return strings.TrimPrefix(name, service.ServiceName+".")
}

// removeStaleSocket deletes an existing socket file only if nothing is
// listening on it.
func removeStaleSocket(socketPath string) error {
	if _, err := os.Stat(socketPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat socket: %w", err)
	}

	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("socket %s is already in use by a running daemon", socketPath)
	}

	if err := os.Remove(socketPath); err != nil {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	return nil
}
