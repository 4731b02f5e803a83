package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"verceld/internal/config"
	"verceld/internal/daemon"
	"verceld/internal/history"
	"verceld/internal/metrics"
	"verceld/internal/service"
	"verceld/internal/statusapi"
	"verceld/internal/vercel"

	"github.com/spf13/cobra"
)

var (
	startSocket string
	startConfig string
	startHTTP   string
	startDB     string
	startLog    string
	foreground  bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the verceld daemon",
	Long: `Start the daemon that serves Vercel operations over the local socket.

Requires VERCEL_ACCESS_TOKEN in the environment. Without --foreground the
daemon detaches and logs to the configured log file.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startSocket, "socket", "s", "", "Socket path (default "+config.DefaultSocketPath+")")
	startCmd.Flags().StringVarP(&startConfig, "config", "c", os.Getenv("VERCELD_CONFIG_FILE"), "Path to verceld.yaml configuration file")
	startCmd.Flags().StringVar(&startHTTP, "http", "", "Address for the local status server (disabled when empty)")
	startCmd.Flags().StringVar(&startDB, "db", "", "Path to the SQLite operations database")
	startCmd.Flags().StringVar(&startLog, "log", "", "Path to log file")
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't detach)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(startConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Flags win over file and environment.
	if startSocket != "" {
		cfg.Socket = config.ExpandPath(startSocket)
	}
	if startHTTP != "" {
		cfg.HTTPAddr = startHTTP
	}
	if startDB != "" {
		cfg.DBPath = config.ExpandPath(startDB)
	}
	if startLog != "" {
		cfg.LogFile = config.ExpandPath(startLog)
	}

	// The token must be present before detaching; the child inherits it.
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !foreground {
		return spawnDaemon(cfg)
	}
	return runDaemon(cfg)
}

// spawnDaemon re-executes the binary in foreground mode, detached into
// its own session. The closest Go gets to daemonizing.
func spawnDaemon(cfg *config.Config) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	childArgs := []string{"start", "--foreground", "--socket", cfg.Socket}
	if cfg.HTTPAddr != "" {
		childArgs = append(childArgs, "--http", cfg.HTTPAddr)
	}
	if cfg.DBPath != "" {
		childArgs = append(childArgs, "--db", cfg.DBPath)
	}
	if cfg.LogFile != "" {
		childArgs = append(childArgs, "--log", cfg.LogFile)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	child := exec.Command(exe, childArgs...)
	child.Stdin = devNull
	child.Stdout = devNull
	child.Stderr = devNull
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Println("Starting verceld daemon...")
	fmt.Printf("Socket: %s\n", cfg.Socket)
	fmt.Printf("PID:    %d\n", child.Process.Pid)
	return nil
}

func runDaemon(cfg *config.Config) error {
	logger, logFile, err := setupLogging(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	logger.Info("Starting verceld", "version", version, "socket", cfg.Socket)

	client, err := vercel.New(cfg.Token)
	if err != nil {
		logger.Error("Failed to create vercel client", "error", err)
		return fmt.Errorf("failed to create vercel client: %w", err)
	}

	svc := service.New(client, version, logger)

	// Fail fast rather than serving against an unreachable API.
	if err := svc.OnStart(context.Background()); err != nil {
		return err
	}

	var hist *history.History
	if cfg.DBPath != "" {
		logger.Info("Initializing operations database", "db", cfg.DBPath)
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		hist, err = history.New(cfg.DBPath)
		if err != nil {
			logger.Error("Failed to initialize operations database", "error", err)
			return fmt.Errorf("failed to initialize operations database: %w", err)
		}
		defer hist.Close()
	}

	m := metrics.New()
	srv := daemon.NewServer(svc, hist, m, logger, cfg.Socket)

	if cfg.HTTPAddr != "" {
		statusSrv := statusapi.NewServer(svc, m, logger)
		go func() {
			if err := statusSrv.Start(cfg.HTTPAddr); err != nil {
				logger.Error("Status server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down", "signal", sig.String())
		if err := srv.Shutdown(); err != nil {
			logger.Warn("Shutdown incomplete", "error", err)
		}
	}()

	if err := srv.Serve(); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Daemon stopped")
	return nil
}

// setupLogging configures slog for file logging. With an empty path it
// logs to stdout only; otherwise to both, and the caller must close the
// returned file.
func setupLogging(logPath, level string) (*slog.Logger, *os.File, error) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var writer io.Writer = os.Stdout
	var file *os.File

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writer = io.MultiWriter(os.Stdout, f)
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler), file, nil
}
