package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"verceld/internal/config"
	"verceld/internal/daemon"

	"github.com/spf13/cobra"
)

var stopSocket string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().StringVarP(&stopSocket, "socket", "s", "", "Socket path (default "+config.DefaultSocketPath+")")
}

func runStop(cmd *cobra.Command, args []string) error {
	socketPath, err := resolveSocketPath(stopSocket)
	if err != nil {
		return err
	}
	pidPath := daemon.PidFilePath(socketPath)

	// Graceful path: ask the daemon to stop over its own socket.
	if _, err := os.Stat(socketPath); err == nil {
		if client, err := daemon.Dial(socketPath, time.Second); err == nil {
			resp, err := client.Call(daemon.Request{ID: "stop", Method: "stop"}, 2*time.Second)
			_ = client.Close()
			if err == nil && resp.OK {
				fmt.Println("Daemon stopped.")
				return nil
			}
		}
	}

	// Fallback: signal the recorded pid.
	pid, err := daemon.ReadPidFile(pidPath)
	if err != nil {
		return fmt.Errorf("daemon may not be running: %w", err)
	}

	if !daemon.PidMatchesProcess(pid, "verceld") {
		return fmt.Errorf("refusing to stop PID %d: unexpected process", pid)
	}

	fmt.Printf("Stopping verceld daemon (PID: %d)...\n", pid)
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal daemon: %w", err)
	}

	// Give the daemon a moment to clean up after itself.
	time.Sleep(500 * time.Millisecond)
	_ = os.Remove(socketPath)
	_ = os.Remove(pidPath)

	fmt.Println("Daemon stopped.")
	return nil
}

// resolveSocketPath applies the flag, then the configured default.
func resolveSocketPath(flagValue string) (string, error) {
	if flagValue != "" {
		return config.ExpandPath(flagValue), nil
	}
	cfg, err := config.Load(os.Getenv("VERCELD_CONFIG_FILE"))
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg.Socket, nil
}
