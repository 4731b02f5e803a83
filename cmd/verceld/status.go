package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"verceld/internal/config"
	"verceld/internal/daemon"

	"github.com/spf13/cobra"
)

var statusSocket string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusSocket, "socket", "s", "", "Socket path (default "+config.DefaultSocketPath+")")
}

func runStatus(cmd *cobra.Command, args []string) error {
	socketPath, err := resolveSocketPath(statusSocket)
	if err != nil {
		return err
	}

	if _, err := os.Stat(socketPath); err != nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Printf("Socket %s does not exist\n", socketPath)
		return nil
	}

	client, err := daemon.Dial(socketPath, time.Second)
	if err != nil {
		fmt.Println("Status: NOT RESPONDING")
		fmt.Printf("Socket exists but connection failed: %v\n", err)
		return nil
	}
	defer client.Close()

	resp, err := client.Call(daemon.Request{ID: "status", Method: "health", Params: map[string]interface{}{}}, 35*time.Second)
	if err != nil {
		fmt.Println("Status: NOT RESPONDING")
		fmt.Printf("Socket exists but request failed: %v\n", err)
		return nil
	}

	fmt.Println("Status: RUNNING")
	fmt.Printf("Socket: %s\n", socketPath)
	if resp.OK {
		health, _ := json.Marshal(resp.Result)
		fmt.Printf("Health: %s\n", health)
	} else {
		fmt.Printf("Health: probe failed: %s\n", resp.Error)
	}
	return nil
}
