package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "verceld",
	Short: "Local daemon for Vercel deployment operations",
	Long: `Verceld is a local daemon that exposes Vercel platform operations over a
unix socket, translating line-delimited JSON RPC calls into authenticated
requests against the Vercel REST API.

Set VERCEL_ACCESS_TOKEN before starting; create a token at
https://vercel.com/account/tokens`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
