// ABOUTME: Entry point for coven-switchboard, an MCP gateway over a switchable fleet of MCP servers
// ABOUTME: Cobra commands for serving, listing the aggregated catalog and validating config

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                        _ _       _     _                         _
  ___ _____   _____ _ __        _____ _(_) |_ ___| |__ | |__   ___   __ _ _ __ __| |
 / __/ _ \ \ / / _ \ '_ \ _____/ __\ \ /\ / / | __/ __| '_ \| '_ \ / _ \ / _' | '__/ _' |
| (_| (_) \ V /  __/ | | |_____\__ \\ V  V /| | || (__| | | | |_) | (_) | (_| | | | (_| |
 \___\___/ \_/ \___|_| |_|     |___/ \_/\_/ |_|\__\___|_| |_|_.__/ \___/ \__,_|_|  \__,_|
`

var (
	configPath string
	sourcePath string
)

var rootCmd = &cobra.Command{
	Use:   "coven-switchboard",
	Short: "MCP gateway that aggregates a switchable set of MCP servers",
	Long: `coven-switchboard starts the MCP servers listed in a config source, publishes
their combined tools as one catalog and routes each call to the server that owns it.
The context_switch tool replaces the whole fleet with the servers from another source.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "gateway config file (default $COVEN_SWITCHBOARD_CONFIG or $XDG_CONFIG_HOME/coven-switchboard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&sourcePath, "source", "", "MCP server list to start with (default $MCP_CONFIG_PATH, ./.roo/mcp.json, ~/.roo/mcp.json)")

	rootCmd.AddCommand(serveCmd, toolsCmd, validateCmd, tokenCmd, versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
