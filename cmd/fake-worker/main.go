// ABOUTME: Fake MCP worker for manual end-to-end runs of coven-switchboard
// ABOUTME: Exposes echo tools named on the command line or via FAKE_WORKER_* env vars

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/coven-switchboard/internal/fakeworker"
)

func main() {
	opts := fakeworker.OptionsFromEnv()

	cmd := &cobra.Command{
		Use:   "fake-worker",
		Short: "Serve echo tools over stdio MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Name == "" {
				opts.Name = "fake"
			}
			return fakeworker.Serve(cmd.Context(), opts, os.Stdin, os.Stdout)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&opts.Name, "name", opts.Name, "server name reported in echoes")
	cmd.Flags().StringSliceVar(&opts.Tools, "tool", opts.Tools, "tool to expose (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Resources, "resource", opts.Resources, "resource URI to expose (repeatable)")
	cmd.Flags().StringVar(&opts.Mode, "mode", opts.Mode, "misbehave: hang or exit")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fake-worker: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
