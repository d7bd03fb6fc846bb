// ABOUTME: serve, tools, validate, token and version commands
// ABOUTME: All human-facing output except tools/validate results goes to stderr

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-switchboard/internal/config"
	"github.com/2389/coven-switchboard/internal/gateway"
	"github.com/2389/coven-switchboard/internal/mcp"
	"github.com/2389/coven-switchboard/internal/routing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the switchboard",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Start the configured servers once and print the aggregated catalog",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the gateway config and the MCP server list",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a bearer token for auth.tokens",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), mcp.NewTokenStore(nil).CreateToken("cli"))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "coven-switchboard %s\n", version)
	},
}

// loadConfig loads the gateway config and applies --source.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadDefault(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	if sourcePath != "" {
		cfg.Sources.Path = sourcePath
	}
	return cfg, path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	logger := setupLogger(cfg.Logging, stderr)
	printBanner(stderr, cfg, path)

	logger.Info("starting coven-switchboard",
		"version", version,
		"config", path,
		"transport", cfg.Server.Transport,
		"source", cfg.Sources.Path,
	)

	gw, err := gateway.New(cfg, logger, gateway.WithVersion(version))
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(cmd.Context())
}

func printBanner(w io.Writer, cfg *config.Config, path string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	if path == "" {
		path = "(defaults)"
	}
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Config:    %s\n", path)
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Transport: %s\n", cfg.Server.Transport)
	if cfg.Server.Transport == config.TransportHTTP {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Sources.Path != "" {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Source:    %s\n", cfg.Sources.Path)
	}
	fmt.Fprintln(w)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Watch.Enabled = false

	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())
	gw, err := gateway.New(cfg, logger, gateway.WithVersion(version))
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	defer gw.Shutdown(cmd.Context())

	snap, err := gw.Refresh(cmd.Context())
	if err != nil && !gateway.IsConfigUnavailable(err) {
		return err
	}
	if err != nil {
		logger.Warn("no config source found", "error", err)
	}

	printCatalog(cmd.OutOrStdout(), snap)
	return nil
}

func printCatalog(w io.Writer, snap *routing.Snapshot) {
	fmt.Fprintf(w, "source: %s\n", orNone(snap.Source))
	fmt.Fprintf(w, "switching: %t  suffix: %q\n\n", snap.Settings.SwitchingEnabled, snap.Settings.Suffix)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tSERVER\tDESCRIPTION")
	for _, tool := range snap.Table.Tools() {
		owner, _ := snap.Table.Lookup(snap.Table.Canonical(tool.Name))
		fmt.Fprintf(tw, "%s\t%s\t%s\n", tool.Name, owner, firstLine(tool.Description))
	}
	tw.Flush()

	if res := snap.Table.Resources(); len(res) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RESOURCE\tSERVER\tNAME")
		for _, r := range res {
			owner, _ := snap.Table.ResourceOwner(r.URI)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.URI, owner, r.Name)
		}
		tw.Flush()
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "config: %s ok\n", orNone(path))

	source, err := config.FindSource(cfg.Sources.Path, cfg.Sources.SearchPaths)
	if err != nil {
		return err
	}
	servers, err := config.LoadServers(source)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "source: %s\n", servers.Path)

	invalid := 0
	for _, spec := range servers.Servers {
		if err := spec.Validate(); err != nil {
			invalid++
			fmt.Fprintf(out, "  %s %s: %v\n", color.RedString("✗"), spec.Name, err)
			continue
		}
		fmt.Fprintf(out, "  %s %s: %s\n", color.GreenString("✓"), spec.Name, spec.Command)
	}
	fmt.Fprintf(out, "switching: %t  suffix: %q\n", servers.Settings.SwitchingEnabled, servers.Settings.Suffix)

	if invalid > 0 {
		return fmt.Errorf("%d of %d servers are invalid", invalid, len(servers.Servers))
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
