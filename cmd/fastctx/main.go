// Package main provides the fastctx CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/richinex/fastctx/agent"
	"github.com/richinex/fastctx/cli"
	"github.com/richinex/fastctx/mcp"
	"github.com/richinex/fastctx/model"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// Global flags
	configPath string
	logLevel   string
	pretty     bool
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serve := serveCmd()
	rootCmd := &cobra.Command{
		Use:   "fastctx",
		Short: "Code search over MCP backed by the Windsurf inference service",
		Long: `fastctx exposes a fast_context_search tool to MCP hosts over stdio.

Each search runs a short conversation with the remote model, which explores
the project through read-only commands (rg, readfile, tree, ls, glob) and
answers with the relevant files and line ranges.

Without a subcommand fastctx serves MCP on stdin/stdout.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $FASTCTX_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Human readable logs on stderr")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(installConfigCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunner() (*cli.Runner, error) {
	return cli.NewRunner(cli.Options{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		Pretty:     pretty,
		Verbose:    verbose,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP on stdin/stdout",
		Long: `Serve the fast_context_search tool to an MCP host on stdin/stdout.

Both Content-Length framed and newline-delimited JSON-RPC are accepted; the
framing of the first message is used for every reply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner()
			if err != nil {
				return err
			}
			return r.Serve(cmd.Context(), version)
		},
	}
}

func searchCmd() *cobra.Command {
	var req agent.Request

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run one search and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner()
			if err != nil {
				return err
			}
			req.Query = args[0]
			if req.ProjectRoot == "" {
				if req.ProjectRoot, err = os.Getwd(); err != nil {
					return err
				}
			}
			return r.Search(cmd.Context(), req)
		},
	}

	cmd.Flags().StringVarP(&req.ProjectRoot, "project", "p", "", "Project root (default current directory)")
	cmd.Flags().IntVar(&req.TreeDepth, "tree-depth", agent.DefaultTreeDepth, "Repo map depth (1-6)")
	cmd.Flags().IntVar(&req.MaxTurns, "max-turns", agent.DefaultMaxTurns, "Search rounds (1-5)")
	cmd.Flags().IntVar(&req.MaxResults, "max-results", agent.DefaultMaxResults, "Maximum files to return (1-30)")
	cmd.Flags().IntVar(&req.MaxCommands, "max-commands", 0, "Commands per round (default from settings)")

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Show the host tool and the backend tool schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner()
			if err != nil {
				return err
			}
			return r.ListTools(verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Print the full backend tool schema")

	return cmd
}

func historyCmd() *cobra.Command {
	var opts cli.HistoryOptions
	var status string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent searches from the local search log",
		Long: `List recent searches from the local search log.

The log is written only when FASTCTX_DB (or storage.path) is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch model.SearchStatus(status) {
			case "", model.StatusSuccess, model.StatusError, model.StatusTimeout:
				opts.Status = model.SearchStatus(status)
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			r, err := newRunner()
			if err != nil {
				return err
			}
			return r.History(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show success, error or timeout")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "Show counts per status instead")
	cmd.Flags().DurationVar(&opts.PruneBefore, "prune", 0, "Delete entries older than this age (e.g. 720h)")

	return cmd
}

func probeCmd() *cobra.Command {
	var opts cli.ProbeOptions
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "probe [query]",
		Short: "Start an MCP server and check it answers",
		Long: `Start an MCP server, list its tools and optionally run a search through it.

Without --mcp-config this binary is launched with "serve".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				opts.Query = args[0]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return r.Probe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "mcp-config", "", "Path to MCP host config file")
	cmd.Flags().StringVar(&opts.Server, "server", "", "Server name in the config file")
	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "Project root passed as project_path")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall probe timeout")

	return cmd
}

func installConfigCmd() *cobra.Command {
	var name string
	var withToken bool

	cmd := &cobra.Command{
		Use:   "install-config",
		Short: "Print the MCP host config entry for this binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner()
			if err != nil {
				return err
			}
			return r.InstallConfig(name, withToken)
		},
	}

	cmd.Flags().StringVar(&name, "name", "fastctx", "Server name in the host config")
	cmd.Flags().BoolVar(&withToken, "with-token", false, "Include ACCESS_TOKEN in the entry")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s (MCP %s)\n", mcp.ServerName, version, mcp.ProtocolVersion)
		},
	}
}
