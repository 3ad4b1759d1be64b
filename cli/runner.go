// Command execution for CLI commands.
//
// Information Hiding:
// - Settings and logger setup hidden
// - Searcher wiring (relay, search log) hidden
// - Output formatting hidden

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/fastctx/agent"
	"github.com/richinex/fastctx/config"
	"github.com/richinex/fastctx/internal/logging"
	"github.com/richinex/fastctx/llm"
	"github.com/richinex/fastctx/mcp"
	"github.com/richinex/fastctx/model"
	"github.com/richinex/fastctx/relay"
	"github.com/richinex/fastctx/storage"
)

// Options holds CLI execution options.
type Options struct {
	ConfigPath string
	// LogLevel overrides the configured level when set.
	LogLevel string
	Pretty   bool
	Verbose  bool
}

// Runner executes CLI commands against loaded settings.
type Runner struct {
	Settings config.Settings
	Logger   zerolog.Logger
	Out      io.Writer
	Verbose  bool
}

// NewRunner loads settings and builds the stderr logger.
func NewRunner(opts Options) (*Runner, error) {
	settings, err := config.New(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		level, err := zerolog.ParseLevel(strings.ToLower(opts.LogLevel))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q", opts.LogLevel)
		}
		settings.Log.Level = level
	}

	logger := logging.New(logging.Options{
		Level:  settings.Log.Level,
		Pretty: settings.Log.Pretty || opts.Pretty,
	})

	return &Runner{
		Settings: settings,
		Logger:   logger,
		Out:      os.Stdout,
		Verbose:  opts.Verbose,
	}, nil
}

// Serve runs the MCP server on stdin/stdout until the input ends or ctx is
// cancelled.
func (r *Runner) Serve(ctx context.Context, version string) error {
	searcher, cleanup, err := r.searcher()
	if err != nil {
		return err
	}
	defer cleanup()

	server := mcp.NewServer(mcp.NewTransport(os.Stdin, os.Stdout), searcher, version, r.Logger)
	server.MaxCommands = r.Settings.Search.MaxCommands

	r.Logger.Info().
		Str("relay", r.Settings.Relay.URL).
		Bool("search_log", r.Settings.Storage.Path != "").
		Msg("MCP server ready")
	return server.Serve(ctx)
}

// Search runs one search and prints its result.
func (r *Runner) Search(ctx context.Context, req agent.Request) error {
	searcher, cleanup, err := r.searcher()
	if err != nil {
		return err
	}
	defer cleanup()

	if req.MaxCommands == 0 {
		req.MaxCommands = r.Settings.Search.MaxCommands
	}
	resp := searcher.Search(ctx, req)

	if r.Verbose {
		r.printSteps(resp.Steps)
	}
	fmt.Fprintln(r.Out, resp.ResultText())
	fmt.Fprintf(r.Out, "\n(%d turns, %d commands, %s)\n", resp.Turns, resp.Calls, resp.Elapsed.Round(time.Millisecond))

	switch resp.Type {
	case agent.ResponseSuccess:
		return nil
	case agent.ResponseTimeout:
		return fmt.Errorf("search timed out")
	default:
		return fmt.Errorf("search failed: %s", resp.Error)
	}
}

// searcher wires the relay and the optional local search log. cleanup
// drains pending reports before closing the log.
func (r *Runner) searcher() (*agent.Searcher, func(), error) {
	if r.Settings.Relay.AccessToken == "" {
		r.Logger.Warn().Msg("no ACCESS_TOKEN or WINDSURF_API_KEY set; the relay will likely reject credential requests")
	}

	httpClient := &http.Client{}
	relayClient := relay.NewClient(r.Settings.Relay.URL, r.Settings.Relay.AccessToken, httpClient, r.Logger)

	builder := agent.NewBuilder(relayClient).
		Providers(agent.WindsurfProviders(httpClient, r.Logger)).
		Reporter(relayClient).
		Logger(r.Logger).
		MaxParallel(r.Settings.Search.MaxParallel).
		CommandTimeout(r.Settings.Search.CommandTimeout)

	var searchLog *storage.SearchLog
	if path := r.Settings.Storage.Path; path != "" {
		var err error
		searchLog, err = storage.OpenSqlite(path)
		if err != nil {
			return nil, nil, err
		}
		builder.Reporter(searchLog)
	}

	searcher := builder.Build()
	cleanup := func() {
		searcher.Wait()
		if searchLog != nil {
			if err := searchLog.Close(); err != nil {
				r.Logger.Warn().Err(err).Msg("close search log")
			}
		}
	}
	return searcher, cleanup, nil
}

// HistoryOptions selects what History prints.
type HistoryOptions struct {
	Status model.SearchStatus
	Limit  int
	Stats  bool
	// PruneBefore removes entries older than this age when positive.
	PruneBefore time.Duration
}

// History prints recent searches from the local search log.
func (r *Runner) History(ctx context.Context, opts HistoryOptions) error {
	path := r.Settings.Storage.Path
	if path == "" {
		return fmt.Errorf("search log disabled: set FASTCTX_DB or storage.path")
	}
	searchLog, err := storage.OpenSqlite(path)
	if err != nil {
		return err
	}
	defer searchLog.Close()

	if opts.PruneBefore > 0 {
		n, err := searchLog.Prune(ctx, time.Now().Add(-opts.PruneBefore))
		if err != nil {
			return err
		}
		fmt.Fprintf(r.Out, "Pruned %d entries.\n", n)
		return nil
	}

	if opts.Stats {
		stats, err := searchLog.Stats(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(r.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STATUS\tCOUNT\tAVG MS")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Status, s.Count, s.AvgDurationMs)
		}
		return tw.Flush()
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries, err := searchLog.Recent(ctx, opts.Status, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.Out, "No searches recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(r.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATUS\tMS\tQUERY\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Status, e.DurationMs,
			truncateString(e.Query, maxQueryLen), truncateString(e.ErrorMsg, maxErrorLen))
	}
	return tw.Flush()
}

// ListTools prints the host-facing tool and the backend tool schema.
func (r *Runner) ListTools(verbose bool) error {
	info := mcp.SearchTool()

	fmt.Fprintln(r.Out, "Host tool:")
	fmt.Fprintln(r.Out)
	fmt.Fprintf(r.Out, "  %s\n", info.Name)
	fmt.Fprintf(r.Out, "    %s\n", firstLine(info.Description))
	fmt.Fprintln(r.Out, "    Parameters:")
	for _, param := range mcp.Parameters(info) {
		req := ""
		if param.Required {
			req = "*"
		}
		fmt.Fprintf(r.Out, "      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
	}
	fmt.Fprintln(r.Out)

	defs := agent.ToolDefinitions(r.Settings.Search.MaxCommands)
	if !verbose {
		fmt.Fprintf(r.Out, "Backend tools: %s, %s (up to %d commands per call)\n",
			agent.ExecTool, agent.AnswerTool, r.Settings.Search.MaxCommands)
		return nil
	}

	var pretty any
	if err := json.Unmarshal([]byte(defs), &pretty); err != nil {
		return fmt.Errorf("decode tool definitions: %w", err)
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(r.Out, "Backend tools:")
	fmt.Fprintln(r.Out, string(out))
	return nil
}

// ProbeOptions selects the server to probe and an optional search to run.
type ProbeOptions struct {
	// ConfigPath names an MCP host config file. When empty the current
	// executable is launched with "serve".
	ConfigPath string
	Server     string
	Query      string
	Project    string
}

// Probe launches an MCP server, lists its tools and optionally runs a
// search through it.
func (r *Runner) Probe(ctx context.Context, opts ProbeOptions) error {
	target, err := probeTarget(opts)
	if err != nil {
		return err
	}

	client, err := mcp.NewClient(ctx, target)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Fprintf(r.Out, "Connected to %s\n", client.ServerName())

	infos, err := client.ListTools(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(r.Out, "  %s (%d parameters)\n", info.Name, len(mcp.Parameters(info)))
	}

	if opts.Query == "" {
		return nil
	}

	args := map[string]any{"query": opts.Query}
	if opts.Project != "" {
		args["project_path"] = opts.Project
	}
	result, err := client.CallTool(ctx, mcp.SearchToolName, args)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.Out)
	fmt.Fprintln(r.Out, result.Text())
	if result.IsError {
		return fmt.Errorf("search returned an error")
	}
	return nil
}

func probeTarget(opts ProbeOptions) (mcp.ServerConfig, error) {
	if opts.ConfigPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return mcp.ServerConfig{}, fmt.Errorf("locate executable: %w", err)
		}
		return mcp.ServerConfig{Command: exe, Args: []string{"serve"}}, nil
	}

	cfg, err := mcp.LoadConfig(opts.ConfigPath)
	if err != nil {
		return mcp.ServerConfig{}, err
	}
	name := opts.Server
	if name == "" {
		names := cfg.Names()
		if len(names) != 1 {
			return mcp.ServerConfig{}, fmt.Errorf("config lists %d servers, choose one with --server", len(names))
		}
		name = names[0]
	}
	return cfg.Server(name)
}

// InstallConfig prints the host configuration entry for this binary.
func (r *Runner) InstallConfig(name string, includeToken bool) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	env := map[string]string{"RELAY_URL": r.Settings.Relay.URL}
	if includeToken && r.Settings.Relay.AccessToken != "" {
		env["ACCESS_TOKEN"] = r.Settings.Relay.AccessToken
	}
	if r.Settings.Storage.Path != "" {
		env["FASTCTX_DB"] = r.Settings.Storage.Path
	}

	out, err := mcp.Registration(name, exe, env).JSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(r.Out, out)
	return nil
}

const defaultHistoryLimit = 20

// Output truncation limits
const (
	maxThinkingLen = 200
	maxQueryLen    = 60
	maxErrorLen    = 60
)

func (r *Runner) printSteps(steps []agent.Step) {
	fmt.Fprintln(r.Out, "--- Steps ---")
	for _, step := range steps {
		fmt.Fprintf(r.Out, "[%d] %s (%d commands", step.Turn, step.Tool, step.Commands)
		if step.Repair != llm.RepairNone {
			fmt.Fprintf(r.Out, ", args %s", step.Repair)
		}
		fmt.Fprintln(r.Out, ")")
		if step.Thinking != "" {
			fmt.Fprintf(r.Out, "    %s\n", truncateString(step.Thinking, maxThinkingLen))
		}
	}
	fmt.Fprintln(r.Out, "-------------")
	fmt.Fprintln(r.Out)
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
