// Batch executor for restricted_exec.
//
// Information Hiding:
// - Concurrent dispatch and result ordering hidden
// - Per-command timeout and panic capture hidden
// - Accumulation of searched patterns and opened files hidden

package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/richinex/fastctx/internal/dsa"
	jsonx "github.com/richinex/fastctx/internal/json"
)

// DefaultCommandTimeout bounds a single command.
const DefaultCommandTimeout = 30 * time.Second

// ExecutorConfig holds batch execution settings.
// The zero value is usable.
type ExecutorConfig struct {
	// CommandTimeout bounds each command. Defaults to DefaultCommandTimeout.
	CommandTimeout time.Duration
	// MaxParallel bounds concurrently running commands. Zero means one
	// goroutine per command.
	MaxParallel int
}

func (c ExecutorConfig) timeout() time.Duration {
	if c.CommandTimeout <= 0 {
		return DefaultCommandTimeout
	}
	return c.CommandTimeout
}

// Executor runs restricted_exec batches for one search and remembers what
// the model searched for and opened.
type Executor struct {
	ws     *Workspace
	config ExecutorConfig
	logger zerolog.Logger

	mu       sync.Mutex
	patterns *dsa.OrderedSet
	files    *dsa.OrderedSet
}

// NewExecutor creates an executor over ws.
func NewExecutor(ws *Workspace, config ExecutorConfig, logger zerolog.Logger) *Executor {
	return &Executor{
		ws:       ws,
		config:   config,
		logger:   logger.With().Str("component", "executor").Logger(),
		patterns: dsa.NewOrderedSet(),
		files:    dsa.NewOrderedSet(),
	}
}

// ExecuteBatch runs every commandN entry of args concurrently and returns
// the results in key order, each wrapped in <commandN_result> tags.
// A failing or panicking command only affects its own result.
func (e *Executor) ExecuteBatch(ctx context.Context, args map[string]any) string {
	if args == nil {
		return "(invalid args)"
	}

	keys := jsonx.CommandKeys(args)
	results := make([]string, len(keys))

	p := pool.New()
	if e.config.MaxParallel > 0 {
		p = p.WithMaxGoroutines(e.config.MaxParallel)
	}

	start := time.Now()
	for i, key := range keys {
		i, key := i, key
		raw, ok := args[key].(map[string]any)
		if !ok {
			results[i] = wrapResult(key, "Error: command must be an object")
			continue
		}
		cmd, err := ParseCommand(raw)
		if err != nil {
			results[i] = wrapResult(key, "Error: "+err.Error())
			continue
		}
		e.record(cmd)

		p.Go(func() {
			results[i] = wrapResult(key, e.run(ctx, key, cmd))
		})
	}
	p.Wait()

	e.logger.Debug().
		Int("commands", len(keys)).
		Dur("elapsed", time.Since(start)).
		Msg("batch complete")
	return strings.Join(results, "")
}

func (e *Executor) run(ctx context.Context, key string, cmd Command) (out string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("command", key).Interface("panic", r).Msg("command panicked")
			out = fmt.Sprintf("Error: %s command failed: %v", cmd.Kind(), r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.config.timeout())
	defer cancel()
	return cmd.Run(ctx, e.ws)
}

// record accumulates rg patterns and readfile paths.
func (e *Executor) record(cmd Command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch c := cmd.(type) {
	case *RgCommand:
		e.patterns.Add(c.Pattern)
	case *ReadFileCommand:
		if c.File != "" {
			e.files.Add(c.File)
		}
	}
}

// Patterns returns the distinct rg patterns in first-use order.
func (e *Executor) Patterns() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.patterns.Items()
}

// Files returns the distinct readfile paths in first-use order.
func (e *Executor) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.files.Items()
}

func wrapResult(key, output string) string {
	return fmt.Sprintf("<%s_result>\n%s\n</%s_result>", key, output, key)
}
