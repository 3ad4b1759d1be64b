// Search request and searcher configuration.
//
// Information Hiding:
// - Default values and range clamping hidden

package agent

import (
	"time"

	"github.com/richinex/fastctx/tools"
)

const (
	DefaultTreeDepth   = 3
	DefaultMaxTurns    = 5
	DefaultMaxResults  = 10
	DefaultMaxCommands = 8

	// DefaultReportTimeout bounds each fire-and-forget report.
	DefaultReportTimeout = 5 * time.Second
)

// Request describes one search.
type Request struct {
	Query       string
	ProjectRoot string
	TreeDepth   int
	MaxTurns    int
	MaxResults  int
	// MaxCommands is the number of commandN slots offered per turn.
	MaxCommands int
}

// normalize fills unset fields and clamps the rest to their ranges.
func (r Request) normalize() Request {
	r.TreeDepth = clamp(r.TreeDepth, DefaultTreeDepth, 1, 6)
	r.MaxTurns = clamp(r.MaxTurns, DefaultMaxTurns, 1, 5)
	r.MaxResults = clamp(r.MaxResults, DefaultMaxResults, 1, 30)
	r.MaxCommands = clamp(r.MaxCommands, DefaultMaxCommands, 1, 32)
	if r.ProjectRoot == "" {
		r.ProjectRoot = "."
	}
	return r
}

func clamp(v, def, lo, hi int) int {
	if v == 0 {
		return def
	}
	return max(lo, min(v, hi))
}

// Config holds searcher-wide settings.
type Config struct {
	Executor      tools.ExecutorConfig
	ReportTimeout time.Duration
}

// DefaultConfig returns the default searcher configuration.
func DefaultConfig() Config {
	return Config{ReportTimeout: DefaultReportTimeout}
}
