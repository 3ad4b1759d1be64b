// Ripgrep command - fast repository search.
//
// Information Hiding:
// - Ripgrep command construction hidden
// - Exit code interpretation abstracted
// - Root path rewriting to /codebase internalized

package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// rgMaxCount bounds matches per file.
const rgMaxCount = 50

const noMatches = "(no matches)"

// RgCommand searches Path for Pattern.
type RgCommand struct {
	Pattern string
	Path    string
	Include []string
	Exclude []string
}

func (*RgCommand) command() {}

// Kind returns "rg".
func (*RgCommand) Kind() string { return KindRg }

// Args builds the rg argument list for a resolved search path.
func (c *RgCommand) Args(searchPath string) []string {
	args := []string{"--no-heading", "-n", "--color=never", "--max-count", strconv.Itoa(rgMaxCount)}
	for _, g := range c.Include {
		args = append(args, "--glob", g)
	}
	for _, g := range c.Exclude {
		args = append(args, "--glob", "!"+g)
	}
	return append(args, "--", c.Pattern, searchPath)
}

// Run executes rg. Exit status 1 means no matches.
func (c *RgCommand) Run(ctx context.Context, ws *Workspace) string {
	real, err := ws.RealPath(c.Path)
	if err != nil {
		return "Error: " + err.Error()
	}
	if _, err := os.Stat(real); err != nil {
		return fmt.Sprintf("Error: path does not exist: %s", c.Path)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "rg", c.Args(real)...)
	cmd.Dir = ws.Root()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "Error: rg timed out"
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Sprintf("Error: failed to execute rg: %v", err)
		}
		if exitErr.ExitCode() == 1 || stderr.Len() == 0 {
			return noMatches
		}
		return Truncate(ws.Remap(stderr.String()))
	}

	if stdout.Len() == 0 {
		return noMatches
	}
	return Truncate(ws.Remap(stdout.String()))
}
