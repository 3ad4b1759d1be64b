// Filesystem commands - readfile, tree, ls.
//
// Information Hiding:
// - Directory walking and entry ordering hidden
// - Hidden-entry and .gitignore filtering hidden
// - Error text for missing files and directories internalized

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultTreeLevels is the tree depth used when none is given.
	DefaultTreeLevels = 3

	// treeLineLimit stops a tree walk early on very large directories.
	treeLineLimit = 500
)

// ReadFileCommand reads a file with an optional 1-indexed inclusive range.
// Zero means unset.
type ReadFileCommand struct {
	File      string
	StartLine int
	EndLine   int
}

func (*ReadFileCommand) command() {}

// Kind returns "readfile".
func (*ReadFileCommand) Kind() string { return KindReadFile }

// Run returns the requested lines prefixed with their line numbers.
func (c *ReadFileCommand) Run(ctx context.Context, ws *Workspace) string {
	real, err := ws.RealPath(c.File)
	if err != nil {
		return "Error: " + err.Error()
	}
	data, err := os.ReadFile(real)
	if err != nil {
		return fmt.Sprintf("Error: file not found: %s", c.File)
	}

	lines := splitLines(string(data))
	start := max(c.StartLine, 1) - 1
	end := len(lines)
	if c.EndLine > 0 && c.EndLine < end {
		end = c.EndLine
	}
	if start >= end {
		return fmt.Sprintf("(no lines in range %d-%d, file has %d lines)", c.StartLine, c.EndLine, len(lines))
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d:%s", i+1, lines[i])
	}
	return Truncate(b.String())
}

// TreeCommand renders a directory tree.
type TreeCommand struct {
	Path   string
	Levels int
}

func (*TreeCommand) command() {}

// Kind returns "tree".
func (*TreeCommand) Kind() string { return KindTree }

// Run renders the tree below Path, skipping hidden and ignored entries.
func (c *TreeCommand) Run(ctx context.Context, ws *Workspace) string {
	real, err := ws.RealPath(c.Path)
	if err != nil {
		return "Error: " + err.Error()
	}
	if info, err := os.Stat(real); err != nil || !info.IsDir() {
		return fmt.Sprintf("Error: dir not found: %s", c.Path)
	}

	levels := c.Levels
	if levels <= 0 {
		levels = DefaultTreeLevels
	}

	w := &treeWalker{
		maxDepth: levels,
		limit:    treeLineLimit,
		skip: func(name, full string, isDir bool) bool {
			return strings.HasPrefix(name, ".") || ws.Ignored(full, isDir)
		},
		lines: []string{c.Path},
	}
	w.walk(ctx, real, "", 0)
	return Truncate(ws.Remap(strings.Join(w.lines, "\n")))
}

// LsCommand lists one directory.
type LsCommand struct {
	Path       string
	LongFormat bool
	All        bool
}

func (*LsCommand) command() {}

// Kind returns "ls".
func (*LsCommand) Kind() string { return KindLs }

// Run lists the directory, sorted by name.
func (c *LsCommand) Run(ctx context.Context, ws *Workspace) string {
	real, err := ws.RealPath(c.Path)
	if err != nil {
		return "Error: " + err.Error()
	}
	entries, err := os.ReadDir(real)
	if err != nil {
		return fmt.Sprintf("Error: dir not found: %s", c.Path)
	}

	var names []string
	for _, e := range entries {
		if c.All || !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if !c.LongFormat {
		return Truncate(strings.Join(names, "\n"))
	}

	lines := []string{fmt.Sprintf("total %d", len(names))}
	for _, name := range names {
		info, err := os.Stat(filepath.Join(real, name))
		if err != nil {
			continue
		}
		kind := "-"
		if info.IsDir() {
			kind = "d"
		}
		lines = append(lines, fmt.Sprintf("%srwxr-xr-x %8d %s", kind, info.Size(), name))
	}
	return Truncate(ws.Remap(strings.Join(lines, "\n")))
}

// treeWalker renders box-drawing trees for tree and the repo map.
type treeWalker struct {
	maxDepth int
	limit    int
	skip     func(name, full string, isDir bool) bool
	lines    []string
}

func (w *treeWalker) full() bool {
	return len(w.lines) >= w.limit
}

func (w *treeWalker) walk(ctx context.Context, dir, prefix string, depth int) {
	if depth >= w.maxDepth || w.full() || ctx.Err() != nil {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	kept := entries[:0]
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if !w.skip(e.Name(), full, isDirEntry(e, full)) {
			kept = append(kept, e)
		}
	}

	for i, e := range kept {
		if w.full() {
			return
		}
		last := i == len(kept)-1
		connector, indent := "├── ", "│   "
		if last {
			connector, indent = "└── ", "    "
		}
		w.lines = append(w.lines, prefix+connector+e.Name())

		full := filepath.Join(dir, e.Name())
		if isDirEntry(e, full) {
			w.walk(ctx, full, prefix+indent, depth+1)
		}
	}
}

// isDirEntry follows symlinks the way os.Stat does.
func isDirEntry(e os.DirEntry, full string) bool {
	if e.Type()&os.ModeSymlink == 0 {
		return e.IsDir()
	}
	info, err := os.Stat(full)
	return err == nil && info.IsDir()
}
