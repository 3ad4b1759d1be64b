// Glob command for file discovery.
//
// Returns /codebase paths whose names match a pattern, without reading
// content. Patterns containing ** also descend into subdirectories.

package tools

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// GlobMaxResults is the most matches one glob returns.
	GlobMaxResults = 100
	// globMaxDepth bounds recursion for ** patterns.
	globMaxDepth = 10
)

// GlobCommand finds entries under Path matching Pattern.
// TypeFilter is "file", "directory" or "all".
type GlobCommand struct {
	Pattern    string
	Path       string
	TypeFilter string
}

func (*GlobCommand) command() {}

// Kind returns "glob".
func (*GlobCommand) Kind() string { return KindGlob }

// Run walks Path and returns sorted matches, one per line.
func (c *GlobCommand) Run(ctx context.Context, ws *Workspace) string {
	base, err := ws.RealPath(c.Path)
	if err != nil {
		return "Error: " + err.Error()
	}

	pattern := strings.TrimPrefix(filepath.ToSlash(c.Pattern), "./")
	recursive := strings.Contains(pattern, "**")

	var matches []string
	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if len(matches) >= GlobMaxResults || depth > globMaxDepth || ctx.Err() != nil {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if len(matches) >= GlobMaxResults {
				return
			}
			full := filepath.Join(dir, e.Name())
			isDir := isDirEntry(e, full)

			if c.matches(base, full, pattern) && c.typeAllowed(isDir) {
				matches = append(matches, full)
			}
			if recursive && isDir && !strings.HasPrefix(e.Name(), ".") {
				walk(full, depth+1)
			}
		}
	}
	walk(base, 0)

	if len(matches) == 0 {
		return noMatches
	}
	sort.Strings(matches)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = ws.VirtualPath(m)
	}
	return strings.Join(out, "\n")
}

func (c *GlobCommand) matches(base, full, pattern string) bool {
	if !strings.Contains(pattern, "/") {
		return matchPattern(pattern, filepath.Base(full))
	}
	rel, err := filepath.Rel(base, full)
	if err != nil {
		return false
	}
	return matchGlobPattern(rel, pattern)
}

func (c *GlobCommand) typeAllowed(isDir bool) bool {
	switch c.TypeFilter {
	case "file":
		return !isDir
	case "directory":
		return isDir
	default:
		return true
	}
}

// matchGlobPattern matches a relative path against a pattern with ** support.
func matchGlobPattern(path, pattern string) bool {
	path = filepath.ToSlash(path)

	parts := strings.Split(pattern, "**")
	if len(parts) == 1 {
		return matchPattern(pattern, path)
	}

	// src/**/*.go: prefix before the first **, suffix after the last.
	prefix := strings.TrimSuffix(parts[0], "/")
	if prefix != "" && path != prefix && !strings.HasPrefix(path, prefix+"/") {
		return false
	}

	suffix := strings.TrimPrefix(parts[len(parts)-1], "/")
	if suffix == "" {
		return true
	}
	if !strings.Contains(suffix, "/") {
		return matchPattern(suffix, filepath.Base(path))
	}
	if strings.HasSuffix(path, suffix) {
		return true
	}
	depth := strings.Count(suffix, "/") + 1
	segs := strings.Split(path, "/")
	if len(segs) < depth {
		return false
	}
	return matchPattern(suffix, strings.Join(segs[len(segs)-depth:], "/"))
}

// matchPattern wraps filepath.Match, returning false on error.
func matchPattern(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}
