package tools

import (
	"context"
	"strings"
)

const (
	repoMapLineLimit = 2000
	repoMapMaxBytes  = 250 * 1024
)

// repoMapSkip lists directory names never shown in the repo map.
var repoMapSkip = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".venv":        true,
	"__pycache__":  true,
	"vendor":       true,
	".cache":       true,
}

// RepoMap renders the project as a /codebase tree of the given depth for
// the first user message. Hidden, ignored and well-known build directories
// are left out. When the map exceeds 250 KiB it is rebuilt one level
// shallower, down to depth 1.
func RepoMap(ctx context.Context, ws *Workspace, depth int) string {
	for {
		w := &treeWalker{
			maxDepth: depth,
			limit:    repoMapLineLimit,
			skip: func(name, full string, isDir bool) bool {
				return strings.HasPrefix(name, ".") || repoMapSkip[name] || ws.Ignored(full, isDir)
			},
			lines: []string{VirtualRoot},
		}
		w.walk(ctx, ws.Root(), "", 0)

		out := strings.Join(w.lines, "\n")
		if len(out) <= repoMapMaxBytes || depth <= 1 {
			return out
		}
		depth--
	}
}
