package tools

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"
)

const (
	// VirtualRoot is the path the model sees for the project root.
	VirtualRoot = "/codebase"

	// ResultMaxLines is the most lines any single command returns.
	ResultMaxLines = 50
	// LineMaxChars is the most characters kept per output line.
	LineMaxChars = 250

	truncatedMarker = "... (lines truncated) ..."
)

// Workspace maps virtual /codebase paths onto one project directory.
type Workspace struct {
	root   string
	ignore *ignore.GitIgnore
}

// NewWorkspace creates a workspace rooted at projectRoot. The root is made
// absolute and symlinks are resolved when possible. A .gitignore at the
// root, if present, is honoured by tree listings.
func NewWorkspace(projectRoot string) *Workspace {
	root := projectRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	ws := &Workspace{root: root}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		ws.ignore = gi
	}
	return ws
}

// Root returns the real project root.
func (w *Workspace) Root() string {
	return w.root
}

// RealPath converts a path given by the model into a real path.
// /codebase paths are resolved under the root; other absolute paths must
// already lie inside the root; relative paths are taken from the root.
func (w *Workspace) RealPath(p string) (string, error) {
	var real string
	switch {
	case p == VirtualRoot || strings.HasPrefix(p, VirtualRoot+"/"):
		rel := strings.TrimLeft(strings.TrimPrefix(p, VirtualRoot), "/")
		real = filepath.Join(w.root, filepath.FromSlash(rel))
	case filepath.IsAbs(p):
		real = filepath.Clean(p)
	default:
		real = filepath.Join(w.root, filepath.FromSlash(p))
	}

	if !w.contains(real) {
		return "", fmt.Errorf("path outside workspace: %s", p)
	}
	return real, nil
}

func (w *Workspace) contains(real string) bool {
	rel, err := filepath.Rel(w.root, real)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// VirtualPath converts a real path under the root to its /codebase form.
func (w *Workspace) VirtualPath(real string) string {
	rel, err := filepath.Rel(w.root, real)
	if err != nil || !w.contains(real) {
		return real
	}
	if rel == "." {
		return VirtualRoot
	}
	return VirtualRoot + "/" + filepath.ToSlash(rel)
}

// ProjectPath converts a path reported by the model into a real path for
// display. It does not check that the path exists or lies in the root.
func (w *Workspace) ProjectPath(p string) string {
	switch {
	case p == VirtualRoot:
		return w.root
	case strings.HasPrefix(p, VirtualRoot+"/"):
		return filepath.Join(w.root, filepath.FromSlash(strings.TrimPrefix(p, VirtualRoot+"/")))
	case filepath.IsAbs(p):
		return filepath.Clean(p)
	default:
		return filepath.Join(w.root, filepath.FromSlash(p))
	}
}

// Remap replaces every occurrence of the real root in text with /codebase.
func (w *Workspace) Remap(text string) string {
	return strings.ReplaceAll(text, w.root, VirtualRoot)
}

// Ignored reports whether a real path is excluded by the root .gitignore.
func (w *Workspace) Ignored(real string, isDir bool) bool {
	if w.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.root, real)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	return w.ignore.MatchesPath(rel)
}

// Truncate limits text to ResultMaxLines lines of at most LineMaxChars
// characters, adding a marker line when lines were dropped.
func Truncate(text string) string {
	lines := splitLines(text)
	limit := min(len(lines), ResultMaxLines)

	out := make([]string, 0, limit+1)
	for _, line := range lines[:limit] {
		out = append(out, truncateLine(line))
	}
	if len(lines) > ResultMaxLines {
		out = append(out, truncatedMarker)
	}
	return strings.Join(out, "\n")
}

func truncateLine(line string) string {
	if utf8.RuneCountInString(line) <= LineMaxChars {
		return line
	}
	n := 0
	for i := range line {
		if n == LineMaxChars {
			return line[:i]
		}
		n++
	}
	return line
}

// splitLines splits on newlines, drops one trailing empty line and strips
// carriage returns.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
