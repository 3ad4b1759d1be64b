// Answer and fallback formatting.
//
// Information Hiding:
// - Answer XML parsing hidden
// - Keyword filtering and output layout hidden

package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jsonx "github.com/richinex/fastctx/internal/json"
	"github.com/richinex/fastctx/tools"
)

var (
	fileRe  = regexp.MustCompile(`<file\s+path="([^"]+)">([\s\S]*?)</file>`)
	rangeRe = regexp.MustCompile(`<range>(\d+)-(\d+)</range>`)
)

// minKeywordLen is the shortest rg pattern listed as a keyword.
const minKeywordLen = 3

// AnswerFile is one file reported by the model.
type AnswerFile struct {
	Path   string
	Ranges [][2]int
}

// ParseAnswer extracts the files and line ranges from answer XML. Paths
// are converted to real paths under the workspace root.
func ParseAnswer(xml string, ws *tools.Workspace) []AnswerFile {
	var files []AnswerFile
	for _, m := range fileRe.FindAllStringSubmatch(xml, -1) {
		f := AnswerFile{Path: ws.ProjectPath(m[1])}
		for _, r := range rangeRe.FindAllStringSubmatch(m[2], -1) {
			start, err1 := strconv.Atoi(r[1])
			end, err2 := strconv.Atoi(r[2])
			if err1 != nil || err2 != nil {
				continue
			}
			f.Ranges = append(f.Ranges, [2]int{start, end})
		}
		files = append(files, f)
	}
	return files
}

// embeddedAnswer finds an answer payload the model wrote as plain or fenced
// JSON instead of calling the answer tool.
func embeddedAnswer(text string) (string, bool) {
	payload, err := jsonx.ExtractObject[struct {
		Answer string `json:"answer"`
	}](text)
	if err != nil || !strings.Contains(payload.Answer, "<ANSWER") {
		return "", false
	}
	return payload.Answer, true
}

// FormatAnswer renders the answer returned through the answer tool.
func FormatAnswer(xml string, ws *tools.Workspace, patterns []string, req Request) string {
	files := ParseAnswer(xml, ws)

	var lines []string
	if len(files) == 0 {
		lines = append(lines, "No relevant files found.")
	} else {
		lines = append(lines, fmt.Sprintf("Found %d relevant files.", len(files)), "")
	}
	for i, f := range files {
		line := fmt.Sprintf("  [%d/%d] %s", i+1, len(files), f.Path)
		if len(f.Ranges) > 0 {
			spans := make([]string, len(f.Ranges))
			for j, r := range f.Ranges {
				spans[j] = fmt.Sprintf("L%d-%d", r[0], r[1])
			}
			line += " (" + strings.Join(spans, ", ") + ")"
		}
		lines = append(lines, line)
	}
	lines = appendFooter(lines, patterns, req, "")
	return strings.Join(lines, "\n")
}

// FormatFallback renders the partial result used when the turn budget runs
// out. files are the /codebase paths opened during the search.
func FormatFallback(files []string, ws *tools.Workspace, patterns []string, req Request) string {
	if len(files) == 0 {
		return "Max turns reached without answer"
	}

	lines := []string{fmt.Sprintf("Found %d files (max turns reached, partial result).", len(files)), ""}
	for i, f := range files {
		lines = append(lines, fmt.Sprintf("  [%d/%d] %s", i+1, len(files), ws.ProjectPath(f)))
	}
	lines = appendFooter(lines, patterns, req, " (timeout fallback)")
	return strings.Join(lines, "\n")
}

func appendFooter(lines, patterns []string, req Request, suffix string) []string {
	if kw := keywords(patterns); len(kw) > 0 {
		lines = append(lines, "", "grep keywords: "+strings.Join(kw, ", "))
	}
	return append(lines, "", fmt.Sprintf("[config] tree_depth=%d, max_turns=%d%s", req.TreeDepth, req.MaxTurns, suffix))
}

func keywords(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if len(p) >= minKeywordLen {
			out = append(out, p)
		}
	}
	return out
}
