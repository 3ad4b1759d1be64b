package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeArgs(t *testing.T, s string) map[string]any {
	t.Helper()
	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &args))
	return args
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Command
	}{
		{
			name: "rg with globs",
			raw:  `{"type":"rg","pattern":"Foo","path":"/codebase/src","include":["*.go"],"exclude":["vendor/**"]}`,
			want: &RgCommand{Pattern: "Foo", Path: "/codebase/src", Include: []string{"*.go"}, Exclude: []string{"vendor/**"}},
		},
		{
			name: "readfile range",
			raw:  `{"type":"readfile","file":"/codebase/a.go","start_line":10,"end_line":20}`,
			want: &ReadFileCommand{File: "/codebase/a.go", StartLine: 10, EndLine: 20},
		},
		{
			name: "tree defaults",
			raw:  `{"type":"tree"}`,
			want: &TreeCommand{Path: "/codebase", Levels: DefaultTreeLevels},
		},
		{
			name: "ls flags",
			raw:  `{"type":"ls","path":"/codebase","long_format":true,"all":true}`,
			want: &LsCommand{Path: "/codebase", LongFormat: true, All: true},
		},
		{
			name: "glob defaults",
			raw:  `{"type":"glob"}`,
			want: &GlobCommand{Pattern: "*", Path: "/codebase", TypeFilter: "all"},
		},
		{
			name: "bad numbers ignored",
			raw:  `{"type":"readfile","file":"x","start_line":-3,"end_line":"7"}`,
			want: &ReadFileCommand{File: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(decodeArgs(t, tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandUnknown(t *testing.T) {
	_, err := ParseCommand(map[string]any{"type": "bash"})
	require.EqualError(t, err, "unknown command type 'bash'")
}

func TestCommandSpecsCoverKinds(t *testing.T) {
	var kinds []string
	for _, s := range CommandSpecs() {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []string{KindRg, KindReadFile, KindTree, KindLs, KindGlob}, kinds)
}

func TestExecuteBatchOrderAndTags(t *testing.T) {
	ws := NewWorkspace(writeTree(t, map[string]string{
		"a.txt": "alpha\n",
		"b.txt": "beta\n",
	}))
	ex := NewExecutor(ws, ExecutorConfig{}, zerolog.Nop())

	args := decodeArgs(t, `{
		"command10": {"type": "readfile", "file": "/codebase/b.txt"},
		"command2": {"type": "readfile", "file": "/codebase/a.txt"},
		"command1": {"type": "ls", "path": "/codebase"},
		"note": "ignored"
	}`)

	out := ex.ExecuteBatch(context.Background(), args)
	want := "<command1_result>\na.txt\nb.txt\n</command1_result>" +
		"<command2_result>\n1:alpha\n</command2_result>" +
		"<command10_result>\n1:beta\n</command10_result>"
	assert.Equal(t, want, out)
	assert.Equal(t, []string{"/codebase/a.txt", "/codebase/b.txt"}, ex.Files())
}

func TestExecuteBatchIsolatesFailures(t *testing.T) {
	ws := NewWorkspace(writeTree(t, map[string]string{"ok.txt": "fine\n"}))
	ex := NewExecutor(ws, ExecutorConfig{MaxParallel: 2}, zerolog.Nop())

	args := decodeArgs(t, `{
		"command1": {"type": "readfile", "file": "/codebase/missing.txt"},
		"command2": {"type": "bash", "cmd": "rm -rf /"},
		"command3": "not an object",
		"command4": {"type": "readfile", "file": "/codebase/ok.txt"}
	}`)

	out := ex.ExecuteBatch(context.Background(), args)
	assert.Contains(t, out, "<command1_result>\nError: file not found: /codebase/missing.txt\n</command1_result>")
	assert.Contains(t, out, "<command2_result>\nError: unknown command type 'bash'\n</command2_result>")
	assert.Contains(t, out, "<command3_result>\nError: command must be an object\n</command3_result>")
	assert.Contains(t, out, "<command4_result>\n1:fine\n</command4_result>")
}

type panicCommand struct{}

func (panicCommand) command()     {}
func (panicCommand) Kind() string { return "panic" }

func (panicCommand) Run(context.Context, *Workspace) string {
	panic("boom")
}

func TestExecutorRunRecoversPanic(t *testing.T) {
	ex := NewExecutor(NewWorkspace(t.TempDir()), ExecutorConfig{}, zerolog.Nop())
	out := ex.run(context.Background(), "command1", panicCommand{})
	assert.Equal(t, "Error: panic command failed: boom", out)
}

func TestExecuteBatchNilArgs(t *testing.T) {
	ex := NewExecutor(NewWorkspace(t.TempDir()), ExecutorConfig{}, zerolog.Nop())
	assert.Equal(t, "(invalid args)", ex.ExecuteBatch(context.Background(), nil))
}

func TestExecuteBatchRecordsPatterns(t *testing.T) {
	ex := NewExecutor(NewWorkspace(t.TempDir()), ExecutorConfig{CommandTimeout: 5 * time.Second}, zerolog.Nop())

	args := decodeArgs(t, `{
		"command1": {"type": "rg", "pattern": "Handler", "path": "/codebase/missing"},
		"command2": {"type": "rg", "pattern": "Handler", "path": "/codebase/missing"},
		"command3": {"type": "rg", "pattern": "ok", "path": "/codebase/missing"}
	}`)
	out := ex.ExecuteBatch(context.Background(), args)

	assert.Equal(t, 3, strings.Count(out, "Error: path does not exist: /codebase/missing"))
	assert.Equal(t, []string{"Handler", "ok"}, ex.Patterns())
	assert.Empty(t, ex.Files())
}

func TestRgCommand(t *testing.T) {
	requireRg(t)
	ws := NewWorkspace(writeTree(t, map[string]string{
		"src/server.go": "package src\n\nfunc NewServer() {}\n",
		"src/notes.md":  "NewServer is documented here\n",
	}))
	ctx := context.Background()

	out := (&RgCommand{Pattern: "NewServer", Path: "/codebase/src", Include: []string{"*.go"}}).Run(ctx, ws)
	assert.Equal(t, "/codebase/src/server.go:3:func NewServer() {}", out)

	out = (&RgCommand{Pattern: "NewServer", Path: "/codebase", Exclude: []string{"*.go"}}).Run(ctx, ws)
	assert.Equal(t, "/codebase/src/notes.md:1:NewServer is documented here", out)

	out = (&RgCommand{Pattern: "DoesNotExist", Path: "/codebase"}).Run(ctx, ws)
	assert.Equal(t, "(no matches)", out)

	out = (&RgCommand{Pattern: "-v", Path: "/codebase"}).Run(ctx, ws)
	assert.Equal(t, "(no matches)", out)
}

func TestRgCommandArgs(t *testing.T) {
	cmd := &RgCommand{Pattern: "x", Include: []string{"*.go"}, Exclude: []string{"vendor"}}
	assert.Equal(t,
		[]string{"--no-heading", "-n", "--color=never", "--max-count", "50", "--glob", "*.go", "--glob", "!vendor", "--", "x", "/p"},
		cmd.Args("/p"))
}
