package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadFileCommand(t *testing.T) {
	ws := NewWorkspace(writeTree(t, map[string]string{
		"src/main.go": "package main\n\nfunc main() {\n}\n",
	}))
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  ReadFileCommand
		want string
	}{
		{"whole file", ReadFileCommand{File: "/codebase/src/main.go"}, "1:package main\n2:\n3:func main() {\n4:}"},
		{"range", ReadFileCommand{File: "/codebase/src/main.go", StartLine: 3, EndLine: 4}, "3:func main() {\n4:}"},
		{"end past eof", ReadFileCommand{File: "/codebase/src/main.go", StartLine: 4, EndLine: 99}, "4:}"},
		{"missing", ReadFileCommand{File: "/codebase/nope.go"}, "Error: file not found: /codebase/nope.go"},
		{"outside", ReadFileCommand{File: "/etc/hosts"}, "Error: path outside workspace: /etc/hosts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.Run(ctx, ws))
		})
	}
}

func TestReadFileCommandEmptyRange(t *testing.T) {
	ws := NewWorkspace(writeTree(t, map[string]string{"a.txt": "one\ntwo\n"}))
	out := (&ReadFileCommand{File: "/codebase/a.txt", StartLine: 5, EndLine: 6}).Run(context.Background(), ws)
	assert.True(t, strings.HasPrefix(out, "(no lines in range"))
}

func TestTreeCommand(t *testing.T) {
	ws := NewWorkspace(writeTree(t, map[string]string{
		".gitignore":      "out/\n",
		".hidden/x":       "",
		"out/bin":         "",
		"cmd/app/main.go": "",
		"internal/a/a.go": "",
		"README.md":       "",
	}))

	out := (&TreeCommand{Path: "/codebase", Levels: 2}).Run(context.Background(), ws)
	want := strings.Join([]string{
		"/codebase",
		"├── README.md",
		"├── cmd",
		"│   └── app",
		"└── internal",
		"    └── a",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestTreeCommandMissingDir(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	out := (&TreeCommand{Path: "/codebase/nope"}).Run(context.Background(), ws)
	assert.Equal(t, "Error: dir not found: /codebase/nope", out)
}

func TestLsCommand(t *testing.T) {
	ws := NewWorkspace(writeTree(t, map[string]string{
		".env": "X=1",
		"b.go": "12345",
		"a/":   "",
	}))
	ctx := context.Background()

	assert.Equal(t, "a\nb.go", (&LsCommand{Path: "/codebase"}).Run(ctx, ws))
	assert.Equal(t, ".env\na\nb.go", (&LsCommand{Path: "/codebase", All: true}).Run(ctx, ws))

	long := (&LsCommand{Path: "/codebase", LongFormat: true}).Run(ctx, ws)
	lines := strings.Split(long, "\n")
	assert.Equal(t, "total 2", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "drwxr-xr-x"))
	assert.Equal(t, "-rwxr-xr-x        5 b.go", lines[2])

	assert.Equal(t, "Error: dir not found: /codebase/x", (&LsCommand{Path: "/codebase/x"}).Run(ctx, ws))
}
