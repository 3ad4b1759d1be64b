package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepoMap(t *testing.T) {
	ws := NewWorkspace(writeTree(t, map[string]string{
		"node_modules/x/index.js": "",
		"vendor/lib.go":           "",
		".github/ci.yml":          "",
		"api/handler.go":          "",
		"api/v1/routes.go":        "",
		"go.mod":                  "",
	}))

	got := RepoMap(context.Background(), ws, 2)
	want := strings.Join([]string{
		"/codebase",
		"├── api",
		"│   ├── handler.go",
		"│   └── v1",
		"└── go.mod",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRepoMapLineLimit(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < repoMapLineLimit+50; i++ {
		files[fmt.Sprintf("f%05d.txt", i)] = ""
	}
	ws := NewWorkspace(writeTree(t, files))

	got := RepoMap(context.Background(), ws, 1)
	assert.Len(t, strings.Split(got, "\n"), repoMapLineLimit)
}
