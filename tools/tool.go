// Package tools provides the read-only commands the model may run against
// the project being searched.
//
// Information Hiding:
// - Command decoding from untrusted argument trees hidden behind ParseCommand
// - Virtual /codebase path mapping hidden in Workspace
// - Output truncation and per-command error text internalized
package tools

import (
	"context"
	"fmt"
	"math"
)

// Command kinds accepted in restricted_exec arguments.
const (
	KindRg       = "rg"
	KindReadFile = "readfile"
	KindTree     = "tree"
	KindLs       = "ls"
	KindGlob     = "glob"
)

// Command is one decoded restricted_exec command. The set of
// implementations is closed: RgCommand, ReadFileCommand, TreeCommand,
// LsCommand and GlobCommand.
type Command interface {
	// Kind returns the command type name.
	Kind() string

	// Run executes the command inside ws. Failures are reported in the
	// returned text, never as a Go error.
	Run(ctx context.Context, ws *Workspace) string

	command()
}

// ToolParameter defines a parameter of a command.
type ToolParameter struct {
	Name        string   `json:"name"`
	ParamType   string   `json:"param_type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// CommandSpec describes a command kind for the backend tool schema.
type CommandSpec struct {
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// String returns a string representation of the spec.
func (s CommandSpec) String() string {
	return fmt.Sprintf("%s: %s", s.Kind, s.Description)
}

// CommandSpecs returns the specs of every command kind in schema order.
func CommandSpecs() []CommandSpec {
	return []CommandSpec{
		{
			Kind:        KindRg,
			Description: "Search for patterns in files using ripgrep.",
			Parameters: []ToolParameter{
				{Name: "pattern", ParamType: "string", Description: "The regex pattern to search for.", Required: true},
				{Name: "path", ParamType: "string", Description: "The path to search in.", Required: true},
				{Name: "include", ParamType: "array", Description: "File patterns to include."},
				{Name: "exclude", ParamType: "array", Description: "File patterns to exclude."},
			},
		},
		{
			Kind:        KindReadFile,
			Description: "Read contents of a file with optional line range.",
			Parameters: []ToolParameter{
				{Name: "file", ParamType: "string", Description: "Path to the file to read.", Required: true},
				{Name: "start_line", ParamType: "integer", Description: "Starting line number (1-indexed)."},
				{Name: "end_line", ParamType: "integer", Description: "Ending line number (1-indexed)."},
			},
		},
		{
			Kind:        KindTree,
			Description: "Display directory structure as a tree.",
			Parameters: []ToolParameter{
				{Name: "path", ParamType: "string", Description: "Path to the directory.", Required: true},
				{Name: "levels", ParamType: "integer", Description: "Number of directory levels."},
			},
		},
		{
			Kind:        KindLs,
			Description: "List files in a directory.",
			Parameters: []ToolParameter{
				{Name: "path", ParamType: "string", Description: "Path to the directory.", Required: true},
				{Name: "long_format", ParamType: "boolean"},
				{Name: "all", ParamType: "boolean"},
			},
		},
		{
			Kind:        KindGlob,
			Description: "Find files matching a glob pattern.",
			Parameters: []ToolParameter{
				{Name: "pattern", ParamType: "string", Required: true},
				{Name: "path", ParamType: "string", Required: true},
				{Name: "type_filter", ParamType: "string", Enum: []string{"file", "directory", "all"}},
			},
		},
	}
}

// UnknownCommandError is returned by ParseCommand for an unsupported type.
type UnknownCommandError struct {
	Kind string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command type '%s'", e.Kind)
}

// ParseCommand decodes one command object. Missing optional fields take
// the same defaults the model is told about; missing paths default to the
// workspace root.
func ParseCommand(raw map[string]any) (Command, error) {
	kind := stringArg(raw, "type", "")
	switch kind {
	case KindRg:
		return &RgCommand{
			Pattern: stringArg(raw, "pattern", ""),
			Path:    stringArg(raw, "path", VirtualRoot),
			Include: stringsArg(raw, "include"),
			Exclude: stringsArg(raw, "exclude"),
		}, nil
	case KindReadFile:
		return &ReadFileCommand{
			File:      stringArg(raw, "file", ""),
			StartLine: intArg(raw, "start_line", 0),
			EndLine:   intArg(raw, "end_line", 0),
		}, nil
	case KindTree:
		return &TreeCommand{
			Path:   stringArg(raw, "path", VirtualRoot),
			Levels: intArg(raw, "levels", DefaultTreeLevels),
		}, nil
	case KindLs:
		return &LsCommand{
			Path:       stringArg(raw, "path", VirtualRoot),
			LongFormat: boolArg(raw, "long_format"),
			All:        boolArg(raw, "all"),
		}, nil
	case KindGlob:
		return &GlobCommand{
			Pattern:    stringArg(raw, "pattern", "*"),
			Path:       stringArg(raw, "path", VirtualRoot),
			TypeFilter: stringArg(raw, "type_filter", "all"),
		}, nil
	default:
		return nil, &UnknownCommandError{Kind: kind}
	}
}

func stringArg(raw map[string]any, key, def string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return def
}

// intArg accepts JSON numbers that are non-negative whole values.
func intArg(raw map[string]any, key string, def int) int {
	f, ok := raw[key].(float64)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return def
	}
	return int(f)
}

func boolArg(raw map[string]any, key string) bool {
	b, _ := raw[key].(bool)
	return b
}

func stringsArg(raw map[string]any, key string) []string {
	items, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
