// The fast_context_search tool exposed to hosts.
//
// Information Hiding:
// - Input schema and its validation hidden
// - Argument defaults hidden

package mcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/richinex/fastctx/tools"
)

// SearchToolName is the only tool the server exposes.
const SearchToolName = "fast_context_search"

const searchToolDescription = "AI-driven semantic code search. Searches a codebase with natural language and returns relevant file paths with line ranges, plus suggested grep keywords."

var searchToolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Natural language search query"},
		"project_path": {"type": "string", "description": "Absolute path to project root. Empty = cwd.", "default": ""},
		"tree_depth": {"type": "integer", "description": "Directory tree depth (1-6, default 3)", "default": 3, "minimum": 1, "maximum": 6},
		"max_turns": {"type": "integer", "description": "Search rounds (1-5, default 5)", "default": 5, "minimum": 1, "maximum": 5},
		"max_results": {"type": "integer", "description": "Max files to return (1-30, default 10)", "default": 10, "minimum": 1, "maximum": 30}
	},
	"required": ["query"]
}`)

var searchSchemaLoader = gojsonschema.NewBytesLoader(searchToolSchema)

// SearchTool returns the descriptor listed by tools/list.
func SearchTool() ToolInfo {
	return ToolInfo{
		Name:        SearchToolName,
		Description: searchToolDescription,
		InputSchema: searchToolSchema,
	}
}

// SearchArgs are the validated arguments of fast_context_search.
type SearchArgs struct {
	Query       string `json:"query"`
	ProjectPath string `json:"project_path"`
	TreeDepth   int    `json:"tree_depth"`
	MaxTurns    int    `json:"max_turns"`
	MaxResults  int    `json:"max_results"`
}

// ValidationError lists schema violations in tool arguments.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "Invalid arguments: " + strings.Join(e.Problems, "; ")
}

// DecodeSearchArgs validates raw against the input schema and applies
// defaults. Missing arguments are treated as an empty object.
func DecodeSearchArgs(raw json.RawMessage) (SearchArgs, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	result, err := gojsonschema.Validate(searchSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return SearchArgs{}, &ValidationError{Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return SearchArgs{}, &ValidationError{Problems: problems}
	}

	args := SearchArgs{TreeDepth: 3, MaxTurns: 5, MaxResults: 10}
	if err := json.Unmarshal(raw, &args); err != nil {
		return SearchArgs{}, fmt.Errorf("decode arguments: %w", err)
	}
	return args, nil
}

// Parameters lists a tool's parameters from its input schema in name order.
func Parameters(info ToolInfo) []tools.ToolParameter {
	var schema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(info.InputSchema, &schema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range schema.Required {
		requiredSet[r] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]tools.ToolParameter, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		paramType := prop.Type
		if paramType == "" {
			paramType = "string"
		}

		params = append(params, tools.ToolParameter{
			Name:        name,
			Description: prop.Description,
			ParamType:   paramType,
			Required:    requiredSet[name],
		})
	}

	return params
}
