// Prompt text and backend tool schema.
//
// Information Hiding:
// - Prompt wording hidden
// - Tool schema layout derived from tools.CommandSpecs

package agent

import (
	"encoding/json"
	"fmt"

	"github.com/richinex/fastctx/tools"
)

const (
	// ExecTool is the batch command tool offered to the model.
	ExecTool = "restricted_exec"
	// AnswerTool is the tool the model calls with its final answer.
	AnswerTool = "answer"
)

// ForceAnswerMessage is appended when the model has one turn left.
const ForceAnswerMessage = "You have no turns left. Now you MUST provide your final ANSWER, even if it's not complete."

const systemPromptTemplate = `You are a code search assistant. Your task is to find the files and line ranges in a repository that are relevant to a user's search query.

The repository is mounted read-only at /codebase. You can inspect it only through the %[4]s tool, which runs up to %[2]d independent commands in parallel per call. Available command types are rg, readfile, tree, ls and glob. Put each command in its own slot: command1, command2 and so on.

You have at most %[1]d turns. Use them to search broadly first, then confirm candidates by reading the relevant lines. Prefer several commands per turn over one command per turn.

When you are done, call the %[5]s tool exactly once. Its answer argument must contain XML of the form:

<ANSWER>
<file path="/codebase/path/to/file.go">
<range>10-25</range>
<range>80-95</range>
</file>
</ANSWER>

Report at most %[3]d files, most relevant first. Use /codebase paths exactly as the tools print them.`

// SystemPrompt builds the system prompt for the given limits.
func SystemPrompt(maxTurns, maxCommands, maxResults int) string {
	return fmt.Sprintf(systemPromptTemplate, maxTurns, maxCommands, maxResults, ExecTool, AnswerTool)
}

// UserPrompt builds the opening user message with the query and a repo map
// generated at treeDepth.
func UserPrompt(query string, treeDepth int, repoMap string) string {
	return fmt.Sprintf("Problem Statement: %s\n\nRepo Map (tree -L %d /codebase):\n```text\n%s\n```", query, treeDepth, repoMap)
}

type functionDef struct {
	Type     string   `json:"type"`
	Function function `json:"function"`
}

type function struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolDefinitions returns the JSON tool schema offering restricted_exec with
// maxCommands command slots and the answer tool.
func ToolDefinitions(maxCommands int) string {
	variants := commandVariants()

	properties := make(map[string]any, maxCommands)
	for i := 1; i <= maxCommands; i++ {
		properties[fmt.Sprintf("command%d", i)] = map[string]any{
			"description": fmt.Sprintf("Command %d to execute.", i),
			"oneOf":       variants,
		}
	}

	defs := []functionDef{
		{
			Type: "function",
			Function: function{
				Name:        ExecTool,
				Description: "Run up to several read-only commands against /codebase in parallel.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": properties,
					"required":   []string{"command1"},
				},
			},
		},
		{
			Type: "function",
			Function: function{
				Name:        AnswerTool,
				Description: "Submit the final answer as <ANSWER> XML listing files and line ranges.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"answer": map[string]any{"type": "string", "description": "The final answer XML."},
					},
					"required": []string{"answer"},
				},
			},
		},
	}

	out, err := json.Marshal(defs)
	if err != nil {
		// Only maps of strings and slices are marshalled here.
		panic(err)
	}
	return string(out)
}

func commandVariants() []any {
	specs := tools.CommandSpecs()
	variants := make([]any, 0, len(specs))
	for _, spec := range specs {
		props := map[string]any{
			"type": map[string]any{"type": "string", "const": spec.Kind, "description": spec.Description},
		}
		required := []string{"type"}
		for _, p := range spec.Parameters {
			prop := map[string]any{"type": p.ParamType}
			if p.Description != "" {
				prop["description"] = p.Description
			}
			if len(p.Enum) > 0 {
				prop["enum"] = p.Enum
			}
			if p.ParamType == "array" {
				prop["items"] = map[string]any{"type": "string"}
			}
			props[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}
		variants = append(variants, map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		})
	}
	return variants
}
