// Package llm provides the backend-facing conversation model, the Connect-RPC
// backend client and the interpreter for its streamed responses.
package llm

import "fmt"

// Role is the numeric chat role used on the wire.
type Role uint64

const (
	RoleUser       Role = 1
	RoleAssistant  Role = 2
	RoleToolResult Role = 4
	RoleSystem     Role = 5
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleToolResult:
		return "tool"
	case RoleSystem:
		return "system"
	default:
		return fmt.Sprintf("role(%d)", uint64(r))
	}
}

// ToolCallRef records a tool call the model issued.
type ToolCallRef struct {
	ID            string
	Name          string
	ArgumentsJSON string
}

// ChatMessage is one conversation entry.
// ToolCall is set on assistant messages that issued a call; RefCallID is set
// on tool-result messages and names the call they answer.
type ChatMessage struct {
	Role      Role
	Content   string
	ToolCall  *ToolCallRef
	RefCallID string
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantToolCall creates an assistant message that carries a tool call.
func AssistantToolCall(content string, call ToolCallRef) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content, ToolCall: &call}
}

// ToolResultMessage creates the result entry for a previous tool call.
func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: RoleToolResult, Content: content, RefCallID: callID}
}

// BackendConfig describes the inference endpoint handed out with credentials.
type BackendConfig struct {
	APIBase    string `json:"api_base"`
	AuthBase   string `json:"auth_base"`
	AppVersion string `json:"app_version"`
	LSVersion  string `json:"ls_version"`
	Model      string `json:"model"`
	TimeoutMs  int64  `json:"timeout_ms"`
}

// DefaultTimeoutMs is used when the backend config carries no timeout.
const DefaultTimeoutMs = 30000

// Timeout returns the server-side timeout hint in milliseconds.
func (c BackendConfig) Timeout() int64 {
	if c.TimeoutMs <= 0 {
		return DefaultTimeoutMs
	}
	return c.TimeoutMs
}

// Credentials are fetched once per search and never persisted.
type Credentials struct {
	APIKey  string
	JWT     string
	Backend BackendConfig
}

// RepairKind records how a tool invocation's arguments were recovered.
type RepairKind int

const (
	// RepairNone means the arguments parsed as-is.
	RepairNone RepairKind = iota
	// RepairClosed means missing closing braces were appended.
	RepairClosed
	// RepairSalvaged means only individually valid commandN entries were kept.
	RepairSalvaged
)

// String returns the repair kind name.
func (k RepairKind) String() string {
	switch k {
	case RepairNone:
		return "none"
	case RepairClosed:
		return "closed"
	case RepairSalvaged:
		return "salvaged"
	default:
		return "unknown"
	}
}

// ToolInvocation is a tool call recovered from model output.
// Args is untrusted and kept as a generic tree.
type ToolInvocation struct {
	Name   string
	Args   map[string]any
	Repair RepairKind
}

// Provisional reports whether the arguments are a partial salvage.
func (t *ToolInvocation) Provisional() bool {
	return t != nil && t.Repair == RepairSalvaged
}

// Reply is the interpreted result of one backend call.
type Reply struct {
	// Text is all text recovered from the response.
	Text string
	// Thinking is the text preceding the tool call marker, when a call was found.
	Thinking string
	// Call is nil when no tool invocation could be recovered.
	Call *ToolInvocation
	// Err is set when the backend answered with an explicit error object.
	Err error
}
