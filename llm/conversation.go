package llm

import (
	"fmt"

	"github.com/google/uuid"
)

// Conversation is an append-only transcript owned by one search.
type Conversation struct {
	messages []ChatMessage
}

// NewConversation seeds a conversation with a system and a user message.
func NewConversation(system, user string) *Conversation {
	return &Conversation{
		messages: []ChatMessage{SystemMessage(system), UserMessage(user)},
	}
}

// Messages returns the transcript. Callers must not modify it.
func (c *Conversation) Messages() []ChatMessage {
	return c.messages
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// AppendUser appends a plain user message.
func (c *Conversation) AppendUser(content string) {
	c.messages = append(c.messages, UserMessage(content))
}

// AppendToolExchange records an assistant tool call and its result as two
// entries sharing a freshly generated call id, which it returns.
func (c *Conversation) AppendToolExchange(thinking, toolName, argsJSON, result string) string {
	callID := uuid.NewString()
	c.messages = append(c.messages,
		AssistantToolCall(thinking, ToolCallRef{ID: callID, Name: toolName, ArgumentsJSON: argsJSON}),
		ToolResultMessage(callID, result),
	)
	return callID
}

// Validate checks that every tool-result entry refers to exactly one earlier
// assistant call.
func (c *Conversation) Validate() error {
	seen := make(map[string]int)
	for i, m := range c.messages {
		if m.ToolCall != nil {
			seen[m.ToolCall.ID]++
		}
		if m.Role == RoleToolResult {
			if n := seen[m.RefCallID]; n != 1 {
				return fmt.Errorf("message %d: tool result refers to %d calls with id %q", i, n, m.RefCallID)
			}
		}
	}
	return nil
}
