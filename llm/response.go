// Response interpretation for streamed backend output.
//
// Information Hiding:
// - Frame-level error object detection
// - Tool call marker syntax ([TOOL_CALLS]name[ARGS]{...})
// - Argument repair ladder: as-is, closed, salvaged

package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	jsonx "github.com/richinex/fastctx/internal/json"
	"github.com/richinex/fastctx/protocol"
)

const (
	toolCallsMarker = "[TOOL_CALLS]"
	argsMarker      = "[ARGS]"
	endOfSequence   = "</s>"

	// minFragmentLen is the shortest extracted string kept when no tool
	// call marker is present.
	minFragmentLen = 11
)

// BackendError is an explicit error object returned by the backend.
type BackendError struct {
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("[Error] %s: %s", e.Code, e.Message)
}

// ParseResponse interprets a raw response body. A backend error frame is
// terminal; otherwise the text is recovered and searched for a tool call.
func ParseResponse(data []byte) Reply {
	frames := protocol.DecodeFrames(data)

	var text strings.Builder
	for _, f := range frames {
		if berr := frameError(f.Payload); berr != nil {
			return Reply{Text: berr.Error(), Err: berr}
		}

		raw := lossyString(f.Payload)
		if strings.Contains(raw, toolCallsMarker) {
			text.Reset()
			text.WriteString(raw)
			break
		}
		for _, s := range protocol.ExtractStrings(f.Payload) {
			if len(s) >= minFragmentLen {
				text.WriteString(s)
			}
		}
	}

	all := text.String()
	thinking, call, ok := ParseToolCall(all)
	if !ok {
		return Reply{Text: all}
	}
	return Reply{Text: all, Thinking: thinking, Call: call}
}

// frameError returns the backend error carried by a JSON frame, if any.
func frameError(payload []byte) *BackendError {
	if len(payload) == 0 || payload[0] != '{' || !utf8.Valid(payload) {
		return nil
	}
	var obj struct {
		Error *struct {
			Code    any `json:"code"`
			Message any `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil || obj.Error == nil {
		return nil
	}
	code, ok := obj.Error.Code.(string)
	if !ok {
		code = "unknown"
	}
	msg, _ := obj.Error.Message.(string)
	return &BackendError{Code: code, Message: msg}
}

// lossyString decodes payload as UTF-8 and drops invalid sequences.
func lossyString(payload []byte) string {
	if utf8.Valid(payload) {
		return string(payload)
	}
	return strings.ToValidUTF8(string(payload), "")
}

// ParseToolCall finds a tool invocation in text. thinking is the trimmed
// text before the marker. ok is false when there is no marker or the
// arguments cannot be recovered at all.
func ParseToolCall(text string) (thinking string, call *ToolInvocation, ok bool) {
	text = strings.ReplaceAll(text, endOfSequence, "")

	idx := strings.Index(text, toolCallsMarker)
	if idx < 0 {
		return "", nil, false
	}
	after := text[idx+len(toolCallsMarker):]
	argsIdx := strings.Index(after, argsMarker)
	if argsIdx < 0 {
		return "", nil, false
	}

	name := strings.TrimSpace(after[:argsIdx])
	raw := strings.TrimSpace(after[argsIdx+len(argsMarker):])
	end, _ := jsonx.BalancedEnd(raw)
	span := raw[:end]

	args, repair, ok := recoverArgs(span)
	if !ok {
		return "", nil, false
	}
	thinking = strings.TrimSpace(text[:idx])
	return thinking, &ToolInvocation{Name: name, Args: args, Repair: repair}, true
}

// recoverArgs runs the repair ladder. The earliest stage that yields a
// JSON object wins.
func recoverArgs(span string) (map[string]any, RepairKind, bool) {
	if args, err := jsonx.ParseObject(span); err == nil {
		return args, RepairNone, true
	}
	if closed, changed := jsonx.CloseObject(span); changed {
		if args, err := jsonx.ParseObject(closed); err == nil {
			return args, RepairClosed, true
		}
	}
	if salvaged := jsonx.SalvageCommands(span); len(salvaged) > 0 {
		return salvaged, RepairSalvaged, true
	}
	return nil, RepairNone, false
}
