// Brace scanning and repair for truncated tool arguments.
//
// Information Hiding:
// - String/escape tracking while counting braces hidden
// - Tail repair and per-command salvage strategies hidden

package json

import (
	"regexp"
	"sort"
	"strings"
)

// commandKeyPattern matches the start of a "commandN": { entry.
var commandKeyPattern = regexp.MustCompile(`"(command\d+)"\s*:\s*\{`)

// scanState tracks brace depth outside of string literals.
type scanState struct {
	depth    int
	inString bool
	escaped  bool
}

func (s *scanState) step(c byte) {
	if s.inString {
		switch {
		case s.escaped:
			s.escaped = false
		case c == '\\':
			s.escaped = true
		case c == '"':
			s.inString = false
		}
		return
	}
	switch c {
	case '"':
		s.inString = true
	case '{':
		s.depth++
	case '}':
		s.depth--
	}
}

// BalancedEnd returns the index just past the brace that closes the first
// '{' in text. ok is false when the braces never balance, which means the
// object was cut off.
func BalancedEnd(text string) (end int, ok bool) {
	var st scanState
	opened := false
	for i := 0; i < len(text); i++ {
		st.step(text[i])
		if st.depth > 0 {
			opened = true
		}
		if opened && st.depth == 0 {
			return i + 1, true
		}
	}
	return len(text), false
}

// CloseObject appends one '}' per unmatched '{'. It reports false when
// nothing is missing or the text stops inside a string literal, since a
// value cut off mid-string cannot be trusted.
func CloseObject(text string) (string, bool) {
	var st scanState
	for i := 0; i < len(text); i++ {
		st.step(text[i])
	}
	if st.depth <= 0 || st.inString {
		return text, false
	}
	return text + strings.Repeat("}", st.depth), true
}

// SalvageCommands collects every "commandN": {...} entry in text whose
// object parses on its own. Malformed entries are skipped. The result is
// empty, not nil, when nothing could be salvaged.
func SalvageCommands(text string) map[string]any {
	salvaged := make(map[string]any)
	for _, m := range commandKeyPattern.FindAllStringSubmatchIndex(text, -1) {
		key := text[m[2]:m[3]]
		start := m[1] - 1 // the '{' that ends the match

		end, ok := BalancedEnd(text[start:])
		if !ok {
			continue
		}
		obj, err := ParseObject(text[start : start+end])
		if err != nil {
			continue
		}
		if _, dup := salvaged[key]; !dup {
			salvaged[key] = obj
		}
	}
	return salvaged
}

// CommandKeys returns the commandN keys of args in numeric order.
func CommandKeys(args map[string]any) []string {
	var keys []string
	for k := range args {
		if strings.HasPrefix(k, "command") {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
