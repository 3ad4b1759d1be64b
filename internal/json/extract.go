// Package json provides JSON extraction and repair utilities for model output.
//
// Model output often carries JSON embedded in text, wrapped in markdown, or
// cut off mid-object when a stream is aborted. This package finds, repairs
// and salvages such payloads.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON finds and returns the JSON object portion of a string.
// It handles:
// 1. Pure JSON - returns the full text
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. A JSON object embedded in text - the first balanced {...} span
func extractJSON(text string) (string, error) {
	text = stripMarkdownCodeBlocks(text)

	if json.Valid([]byte(text)) {
		return text, nil
	}

	start := strings.Index(text, "{")
	if start != -1 {
		if end, ok := BalancedEnd(text[start:]); ok {
			candidate := text[start : start+end]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}

	preview := text
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// stripMarkdownCodeBlocks removes ```json / ``` fences around a payload.
func stripMarkdownCodeBlocks(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}

// ExtractObject extracts the first JSON object from text and decodes it into T.
func ExtractObject[T any](text string) (T, error) {
	var result T
	jsonStr, err := extractJSON(text)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ParseObject decodes text as a single JSON object.
func ParseObject(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return obj, nil
}
