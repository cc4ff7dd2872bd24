package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("no JSON value found in completion")

// ExtractJSON finds the first balanced JSON object in free text and
// unmarshals it into v. Markdown code fences around the object are handled.
func ExtractJSON(text string, v interface{}) error {
	raw, err := extractBalanced(text, '{', '}')
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}

// ExtractJSONArray finds the first balanced JSON array in free text and
// unmarshals it into v.
func ExtractJSONArray(text string, v interface{}) error {
	raw, err := extractBalanced(text, '[', ']')
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}

// extractBalanced scans for the first balanced open..close run, skipping
// brackets inside JSON string literals.
func extractBalanced(text string, openCh, closeCh byte) (string, error) {
	text = stripFences(text)

	start := strings.IndexByte(text, openCh)
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]

		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", ErrNoJSON
}

func stripFences(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	return text
}
