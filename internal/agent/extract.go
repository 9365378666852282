package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls a JSON object out of an LLM completion that is
// supposed to be "JSON, no other text" but in practice sometimes wraps it
// in prose or a fenced code block. It tries three strategies in order,
// each stricter about what surrounds the JSON than the last:
//
//  1. The whole trimmed response parses as JSON outright.
//  2. A ```json fenced block is present; its contents are parsed.
//  3. A best-effort bracket-depth scan from the first '{' finds the
//     matching closing '}', tolerating leading/trailing prose the way the
//     original client's naive find('{')/rfind('}') did, but without being
//     fooled by braces inside string values.
func extractJSON(response string, out any) error {
	trimmed := strings.TrimSpace(response)

	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	if block, ok := fencedJSONBlock(trimmed); ok {
		if err := json.Unmarshal([]byte(block), out); err == nil {
			return nil
		}
	}

	if obj, ok := bracketScan(trimmed); ok {
		if err := json.Unmarshal([]byte(obj), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("extractJSON: could not locate a parseable JSON object in response")
}

// fencedJSONBlock looks for a ```json ... ``` or plain ``` ... ``` fenced
// block and returns its contents.
func fencedJSONBlock(s string) (string, bool) {
	const fenceJSON = "```json"
	const fence = "```"

	start := strings.Index(s, fenceJSON)
	skip := len(fenceJSON)
	if start < 0 {
		start = strings.Index(s, fence)
		skip = len(fence)
		if start < 0 {
			return "", false
		}
	}

	rest := s[start+skip:]
	end := strings.Index(rest, fence)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// bracketScan finds the first '{' and returns the substring up to its
// matching '}', tracking string literals and escapes so braces inside
// quoted values don't throw off the depth count.
func bracketScan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
