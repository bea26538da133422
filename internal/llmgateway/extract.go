package llmgateway

import "strings"

// ExtractFirstJSONObject finds the first complete, depth-balanced JSON
// object or array in content using a running bracket counter — a
// non-greedy regex cannot round-trip nested objects, so this walks the
// string and tracks depth directly, adapted from the teacher's
// internal/llm/client.go extractFirstJSONObject.
func ExtractFirstJSONObject(content string) string {
	content = strings.TrimSpace(content)
	if len(content) == 0 {
		return ""
	}

	startIdx := -1
	isArray := false
	inString := false
	escaped := false

	for i, ch := range content {
		if ch == '{' {
			startIdx = i
			break
		} else if ch == '[' {
			startIdx = i
			isArray = true
			break
		}
	}
	if startIdx == -1 {
		return ""
	}

	openChar := byte('{')
	closeChar := byte('}')
	if isArray {
		openChar = '['
		closeChar = ']'
	}

	depth := 0
	for i := startIdx; i < len(content); i++ {
		ch := content[i]

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
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return content[startIdx : i+1]
			}
		}
	}

	return ""
}
