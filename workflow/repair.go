package workflow

import (
	"strings"
	"unicode"
)

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'",
)

// stripCodeFences removes markdown fences such as ```json ... ``` and keeps
// their contents.
func stripCodeFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// extractArray returns the text from the first '[' to the last ']'.
func extractArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// repairJSON attempts to fix common JSON formatting issues from LLM responses:
// typographic quotes, trailing commas and unquoted or half-quoted keys.
func repairJSON(s string) string {
	s = smartQuotes.Replace(s)
	s = removeTrailingCommas(s)
	return quoteKeys(s)
}

// removeTrailingCommas drops a comma that is followed only by whitespace
// and a closing bracket. Commas inside strings are kept.
func removeTrailingCommas(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	inString, escaped := false, false

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if inString {
			out = append(out, ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && (runes[j] == ']' || runes[j] == '}') {
				continue
			}
		}
		out = append(out, ch)
	}
	return string(out)
}

// quoteKeys fixes object keys that are missing one or both quotes.
// Example: `{id: 1, tool": "x"}` -> `{"id": 1, "tool": "x"}`
func quoteKeys(s string) string {
	result := []rune(s)
	fixed := make([]rune, 0, len(result)+100)

	i := 0
	for i < len(result) {
		ch := result[i]

		// After { or , look for unquoted keys
		if ch != '{' && ch != ',' {
			fixed = append(fixed, ch)
			i++
			continue
		}
		fixed = append(fixed, ch)
		i++

		for i < len(result) && unicode.IsSpace(result[i]) {
			fixed = append(fixed, result[i])
			i++
		}

		if i >= len(result) || !isKeyStart(result[i]) {
			continue
		}

		keyStart := i
		for i < len(result) && isKeyRune(result[i]) {
			i++
		}
		key := result[keyStart:i]

		switch {
		case i+1 < len(result) && result[i] == '"' && result[i+1] == ':':
			// key": -> "key":
			fixed = append(fixed, '"')
			fixed = append(fixed, key...)
		case i < len(result) && result[i] == ':':
			// key: -> "key":
			fixed = append(fixed, '"')
			fixed = append(fixed, key...)
			fixed = append(fixed, '"')
		default:
			fixed = append(fixed, key...)
		}
	}

	return string(fixed)
}

func isKeyStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isKeyRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
