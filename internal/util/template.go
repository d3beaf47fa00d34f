package util

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Substitute replaces every single-braced {identifier} token in text with the
// matching binding. Tokens written with doubled braces ({{x}}) and tokens that
// span a newline are left alone, as are tokens without a binding.
//
// Sequence values are concatenated without a separator; maps are rendered as
// JSON; everything else goes through fmt.Sprint.
func Substitute(text string, bindings map[string]any) string {
	if !strings.Contains(text, "{") { // fast path: no token markers
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text))

	for i := 0; i < len(text); {
		if text[i] != '{' || (i > 0 && text[i-1] == '{') {
			sb.WriteByte(text[i])
			i++
			continue
		}

		end := tokenEnd(text, i)
		if end < 0 {
			sb.WriteByte(text[i])
			i++
			continue
		}

		key := text[i+1 : end]
		if v, ok := bindings[key]; ok {
			sb.WriteString(Stringify(v))
		} else {
			sb.WriteString(text[i : end+1])
		}
		i = end + 1
	}

	return sb.String()
}

// tokenEnd returns the index of the closing brace of the token opened at
// start or -1 when there is no well-formed token there.
func tokenEnd(text string, start int) int {
	j := start + 1
	for j < len(text) && text[j] != '{' && text[j] != '}' && text[j] != '\n' {
		j++
	}

	if j >= len(text) || text[j] != '}' || j == start+1 {
		return -1
	}

	if j+1 < len(text) && text[j+1] == '}' {
		return -1
	}

	return j
}

// Stringify renders a binding value the way templates expect it.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, "")
	case []any:
		var sb strings.Builder
		for _, item := range val {
			sb.WriteString(Stringify(item))
		}
		return sb.String()
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
