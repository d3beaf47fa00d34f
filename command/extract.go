package command

import (
	"errors"
	"fmt"

	"github.com/hupe1980/promptmesh/core"
	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when a balanced object was found but is not a
// valid JSON object.
var ErrMalformed = errors.New("malformed structured response")

// FindObject returns the first top-level balanced {...} span in text.
// Braces inside JSON string literals do not count towards nesting. An
// opening brace that never closes is skipped and the scan resumes after it.
func FindObject(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}

		if end := matchBrace(text, start); end > 0 {
			return text[start : end+1], true
		}
	}

	return "", false
}

// matchBrace returns the index of the brace closing the one at start or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

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
				return i
			}
		}
	}

	return -1
}

// Extract parses the structured object embedded in raw. A reply without any
// object yields the zero StructuredResponse and no error.
func Extract(raw string) (core.StructuredResponse, error) {
	obj, ok := FindObject(raw)
	if !ok {
		return core.StructuredResponse{}, nil
	}

	if !gjson.Valid(obj) {
		return core.StructuredResponse{}, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}

	doc := gjson.Parse(obj)
	if !doc.IsObject() {
		return core.StructuredResponse{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	sr := core.StructuredResponse{Raw: obj}

	if r := doc.Get("response"); r.Exists() {
		sr.HasResponse = true
		sr.Response = r.String()
	}

	if c := doc.Get("commands"); c.IsObject() {
		sr.CommandsRaw = c.Raw
		c.ForEach(func(key, value gjson.Result) bool {
			sr.Commands = append(sr.Commands, core.CommandInvocation{
				Name: key.String(),
				Args: toArgs(value),
			})
			return true
		})
	}

	return sr, nil
}

func toArgs(v gjson.Result) map[string]any {
	args := map[string]any{}
	if !v.IsObject() {
		return args
	}

	v.ForEach(func(key, value gjson.Result) bool {
		args[key.String()] = value.Value()
		return true
	})

	return args
}
