package invocation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when content holds no decodable JSON value
var ErrNoJSON = errors.New("no JSON object found in content")

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// ParseStructured decodes model output that should be JSON. It accepts the
// content as-is, the first fenced ```json block, or the outermost {...} span,
// in that order.
func ParseStructured(content string) (interface{}, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrNoJSON
	}

	if v, err := decode(trimmed); err == nil {
		return v, nil
	}

	for _, match := range fencedBlock.FindAllStringSubmatch(trimmed, -1) {
		if v, err := decode(strings.TrimSpace(match[1])); err == nil {
			return v, nil
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		v, err := decode(trimmed[start : end+1])
		if err == nil {
			return v, nil
		}
		return nil, err
	}

	return nil, ErrNoJSON
}

func decode(s string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
