package harness

import (
	"fmt"
	"strconv"
	"strings"
)

// evalPointer resolves a result reference path against a decoded response
// the way a server does: "*" maps the rest of the path over an array and
// flattens array results one level.
func evalPointer(doc any, path string) (any, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path %q must start with /", path)
	}
	return walk(doc, strings.Split(path[1:], "/"))
}

func walk(doc any, tokens []string) (any, error) {
	if len(tokens) == 0 {
		return doc, nil
	}
	tok := strings.NewReplacer("~1", "/", "~0", "~").Replace(tokens[0])

	switch v := doc.(type) {
	case map[string]any:
		child, ok := v[tok]
		if !ok {
			return nil, fmt.Errorf("no member %q", tok)
		}
		return walk(child, tokens[1:])
	case []any:
		if tok == "*" {
			out := []any{}
			for i, item := range v {
				r, err := walk(item, tokens[1:])
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", i, err)
				}
				if arr, ok := r.([]any); ok {
					out = append(out, arr...)
				} else {
					out = append(out, r)
				}
			}
			return out, nil
		}
		i, err := strconv.Atoi(tok)
		if err != nil || i < 0 || i >= len(v) {
			return nil, fmt.Errorf("no element %q", tok)
		}
		return walk(v[i], tokens[1:])
	default:
		return nil, fmt.Errorf("cannot descend into %T at %q", doc, tok)
	}
}
