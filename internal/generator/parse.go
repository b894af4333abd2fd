package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// extractJSON pulls the outermost JSON object out of a completion that may be
// wrapped in a markdown fence or surrounded by prose.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		}
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in response")
	}
	return text[start : end+1], nil
}

func parseItems[T any](text, key string) ([]T, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if v, ok := env["success"]; ok {
		var success bool
		if err := json.Unmarshal(v, &success); err != nil || !success {
			return nil, errors.New("model reported success=false")
		}
	}
	list, ok := env[key]
	if !ok {
		return nil, fmt.Errorf("response has no %q field", key)
	}
	var items []T
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, fmt.Errorf("invalid %s array: %w", key, err)
	}
	return items, nil
}
