// Package tool holds the tool registry shared by agents, its langchaingo
// adapters and the builtin tools.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Func executes a tool with decoded JSON arguments.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Definition is a named callable with a JSON schema for its arguments.
type Definition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Execute     Func           `json:"-"`
}

// ObjectSchema builds a JSON schema object with string properties.
// Each entry of props maps a property name to its description.
func ObjectSchema(props map[string]string, required ...string) map[string]any {
	properties := make(map[string]any, len(props))
	for name, desc := range props {
		properties[name] = map[string]any{
			"type":        "string",
			"description": desc,
		}
	}
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// StringArg returns args[key] as a string.
func StringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

// ParseArgs decodes a tool call argument string. Non-object input is passed
// through as {"input": raw}.
func ParseArgs(raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{"input": raw}
	}
	return args
}

// FormatResult renders a tool result as text for the model.
func FormatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case fmt.Stringer:
		return r.String()
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprintf("%v", r)
		}
		return string(b)
	}
}
