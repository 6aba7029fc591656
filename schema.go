package picoagent

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Schema is a JSON-Schema-shaped parameter description. It serves two
// purposes: producing the wire form sent to the LLM (MarshalJSON) and
// validating the untyped argument map the LLM sends back (Validate).
//
// The supported subset mirrors what the shipped tools need: object, string,
// integer, number, boolean and array types, string enums, required fields.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// --- Schema constructors ---

// Object builds an object schema. Required fields are named explicitly.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

func String(desc string) *Schema  { return &Schema{Type: "string", Description: desc} }
func Integer(desc string) *Schema { return &Schema{Type: "integer", Description: desc} }
func Number(desc string) *Schema  { return &Schema{Type: "number", Description: desc} }
func Boolean(desc string) *Schema { return &Schema{Type: "boolean", Description: desc} }

func Array(desc string, items *Schema) *Schema {
	return &Schema{Type: "array", Description: desc, Items: items}
}

func StringEnum(desc string, values ...string) *Schema {
	return &Schema{Type: "string", Description: desc, Enum: values}
}

// JSON returns the serialized wire form for the LLM.
func (s *Schema) JSON() json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return b
}

// SchemaIssue is one validation failure: the field path that failed and why.
type SchemaIssue struct {
	Path    string
	Message string
}

// SchemaError aggregates the issues found while validating an argument map.
type SchemaError struct {
	Issues []SchemaIssue
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.Path + ": " + issue.Message
	}
	return strings.Join(parts, ", ")
}

// Validate checks args against the schema and returns a coerced copy.
// JSON numbers arrive as float64; integral values are coerced to int for
// integer-typed fields. Unknown fields pass through untouched so that models
// adding harmless extras do not fail the call.
func (s *Schema) Validate(args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	var issues []SchemaIssue
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	for _, req := range s.Required {
		if _, ok := args[req]; !ok {
			issues = append(issues, SchemaIssue{Path: req, Message: "required field missing"})
		}
	}

	// Deterministic issue order regardless of map iteration.
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop := s.Properties[name]
		v, ok := args[name]
		if !ok {
			continue
		}
		coerced, issue := prop.check(name, v)
		if issue != nil {
			issues = append(issues, *issue)
			continue
		}
		out[name] = coerced
	}

	if len(issues) > 0 {
		return nil, &SchemaError{Issues: issues}
	}
	return out, nil
}

// check validates a single value against the schema, returning the coerced
// value or an issue anchored at path.
func (s *Schema) check(path string, v any) (any, *SchemaIssue) {
	switch s.Type {
	case "string":
		str, ok := v.(string)
		if !ok {
			return nil, &SchemaIssue{Path: path, Message: fmt.Sprintf("expected string, got %T", v)}
		}
		if len(s.Enum) > 0 {
			for _, e := range s.Enum {
				if str == e {
					return str, nil
				}
			}
			return nil, &SchemaIssue{Path: path, Message: "must be one of " + strings.Join(s.Enum, ", ")}
		}
		return str, nil
	case "integer":
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, &SchemaIssue{Path: path, Message: "expected integer, got fractional number"}
			}
			return int(n), nil
		}
		return nil, &SchemaIssue{Path: path, Message: fmt.Sprintf("expected integer, got %T", v)}
	case "number":
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, &SchemaIssue{Path: path, Message: fmt.Sprintf("expected number, got %T", v)}
	case "boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, &SchemaIssue{Path: path, Message: fmt.Sprintf("expected boolean, got %T", v)}
		}
		return b, nil
	case "array":
		items, ok := v.([]any)
		if !ok {
			return nil, &SchemaIssue{Path: path, Message: fmt.Sprintf("expected array, got %T", v)}
		}
		if s.Items == nil {
			return items, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			coerced, issue := s.Items.check(fmt.Sprintf("%s[%d]", path, i), item)
			if issue != nil {
				return nil, issue
			}
			out[i] = coerced
		}
		return out, nil
	case "object":
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &SchemaIssue{Path: path, Message: fmt.Sprintf("expected object, got %T", v)}
		}
		coerced, err := s.Validate(m)
		if err != nil {
			var se *SchemaError
			if errors.As(err, &se) && len(se.Issues) > 0 {
				first := se.Issues[0]
				return nil, &SchemaIssue{Path: path + "." + first.Path, Message: first.Message}
			}
			return nil, &SchemaIssue{Path: path, Message: err.Error()}
		}
		return coerced, nil
	default:
		return v, nil
	}
}
