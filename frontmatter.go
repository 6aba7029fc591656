package picoagent

import (
	"fmt"
	"strconv"
	"strings"
)

// Frontmatter is an ordered set of key/value pairs parsed from a YAML-style
// block at the head of a markdown document. The supported value syntax is
// deliberately minimal: numbers, true/false, null, quoted strings, inline
// bracketed arrays, and bare strings. Nested maps and multi-line values are
// not supported.
//
// Key order is preserved across a parse/encode round trip so that writing a
// status change back does not reshuffle the file.
type Frontmatter struct {
	keys   []string
	values map[string]any
}

// NewFrontmatter creates an empty frontmatter.
func NewFrontmatter() *Frontmatter {
	return &Frontmatter{values: map[string]any{}}
}

// Keys returns the keys in insertion order.
func (f *Frontmatter) Keys() []string { return f.keys }

// Get returns the raw value for key.
func (f *Frontmatter) Get(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

// GetString returns the value for key as a string, or "" when absent or not
// a string.
func (f *Frontmatter) GetString(key string) string {
	s, _ := f.values[key].(string)
	return s
}

// GetStrings returns the value for key as a string slice (for inline
// arrays), or nil.
func (f *Frontmatter) GetStrings(key string) []string {
	items, ok := f.values[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprintf("%v", it))
	}
	return out
}

// Set stores a value, appending the key at the end when new.
func (f *Frontmatter) Set(key string, value any) {
	if _, exists := f.values[key]; !exists {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// ParseFrontmatter splits a document into its frontmatter block and body.
// A document without a leading "---" line parses as an empty frontmatter
// with the whole input as body.
func ParseFrontmatter(doc string) (*Frontmatter, string, error) {
	fm := NewFrontmatter()
	lines := strings.Split(doc, "\n")
	if strings.TrimRight(lines[0], " \t\r") != "---" {
		return fm, doc, nil
	}
	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r") == "---" {
			closing = i
			break
		}
	}
	if closing < 0 {
		return nil, "", fmt.Errorf("frontmatter: missing closing delimiter")
	}

	for ln, line := range lines[1:closing] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, raw, ok := strings.Cut(line, ":")
		if !ok {
			return nil, "", fmt.Errorf("frontmatter line %d: missing colon", ln+2)
		}
		key = strings.TrimSpace(key)
		val, err := parseScalar(strings.TrimSpace(raw))
		if err != nil {
			return nil, "", fmt.Errorf("frontmatter key %q: %w", key, err)
		}
		fm.Set(key, val)
	}
	return fm, strings.Join(lines[closing+1:], "\n"), nil
}

// parseScalar interprets one frontmatter value.
func parseScalar(raw string) (any, error) {
	switch {
	case raw == "":
		return "", nil
	case raw == "null" || raw == "~":
		return nil, nil
	case raw == "true":
		return true, nil
	case raw == "false":
		return false, nil
	}
	if strings.HasPrefix(raw, "[") {
		if !strings.HasSuffix(raw, "]") {
			return nil, fmt.Errorf("unterminated array %q", raw)
		}
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		if inner == "" {
			return []any{}, nil
		}
		var items []any
		for _, part := range strings.Split(inner, ",") {
			item, err := parseScalar(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	}
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') || (raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return unquote(raw), nil
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return int(n), nil
	}
	if fl, err := strconv.ParseFloat(raw, 64); err == nil {
		return fl, nil
	}
	return raw, nil
}

func unquote(raw string) string {
	q := raw[0]
	inner := raw[1 : len(raw)-1]
	if q == '"' {
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
	} else {
		inner = strings.ReplaceAll(inner, `''`, `'`)
	}
	return inner
}

// Encode renders the frontmatter block, delimiters included. Strings are
// requoted; numbers, booleans, arrays and null are emitted unquoted.
func (f *Frontmatter) Encode() string {
	var b strings.Builder
	b.WriteString("---\n")
	for _, key := range f.keys {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(encodeScalar(f.values[key]))
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	return b.String()
}

func encodeScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return strconv.Quote(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = encodeScalar(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return strconv.Quote(fmt.Sprintf("%v", val))
	}
}

// RenderDocument joins a frontmatter block and body back into a document.
func RenderDocument(fm *Frontmatter, body string) string {
	return fm.Encode() + body
}
