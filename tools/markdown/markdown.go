// Package markdown provides the load tool: it reads a markdown document,
// strips any frontmatter, and returns the title plus an outline alongside
// the body so the model gets structure without re-deriving it.
package markdown

import (
	"context"
	"fmt"
	"os"
	"strings"

	picoagent "github.com/siriusctrl/picoagent"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Tool returns the load tool.
func Tool() picoagent.Tool {
	return picoagent.Tool{
		Name:        "load",
		Description: "Load a markdown document. Returns its title, heading outline and full body.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"path": picoagent.String("Markdown file path"),
		}, "path"),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			path, _ := args["path"].(string)
			data, err := os.ReadFile(tc.Resolve(path))
			if err != nil {
				return picoagent.ToolResult{Content: "load error: " + err.Error(), IsError: true}, nil
			}
			_, body, err := picoagent.ParseFrontmatter(string(data))
			if err != nil {
				// A malformed frontmatter block is not fatal to loading;
				// fall back to the raw document.
				body = string(data)
			}

			title, outline := Outline([]byte(body))
			var b strings.Builder
			if title != "" {
				fmt.Fprintf(&b, "Title: %s\n", title)
			}
			if len(outline) > 0 {
				b.WriteString("Outline:\n")
				for _, h := range outline {
					b.WriteString("- " + h + "\n")
				}
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(body)
			return picoagent.ToolResult{Content: b.String()}, nil
		},
	}
}

// Outline parses a markdown document and returns its first level-1 heading
// as the title plus the flattened heading outline.
func Outline(source []byte) (title string, outline []string) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		txt := headingText(h, source)
		if h.Level == 1 && title == "" {
			title = txt
		}
		outline = append(outline, strings.Repeat("#", h.Level)+" "+txt)
		return ast.WalkSkipChildren, nil
	})
	return title, outline
}

func headingText(h *ast.Heading, source []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return b.String()
}
