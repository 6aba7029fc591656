// Package skills discovers skill packages in a workspace and assembles the
// worker system prompt. A skill is a directory holding a SKILL.md whose
// frontmatter names and describes it; the markdown body carries the full
// instructions.
package skills

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	picoagent "github.com/siriusctrl/picoagent"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Skill is one discovered skill package.
type Skill struct {
	Name        string
	Description string
	Path        string
	// Summary is the first paragraph of the body, used in prompt listings.
	Summary string
}

// Discover walks dir for SKILL.md files and parses each one. A missing
// directory yields no skills and no error.
func Discover(dir string) ([]Skill, error) {
	var found []Skill
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "SKILL.md" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		fm, body, err := picoagent.ParseFrontmatter(string(data))
		if err != nil {
			return nil
		}
		name := fm.GetString("name")
		if name == "" {
			name = filepath.Base(filepath.Dir(path))
		}
		found = append(found, Skill{
			Name:        name,
			Description: fm.GetString("description"),
			Path:        path,
			Summary:     firstParagraph([]byte(body)),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return found, err
}

// firstParagraph returns the text of the first paragraph node in a
// markdown document.
func firstParagraph(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))
	var out string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || out != "" {
			return ast.WalkContinue, nil
		}
		if p, ok := n.(*ast.Paragraph); ok {
			var b strings.Builder
			for c := p.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					b.Write(t.Segment.Value(source))
					if t.SoftLineBreak() {
						b.WriteByte(' ')
					}
				}
			}
			out = b.String()
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

// defaultBehaviorGuide is the host behavior section of every worker prompt.
const defaultBehaviorGuide = `You are a background worker executing one focused task.
Work autonomously: do not ask questions, there is nobody to answer them.
Use the provided tools; record progress with report_progress as you go.
Your final message becomes the task result.`

// protocolInstructions tell the worker how steers and results are handled.
const protocolInstructions = `Messages prefixed with [Steer] are live instructions from the operator; fold them into your plan immediately.
When the task is done, reply with the final result as plain text and stop calling tools.`

// PromptBuilder returns the standard worker system-prompt composition:
// behavior guide, skill summaries, protocol instructions, working-directory
// reminder, then the task heading with its instructions.
func PromptBuilder(workspaceDir string, logger *slog.Logger) func(t *picoagent.Task) string {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	found, err := Discover(filepath.Join(workspaceDir, "skills"))
	if err != nil {
		logger.Warn("skill discovery failed", "dir", workspaceDir, "error", err)
	}
	return func(t *picoagent.Task) string {
		var b strings.Builder
		b.WriteString(defaultBehaviorGuide)
		b.WriteString("\n\n")
		if len(found) > 0 {
			b.WriteString("# Available skills\n")
			for _, s := range found {
				b.WriteString("- " + s.Name)
				if s.Description != "" {
					b.WriteString(": " + s.Description)
				} else if s.Summary != "" {
					b.WriteString(": " + s.Summary)
				}
				b.WriteString(" (load " + s.Path + " for details)\n")
			}
			b.WriteString("\n")
		}
		b.WriteString(protocolInstructions)
		b.WriteString("\n\n")
		b.WriteString("Your working directory is " + t.Dir + ". All files you write must stay inside it.\n\n")
		b.WriteString("# Task: " + t.Name + "\n\n")
		if t.Description != "" {
			b.WriteString(t.Description + "\n\n")
		}
		b.WriteString(t.Instructions)
		return b.String()
	}
}
