// Package file provides the filesystem tools: read_file, write_file and
// list_dir. Writes honor the tool context's write root; reads of .pdf files
// extract text instead of returning raw bytes.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	picoagent "github.com/siriusctrl/picoagent"

	"github.com/ledongthuc/pdf"
)

// Tools returns the filesystem tool set.
func Tools() []picoagent.Tool {
	return []picoagent.Tool{readTool(), writeTool(), listTool()}
}

func readTool() picoagent.Tool {
	return picoagent.Tool{
		Name:        "read_file",
		Description: "Read a file. Relative paths resolve against the working directory. PDF files are returned as extracted text.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"path": picoagent.String("File path to read"),
		}, "path"),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			path, _ := args["path"].(string)
			resolved := tc.Resolve(path)
			if strings.EqualFold(filepath.Ext(resolved), ".pdf") {
				text, err := extractPDF(resolved)
				if err != nil {
					return picoagent.ToolResult{Content: "read error: " + err.Error(), IsError: true}, nil
				}
				return picoagent.ToolResult{Content: text}, nil
			}
			data, err := os.ReadFile(resolved)
			if err != nil {
				return picoagent.ToolResult{Content: "read error: " + err.Error(), IsError: true}, nil
			}
			return picoagent.ToolResult{Content: string(data)}, nil
		},
	}
}

func writeTool() picoagent.Tool {
	return picoagent.Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories if needed. Refuses paths outside the write root when one is set.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"path":    picoagent.String("File path to write"),
			"content": picoagent.String("Content to write"),
		}, "path", "content"),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if err := tc.CheckWrite(path); err != nil {
				return picoagent.ToolResult{Content: err.Error(), IsError: true}, nil
			}
			resolved := tc.Resolve(path)
			if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
				return picoagent.ToolResult{Content: "mkdir error: " + err.Error(), IsError: true}, nil
			}
			if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
				return picoagent.ToolResult{Content: "write error: " + err.Error(), IsError: true}, nil
			}
			return picoagent.ToolResult{Content: fmt.Sprintf("Written %d bytes to %s", len(content), path)}, nil
		},
	}
}

func listTool() picoagent.Tool {
	return picoagent.Tool{
		Name:        "list_dir",
		Description: "List the entries of a directory. Directories are suffixed with a slash.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"path": picoagent.String("Directory path (default: working directory)"),
		}),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}
			resolved := tc.Resolve(path)
			entries, err := os.ReadDir(resolved)
			if err != nil {
				return picoagent.ToolResult{Content: "list error: " + err.Error(), IsError: true}, nil
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			if len(names) == 0 {
				return picoagent.ToolResult{Content: "(empty)"}, nil
			}
			return picoagent.ToolResult{Content: strings.Join(names, "\n")}, nil
		},
	}
}

// extractPDF pulls plain text out of a PDF, page by page.
func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
