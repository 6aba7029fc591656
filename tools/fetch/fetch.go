// Package fetch provides the web_fetch worker tool: download a URL and
// extract its readable text content.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	picoagent "github.com/siriusctrl/picoagent"

	"github.com/go-shiori/go-readability"
)

// Tool returns the web_fetch tool, backed by a 15-second HTTP client.
func Tool() picoagent.Tool {
	client := &http.Client{Timeout: 15 * time.Second}

	return picoagent.Tool{
		Name:        "web_fetch",
		Description: "Fetch a URL and extract its readable text content. Use for reading web pages, articles, documentation.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"url": picoagent.String("URL to fetch"),
		}, "url"),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			rawURL, _ := args["url"].(string)
			content, err := fetch(ctx, client, rawURL)
			if err != nil {
				return picoagent.ToolResult{Content: err.Error(), IsError: true}, nil
			}
			return picoagent.ToolResult{Content: content}, nil
		},
	}
}

func fetch(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; picoagent/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	html := string(body)

	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err == nil && article.TextContent != "" {
		return strings.TrimSpace(article.TextContent), nil
	}
	return stripHTML(html), nil
}

var (
	tagPattern   = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>`)
	anglePattern = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\n{3,}`)
)

// stripHTML is the fallback when readability finds no article content.
func stripHTML(html string) string {
	out := tagPattern.ReplaceAllString(html, "")
	out = anglePattern.ReplaceAllString(out, "\n")
	out = spacePattern.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
