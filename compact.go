package picoagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// summaryHeader marks a message produced by a previous compaction pass.
// Compaction recognises it at the head of the archive slice and folds the
// old summary into the new one instead of re-summarising it verbatim.
const summaryHeader = "## Previous Context"

const summarySystemPrompt = "You compress agent conversation transcripts. " +
	"Produce terse, information-dense summaries that let the agent continue " +
	"the task without the original messages."

// CompactionConfig tunes when and how aggressively a conversation is
// rolled up into a summary.
type CompactionConfig struct {
	// ContextWindow is the model's context size in tokens.
	ContextWindow int
	// TriggerRatio is the fill fraction at which compaction kicks in.
	TriggerRatio float64
	// PreserveRatio bounds the recent suffix kept verbatim.
	PreserveRatio float64
	// CharsPerToken is the estimation divisor.
	CharsPerToken int
}

func (c CompactionConfig) withDefaults() CompactionConfig {
	if c.ContextWindow <= 0 {
		c.ContextWindow = 200_000
	}
	if c.TriggerRatio <= 0 {
		c.TriggerRatio = 0.75
	}
	if c.PreserveRatio <= 0 {
		c.PreserveRatio = 0.25
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = 4
	}
	return c
}

// Compactor monitors conversation length at turn boundaries and rewrites the
// message list into a summary plus recent suffix when the estimate crosses
// the trigger threshold. Compaction is best-effort: every failure is logged
// and swallowed, never disrupting the loop.
type Compactor struct {
	provider Provider
	cfg      CompactionConfig
	logger   *slog.Logger
}

// CompactorOption configures a Compactor.
type CompactorOption func(*Compactor)

// CompactorLogger sets a structured logger for compaction outcomes.
func CompactorLogger(l *slog.Logger) CompactorOption {
	return func(c *Compactor) { c.logger = l }
}

// NewCompactor creates a Compactor that summarises with the given provider.
func NewCompactor(provider Provider, cfg CompactionConfig, opts ...CompactorOption) *Compactor {
	c := &Compactor{provider: provider, cfg: cfg.withDefaults(), logger: nopLogger}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Hooks returns the turn-end adapter.
func (c *Compactor) Hooks() *Hooks {
	return &Hooks{
		OnTurnEnd: func(ctx context.Context, messages *[]Message) error {
			if err := c.Compact(ctx, messages); err != nil {
				c.logger.Warn("compaction failed, continuing uncompacted", "error", err)
			}
			return nil
		},
	}
}

// Compact rewrites messages in place when the token estimate is at or above
// the trigger threshold. Exposed for direct use and tests; the hook wrapper
// swallows its error.
func (c *Compactor) Compact(ctx context.Context, messages *[]Message) error {
	msgs := *messages
	estimate := estimateTokens(c.cfg, msgs)
	threshold := int(float64(c.cfg.ContextWindow) * c.cfg.TriggerRatio)
	if estimate < threshold || len(msgs) == 0 {
		return nil
	}

	cut := c.selectCut(msgs)
	if cut <= 0 {
		return nil
	}

	archive := msgs[:cut]
	var prior string
	if archive[0].Role == RoleUser && strings.HasPrefix(archive[0].Content, summaryHeader) {
		prior = archive[0].Content
		archive = archive[1:]
	}
	if len(archive) == 0 {
		return nil
	}

	reads, writes := touchedFiles(archive)
	transcript := renderTranscript(archive)
	summary, err := c.summarize(ctx, prior, transcript)
	if err != nil {
		return err
	}

	block := summaryHeader + "\n\n" + summary
	if len(reads) > 0 || len(writes) > 0 {
		block += "\n\n## Touched Files (Archived)"
		if len(reads) > 0 {
			block += "\nRead:\n- " + strings.Join(reads, "\n- ")
		}
		if len(writes) > 0 {
			block += "\nModified:\n- " + strings.Join(writes, "\n- ")
		}
	}

	compacted := make([]Message, 0, len(msgs)-cut+1)
	compacted = append(compacted, UserMessage(block))
	compacted = append(compacted, msgs[cut:]...)
	*messages = compacted

	c.logger.Info("conversation compacted",
		"estimate_tokens", estimate,
		"archived", cut,
		"kept", len(msgs)-cut)
	return nil
}

// selectCut walks backwards accumulating per-message estimates and picks the
// cut index so the preserved suffix fits the preserve budget. If nothing
// fits, the latest message alone is preserved. The cut is then advanced past
// leading tool-results so no retained result is orphaned from its call.
func (c *Compactor) selectCut(msgs []Message) int {
	budget := int(float64(c.cfg.ContextWindow) * c.cfg.PreserveRatio)
	kept := 0
	cut := len(msgs) - 1
	for i := len(msgs) - 1; i >= 0; i-- {
		kept += messageTokens(c.cfg, msgs[i])
		if kept > budget {
			cut = i + 1
			break
		}
		cut = i
	}
	if cut >= len(msgs) {
		cut = len(msgs) - 1
	}
	for cut < len(msgs)-1 && msgs[cut].Role == RoleTool {
		cut++
	}
	return cut
}

func (c *Compactor) summarize(ctx context.Context, prior, transcript string) (string, error) {
	var prompt strings.Builder
	if prior != "" {
		prompt.WriteString("An earlier summary of this conversation exists:\n\n")
		prompt.WriteString(prior)
		prompt.WriteString("\n\nFold the following newer events into an updated summary.\n\n")
	} else {
		prompt.WriteString("Summarize the following conversation.\n\n")
	}
	prompt.WriteString(transcript)
	prompt.WriteString("\n\nStructure the summary as \"Goal / Key Decisions / Context\". Be brief.")

	resp, err := c.provider.Complete(ctx, ChatRequest{
		Messages: []Message{UserMessage(prompt.String())},
		System:   summarySystemPrompt,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// estimateTokens estimates the token footprint of a history as
// ceil(total_chars / charsPerToken).
func estimateTokens(cfg CompactionConfig, msgs []Message) int {
	chars := 0
	for _, m := range msgs {
		chars += messageChars(m)
	}
	return (chars + cfg.CharsPerToken - 1) / cfg.CharsPerToken
}

func messageTokens(cfg CompactionConfig, m Message) int {
	return (messageChars(m) + cfg.CharsPerToken - 1) / cfg.CharsPerToken
}

func messageChars(m Message) int {
	switch m.Role {
	case RoleAssistant:
		n := 0
		for _, b := range m.Blocks {
			if b.Type == BlockToolCall && b.ToolCall != nil {
				n += len(b.ToolCall.ArgsJSON()) + len(b.ToolCall.Name)
			} else {
				n += len(b.Text)
			}
		}
		return n
	default:
		return len(m.Content)
	}
}

// touchedFiles extracts file-operation metadata from archived assistant
// messages: path arguments of read_file/load calls and of write_file calls,
// each de-duplicated and sorted.
func touchedFiles(archive []Message) (reads, writes []string) {
	readSet := map[string]bool{}
	writeSet := map[string]bool{}
	for _, m := range archive {
		if m.Role != RoleAssistant {
			continue
		}
		for _, call := range m.ToolCalls() {
			path, _ := call.Args["path"].(string)
			if path == "" {
				continue
			}
			switch call.Name {
			case "read_file", "load":
				readSet[path] = true
			case "write_file":
				writeSet[path] = true
			}
		}
	}
	for p := range readSet {
		reads = append(reads, p)
	}
	for p := range writeSet {
		writes = append(writes, p)
	}
	sort.Strings(reads)
	sort.Strings(writes)
	return reads, writes
}

// renderTranscript serialises archived messages for the summarisation call.
func renderTranscript(archive []Message) string {
	var b strings.Builder
	for _, m := range archive {
		switch m.Role {
		case RoleUser:
			b.WriteString("User: ")
			b.WriteString(m.Content)
		case RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(blocksJSON(m.Blocks))
		case RoleTool:
			fmt.Fprintf(&b, "Tool Result (%s): %s", m.ToolCallID, m.Content)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func blocksJSON(blocks []ContentBlock) string {
	b, err := json.Marshal(blocks)
	if err != nil {
		return "[]"
	}
	return string(b)
}
