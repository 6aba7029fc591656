package picoagent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustCreateTask(t *testing.T, root, instructions string) *Task {
	t.Helper()
	task, err := CreateTask(root, "job", "a test job", instructions, "", nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestWorkerCompletes(t *testing.T) {
	root := t.TempDir()
	task := mustCreateTask(t, root, "Say the word.")
	provider := &mockProvider{responses: []Message{AssistantText("the word")}}

	res := RunWorker(context.Background(), task.Dir, WorkerConfig{
		Provider:    provider,
		BaseContext: &ToolContext{TasksRoot: root},
	})
	if res.Status != TaskCompleted {
		t.Fatalf("status = %q, err = %v", res.Status, res.Err)
	}
	if res.Result != "the word" {
		t.Errorf("result = %q", res.Result)
	}

	loaded, _ := LoadTask(task.Dir)
	if loaded.Status != TaskCompleted {
		t.Errorf("on-disk status = %q", loaded.Status)
	}
	data, err := os.ReadFile(filepath.Join(task.Dir, "result.md"))
	if err != nil {
		t.Fatalf("result.md missing: %v", err)
	}
	if string(data) != "the word" {
		t.Errorf("result.md = %q", data)
	}

	// The worker's initial message is the task instructions.
	first := provider.requests[0].Messages[0]
	if first.Role != RoleUser || first.Content != "Say the word." {
		t.Errorf("initial message = %+v", first)
	}
}

func TestWorkerProviderErrorFails(t *testing.T) {
	root := t.TempDir()
	task := mustCreateTask(t, root, "whatever")
	provider := &mockProvider{err: &ErrLLM{Provider: "mock", Message: "down"}}

	res := RunWorker(context.Background(), task.Dir, WorkerConfig{
		Provider:    provider,
		BaseContext: &ToolContext{TasksRoot: root},
	})
	if res.Status != TaskFailed {
		t.Fatalf("status = %q", res.Status)
	}

	loaded, _ := LoadTask(task.Dir)
	if loaded.Status != TaskFailed {
		t.Errorf("on-disk status = %q", loaded.Status)
	}
	data, err := os.ReadFile(filepath.Join(task.Dir, "result.md"))
	if err != nil {
		t.Fatalf("result.md missing on failure: %v", err)
	}
	if !strings.HasPrefix(string(data), "Error:") {
		t.Errorf("result.md = %q", data)
	}
}

func TestWorkerAbortElectsAbortedStatus(t *testing.T) {
	root := t.TempDir()
	task := mustCreateTask(t, root, "long job")
	provider := &mockProvider{responses: []Message{
		AssistantBlocks(ToolCallBlock("1", "s", nil)),
		AssistantText("never"),
	}}

	ctl := NewControl()
	ctl.Abort()

	res := RunWorker(context.Background(), task.Dir, WorkerConfig{
		Tools:       []Tool{staticTool("s", "ok")},
		Provider:    provider,
		BaseContext: &ToolContext{TasksRoot: root},
		Control:     ctl,
		Hooks:       ControlHooks(task.ID, ctl),
	})
	if res.Status != TaskAborted {
		t.Fatalf("status = %q, want aborted", res.Status)
	}

	loaded, _ := LoadTask(task.Dir)
	if loaded.Status != TaskAborted {
		t.Errorf("on-disk status = %q", loaded.Status)
	}
	data, err := os.ReadFile(filepath.Join(task.Dir, "result.md"))
	if err != nil {
		t.Fatalf("result.md missing: %v", err)
	}
	if want := "Error: Task " + task.ID + " was aborted"; string(data) != want {
		t.Errorf("result.md = %q, want %q", data, want)
	}
}

func TestWorkerScopedContext(t *testing.T) {
	root := t.TempDir()
	task := mustCreateTask(t, root, "check context")

	var seen *ToolContext
	capture := Tool{
		Name: "capture",
		Execute: func(ctx context.Context, args map[string]any, tc *ToolContext) (ToolResult, error) {
			seen = tc
			return ToolResult{Content: "ok"}, nil
		},
	}
	provider := &mockProvider{responses: []Message{
		AssistantBlocks(ToolCallBlock("1", "capture", nil)),
		AssistantText("done"),
	}}

	res := RunWorker(context.Background(), task.Dir, WorkerConfig{
		Tools:       []Tool{capture},
		Provider:    provider,
		BaseContext: &ToolContext{CWD: "/somewhere", TasksRoot: root},
	})
	if res.Status != TaskCompleted {
		t.Fatalf("status = %q", res.Status)
	}
	if seen == nil {
		t.Fatal("tool never ran")
	}
	if seen.CWD != task.Dir || seen.WriteRoot != task.Dir {
		t.Errorf("context = cwd %q writeRoot %q, want both %q", seen.CWD, seen.WriteRoot, task.Dir)
	}
}

func TestWorkerPromptComposition(t *testing.T) {
	root := t.TempDir()
	task := mustCreateTask(t, root, "do the thing")
	provider := &mockProvider{responses: []Message{AssistantText("done")}}

	res := RunWorker(context.Background(), task.Dir, WorkerConfig{
		Provider:    provider,
		BaseContext: &ToolContext{TasksRoot: root},
		BuildPrompt: func(tk *Task) string { return "CUSTOM PROMPT for " + tk.ID },
	})
	if res.Status != TaskCompleted {
		t.Fatalf("status = %q", res.Status)
	}
	if got := provider.requests[0].System; got != "CUSTOM PROMPT for "+task.ID {
		t.Errorf("system prompt = %q", got)
	}
}
