package shell

import (
	"context"
	"strings"
	"testing"

	picoagent "github.com/siriusctrl/picoagent"
)

func TestShellExecEcho(t *testing.T) {
	tool := Tool()
	res, err := tool.Execute(context.Background(), map[string]any{"command": "echo hello"}, &picoagent.ToolContext{CWD: t.TempDir()})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	if strings.TrimSpace(res.Content) != "hello" {
		t.Errorf("output = %q", res.Content)
	}
}

func TestShellExecRunsInCWD(t *testing.T) {
	dir := t.TempDir()
	tool := Tool()
	res, err := tool.Execute(context.Background(), map[string]any{"command": "pwd"}, &picoagent.ToolContext{CWD: dir})
	if err != nil || res.IsError {
		t.Fatalf("execute: %v / %+v", err, res)
	}
	if !strings.Contains(res.Content, dir) {
		t.Errorf("pwd = %q, want under %q", res.Content, dir)
	}
}

func TestShellExecBlocklist(t *testing.T) {
	tool := Tool()
	res, err := tool.Execute(context.Background(), map[string]any{"command": "sudo rm something"}, &picoagent.ToolContext{CWD: t.TempDir()})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "blocked") {
		t.Errorf("blocked command accepted: %+v", res)
	}
}

func TestShellExecFailureFlagged(t *testing.T) {
	tool := Tool()
	res, err := tool.Execute(context.Background(), map[string]any{"command": "exit 3"}, &picoagent.ToolContext{CWD: t.TempDir()})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Error("failing command not flagged")
	}
}

func TestShellExecCustomRunner(t *testing.T) {
	var gotDir, gotCmd string
	runner := runnerFunc(func(ctx context.Context, dir, command string) (string, error) {
		gotDir, gotCmd = dir, command
		return "sandboxed", nil
	})
	tool := Tool(WithRunner(runner))
	res, err := tool.Execute(context.Background(), map[string]any{"command": "ls"}, &picoagent.ToolContext{CWD: "/work"})
	if err != nil || res.IsError {
		t.Fatalf("execute: %v / %+v", err, res)
	}
	if res.Content != "sandboxed" || gotDir != "/work" || gotCmd != "ls" {
		t.Errorf("runner saw dir=%q cmd=%q content=%q", gotDir, gotCmd, res.Content)
	}
}

type runnerFunc func(ctx context.Context, dir, command string) (string, error)

func (f runnerFunc) Run(ctx context.Context, dir, command string) (string, error) {
	return f(ctx, dir, command)
}
