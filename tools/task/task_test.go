package task

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	picoagent "github.com/siriusctrl/picoagent"
)

func toolByName(t *testing.T, tools []picoagent.Tool, name string) picoagent.Tool {
	t.Helper()
	for _, tool := range tools {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not found", name)
	return picoagent.Tool{}
}

func TestCreateTaskToolFiresCallback(t *testing.T) {
	root := t.TempDir()
	var createdDir string
	tc := &picoagent.ToolContext{
		TasksRoot:     root,
		OnTaskCreated: func(dir string) { createdDir = dir },
	}

	create := toolByName(t, MainTools(), "create_task")
	res, err := create.Execute(context.Background(), map[string]any{
		"name":         "probe",
		"instructions": "Do the thing.",
	}, tc)
	if err != nil || res.IsError {
		t.Fatalf("create: %v / %+v", err, res)
	}
	if !strings.Contains(res.Content, "t_001") {
		t.Errorf("result = %q", res.Content)
	}
	if createdDir != filepath.Join(root, "t_001") {
		t.Errorf("callback dir = %q", createdDir)
	}

	loaded, err := picoagent.LoadTask(createdDir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Status != picoagent.TaskPending || loaded.Instructions != "Do the thing." {
		t.Errorf("task = %+v", loaded)
	}
}

func TestSteerAndAbortToolsRouteCallbacks(t *testing.T) {
	root := t.TempDir()
	created, err := picoagent.CreateTask(root, "x", "", "work", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	var steered, abortedID string
	tc := &picoagent.ToolContext{
		TasksRoot: root,
		OnSteer:   func(id, msg string) { steered = id + ":" + msg },
		OnAbort:   func(id string) { abortedID = id },
	}

	steer := toolByName(t, MainTools(), "steer_task")
	if res, err := steer.Execute(context.Background(), map[string]any{"task_id": created.ID, "message": "left"}, tc); err != nil || res.IsError {
		t.Fatalf("steer: %v / %+v", err, res)
	}
	if steered != created.ID+":left" {
		t.Errorf("steer callback = %q", steered)
	}

	abort := toolByName(t, MainTools(), "abort_task")
	if res, err := abort.Execute(context.Background(), map[string]any{"task_id": created.ID}, tc); err != nil || res.IsError {
		t.Fatalf("abort: %v / %+v", err, res)
	}
	if abortedID != created.ID {
		t.Errorf("abort callback = %q", abortedID)
	}

	// The abort tool records the operator intent on disk before the
	// callback fires.
	loaded, _ := picoagent.LoadTask(created.Dir)
	if loaded.Status != picoagent.TaskAborted {
		t.Errorf("status = %q, want aborted", loaded.Status)
	}
}

func TestTaskStatusTool(t *testing.T) {
	root := t.TempDir()
	a, _ := picoagent.CreateTask(root, "first", "", "i", "", nil)
	b, _ := picoagent.CreateTask(root, "second", "", "i", "", nil)
	_ = b.SetStatus(picoagent.TaskRunning)

	status := toolByName(t, MainTools(), "task_status")
	tc := &picoagent.ToolContext{TasksRoot: root}

	res, err := status.Execute(context.Background(), map[string]any{"task_id": a.ID}, tc)
	if err != nil || res.IsError {
		t.Fatalf("status: %v / %+v", err, res)
	}
	if !strings.Contains(res.Content, "pending") {
		t.Errorf("single status = %q", res.Content)
	}

	res, err = status.Execute(context.Background(), map[string]any{}, tc)
	if err != nil || res.IsError {
		t.Fatalf("status all: %v / %+v", err, res)
	}
	if !strings.Contains(res.Content, "t_001") || !strings.Contains(res.Content, "running") {
		t.Errorf("all statuses = %q", res.Content)
	}
}

func TestReportProgressAppendsToTaskLog(t *testing.T) {
	root := t.TempDir()
	created, err := picoagent.CreateTask(root, "x", "", "work", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	// Workers run with cwd = task dir.
	tc := &picoagent.ToolContext{TasksRoot: root, CWD: created.Dir, WriteRoot: created.Dir}

	progress := toolByName(t, WorkerTools(), "report_progress")
	if res, err := progress.Execute(context.Background(), map[string]any{"note": "halfway"}, tc); err != nil || res.IsError {
		t.Fatalf("progress: %v / %+v", err, res)
	}

	data, err := os.ReadFile(filepath.Join(created.Dir, "progress.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "halfway\n" {
		t.Errorf("progress.md = %q", data)
	}
}
