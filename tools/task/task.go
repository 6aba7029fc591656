// Package task provides the task-lifecycle tools. create_task, steer_task
// and abort_task hand events back to the runtime through the tool context's
// late-bound callbacks; task_status reads the on-disk record directly;
// report_progress is the worker-side progress log.
package task

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	picoagent "github.com/siriusctrl/picoagent"
)

// MainTools returns the task tools installed on the main agent.
func MainTools() []picoagent.Tool {
	return []picoagent.Tool{createTool(), steerTool(), abortTool(), statusTool()}
}

// WorkerTools returns the task tools installed on workers.
func WorkerTools() []picoagent.Tool {
	return []picoagent.Tool{progressTool()}
}

func createTool() picoagent.Tool {
	return picoagent.Tool{
		Name:        "create_task",
		Description: "Create a background task. A worker starts on it immediately; you will be notified when it finishes.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"name":         picoagent.String("Short task name"),
			"description":  picoagent.String("One-line description"),
			"instructions": picoagent.String("Full instructions for the worker"),
			"model":        picoagent.String("Model override (optional)"),
			"tags":         picoagent.Array("Labels for the task (optional)", picoagent.String("tag")),
		}, "name", "instructions"),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			name, _ := args["name"].(string)
			description, _ := args["description"].(string)
			instructions, _ := args["instructions"].(string)
			model, _ := args["model"].(string)
			var tags []string
			if raw, ok := args["tags"].([]any); ok {
				for _, item := range raw {
					if s, ok := item.(string); ok {
						tags = append(tags, s)
					}
				}
			}

			t, err := picoagent.CreateTask(tc.TasksRoot, name, description, instructions, model, tags)
			if err != nil {
				return picoagent.ToolResult{Content: "create error: " + err.Error(), IsError: true}, nil
			}
			if tc.OnTaskCreated != nil {
				tc.OnTaskCreated(t.Dir)
			}
			return picoagent.ToolResult{Content: fmt.Sprintf("Created task %s (%s)", t.ID, name)}, nil
		},
	}
}

func steerTool() picoagent.Tool {
	return picoagent.Tool{
		Name:        "steer_task",
		Description: "Send a steering message to a running task. The worker sees it before its next turn.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"task_id": picoagent.String("Task id, e.g. t_001"),
			"message": picoagent.String("Steering message"),
		}, "task_id", "message"),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			taskID, _ := args["task_id"].(string)
			message, _ := args["message"].(string)
			if tc.OnSteer == nil {
				return picoagent.ToolResult{Content: "steering is not available", IsError: true}, nil
			}
			tc.OnSteer(taskID, message)
			return picoagent.ToolResult{Content: fmt.Sprintf("Steer queued for %s", taskID)}, nil
		},
	}
}

func abortTool() picoagent.Tool {
	return picoagent.Tool{
		Name:        "abort_task",
		Description: "Abort a running task. The worker stops at its next tool boundary.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"task_id": picoagent.String("Task id, e.g. t_001"),
		}, "task_id"),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			taskID, _ := args["task_id"].(string)

			// Record the operator's intent on disk first, then flip the
			// in-memory flag. The driver keeps the aborted status when it
			// later catches the abort (see RunWorker).
			t, err := picoagent.LoadTask(joinTasks(tc, taskID))
			if err == nil {
				if serr := t.SetStatus(picoagent.TaskAborted); serr != nil {
					return picoagent.ToolResult{Content: "abort error: " + serr.Error(), IsError: true}, nil
				}
			}
			if tc.OnAbort != nil {
				tc.OnAbort(taskID)
			}
			return picoagent.ToolResult{Content: fmt.Sprintf("Abort requested for %s", taskID)}, nil
		},
	}
}

func statusTool() picoagent.Tool {
	return picoagent.Tool{
		Name:        "task_status",
		Description: "Report the status of one task, or of all tasks when no id is given.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"task_id": picoagent.String("Task id (optional)"),
		}),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			taskID, _ := args["task_id"].(string)
			if taskID != "" {
				t, err := picoagent.LoadTask(joinTasks(tc, taskID))
				if err != nil {
					return picoagent.ToolResult{Content: "status error: " + err.Error(), IsError: true}, nil
				}
				return picoagent.ToolResult{Content: fmt.Sprintf("%s (%s): %s", t.ID, t.Name, t.Status)}, nil
			}

			tasks, err := picoagent.ListTasks(tc.TasksRoot)
			if err != nil {
				return picoagent.ToolResult{Content: "status error: " + err.Error(), IsError: true}, nil
			}
			if len(tasks) == 0 {
				return picoagent.ToolResult{Content: "No tasks."}, nil
			}
			var b strings.Builder
			for _, t := range tasks {
				fmt.Fprintf(&b, "%s (%s): %s\n", t.ID, t.Name, t.Status)
			}
			return picoagent.ToolResult{Content: strings.TrimRight(b.String(), "\n")}, nil
		},
	}
}

func progressTool() picoagent.Tool {
	return picoagent.Tool{
		Name:        "report_progress",
		Description: "Append a progress note to the task's log. Use after completing each significant step.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"note": picoagent.String("Progress note"),
		}, "note"),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			note, _ := args["note"].(string)
			// Workers run with cwd = their task directory.
			t, err := picoagent.LoadTask(tc.CWD)
			if err != nil {
				return picoagent.ToolResult{Content: "progress error: " + err.Error(), IsError: true}, nil
			}
			if err := t.AppendProgress(note); err != nil {
				return picoagent.ToolResult{Content: "progress error: " + err.Error(), IsError: true}, nil
			}
			return picoagent.ToolResult{Content: "Progress recorded."}, nil
		},
	}
}

func joinTasks(tc *picoagent.ToolContext, taskID string) string {
	return filepath.Join(tc.TasksRoot, taskID)
}
