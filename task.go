package picoagent

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// TaskStatus is the lifecycle state recorded in task.md frontmatter.
// Transitions: pending -> running -> {completed | failed | aborted}.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskAborted   TaskStatus = "aborted"
)

// IsTerminal reports whether the status is final.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskAborted
}

// Task is the on-disk record of one worker assignment: a directory named
// t_NNN under the tasks root holding task.md (frontmatter + instructions),
// progress.md (append-only worker log) and result.md (final text).
type Task struct {
	ID           string
	Name         string
	Description  string
	Status       TaskStatus
	Model        string
	Tags         []string
	Instructions string
	Dir          string
}

var taskDirPattern = regexp.MustCompile(`^t_(\d+)$`)

// AllocateTaskDir creates the next task directory under tasksRoot.
// Ids are sequential: the max existing integer suffix plus one, formatted
// with 3-digit zero-padding.
func AllocateTaskDir(tasksRoot string) (string, error) {
	if err := os.MkdirAll(tasksRoot, 0o755); err != nil {
		return "", fmt.Errorf("tasks root: %w", err)
	}
	entries, err := os.ReadDir(tasksRoot)
	if err != nil {
		return "", fmt.Errorf("scan tasks root: %w", err)
	}
	maxID := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := taskDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n > maxID {
			maxID = n
		}
	}
	dir := filepath.Join(tasksRoot, fmt.Sprintf("t_%03d", maxID+1))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task dir: %w", err)
	}
	return dir, nil
}

// CreateTask allocates a directory and writes the initial task.md with
// status pending.
func CreateTask(tasksRoot, name, description, instructions, model string, tags []string) (*Task, error) {
	dir, err := AllocateTaskDir(tasksRoot)
	if err != nil {
		return nil, err
	}
	t := &Task{
		ID:           filepath.Base(dir),
		Name:         name,
		Description:  description,
		Status:       TaskPending,
		Model:        model,
		Tags:         tags,
		Instructions: instructions,
		Dir:          dir,
	}

	fm := NewFrontmatter()
	fm.Set("id", t.ID)
	fm.Set("name", name)
	fm.Set("description", description)
	fm.Set("status", string(TaskPending))
	fm.Set("created", timestamp())
	fm.Set("started", nil)
	fm.Set("completed", nil)
	fm.Set("model", model)
	tagVals := make([]any, len(tags))
	for i, tag := range tags {
		tagVals[i] = tag
	}
	fm.Set("tags", tagVals)

	doc := RenderDocument(fm, "\n"+instructions+"\n")
	if err := os.WriteFile(t.taskFile(), []byte(doc), 0o644); err != nil {
		return nil, fmt.Errorf("write task.md: %w", err)
	}
	return t, nil
}

// LoadTask reads a task directory's task.md.
func LoadTask(dir string) (*Task, error) {
	data, err := os.ReadFile(filepath.Join(dir, "task.md"))
	if err != nil {
		return nil, fmt.Errorf("read task.md: %w", err)
	}
	fm, body, err := ParseFrontmatter(string(data))
	if err != nil {
		return nil, err
	}
	t := &Task{
		ID:           fm.GetString("id"),
		Name:         fm.GetString("name"),
		Description:  fm.GetString("description"),
		Status:       TaskStatus(fm.GetString("status")),
		Model:        fm.GetString("model"),
		Tags:         fm.GetStrings("tags"),
		Instructions: trimBlank(body),
		Dir:          dir,
	}
	if t.ID == "" {
		t.ID = filepath.Base(dir)
	}
	return t, nil
}

// SetStatus rewrites task.md frontmatter with the new status, stamping
// started on the first transition into running and completed on the first
// transition into a terminal state. Unknown keys and key order are
// preserved.
func (t *Task) SetStatus(status TaskStatus) error {
	data, err := os.ReadFile(t.taskFile())
	if err != nil {
		return fmt.Errorf("read task.md: %w", err)
	}
	fm, body, err := ParseFrontmatter(string(data))
	if err != nil {
		return err
	}
	fm.Set("status", string(status))
	if status == TaskRunning && fm.GetString("started") == "" {
		fm.Set("started", timestamp())
	}
	if status.IsTerminal() && fm.GetString("completed") == "" {
		fm.Set("completed", timestamp())
	}
	if err := os.WriteFile(t.taskFile(), []byte(RenderDocument(fm, body)), 0o644); err != nil {
		return fmt.Errorf("write task.md: %w", err)
	}
	t.Status = status
	return nil
}

// AppendProgress appends a line to progress.md.
func (t *Task) AppendProgress(text string) error {
	f, err := os.OpenFile(filepath.Join(t.Dir, "progress.md"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open progress.md: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text + "\n"); err != nil {
		return fmt.Errorf("append progress.md: %w", err)
	}
	return nil
}

// WriteResult writes the terminal result text.
func (t *Task) WriteResult(text string) error {
	if err := os.WriteFile(filepath.Join(t.Dir, "result.md"), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write result.md: %w", err)
	}
	return nil
}

// ListTasks returns the tasks under tasksRoot in id order. Directories with
// an unreadable task.md are skipped.
func ListTasks(tasksRoot string) ([]*Task, error) {
	entries, err := os.ReadDir(tasksRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tasks []*Task
	for _, e := range entries {
		if !e.IsDir() || !taskDirPattern.MatchString(e.Name()) {
			continue
		}
		t, err := LoadTask(filepath.Join(tasksRoot, e.Name()))
		if err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (t *Task) taskFile() string {
	return filepath.Join(t.Dir, "task.md")
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func trimBlank(s string) string {
	for len(s) > 0 && (s[0] == '\n' || s[0] == '\r') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
