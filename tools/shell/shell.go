// Package shell provides the shell_exec tool. Commands run in the tool
// context's working directory, either directly via sh -c or inside a
// container when a sandboxed Runner is installed.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	picoagent "github.com/siriusctrl/picoagent"
)

// Runner executes one command in a working directory and returns combined
// output. sandbox/docker provides a container-backed implementation.
type Runner interface {
	Run(ctx context.Context, dir, command string) (string, error)
}

// subprocessRunner is the default Runner: sh -c as a child process.
type subprocessRunner struct{}

func (subprocessRunner) Run(ctx context.Context, dir, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	return output, err
}

// Option configures the shell tool.
type Option func(*config)

type config struct {
	runner         Runner
	defaultTimeout int
}

// WithRunner replaces the default subprocess runner (e.g. with the docker
// sandbox).
func WithRunner(r Runner) Option {
	return func(c *config) { c.runner = r }
}

// WithDefaultTimeout sets the default command timeout in seconds.
func WithDefaultTimeout(seconds int) Option {
	return func(c *config) { c.defaultTimeout = seconds }
}

// blocked are command substrings rejected before execution.
var blocked = []string{"rm -rf /", "sudo ", "mkfs", "> /dev/", "dd if="}

// Tool returns the shell_exec tool.
func Tool(opts ...Option) picoagent.Tool {
	cfg := config{runner: subprocessRunner{}, defaultTimeout: 30}
	for _, o := range opts {
		o(&cfg)
	}

	return picoagent.Tool{
		Name:        "shell_exec",
		Description: "Execute a shell command in the working directory. Returns stdout and stderr.",
		Schema: picoagent.Object(map[string]*picoagent.Schema{
			"command": picoagent.String("Shell command to execute"),
			"timeout": picoagent.Integer("Timeout in seconds (default 30, max 300)"),
		}, "command"),
		Execute: func(ctx context.Context, args map[string]any, tc *picoagent.ToolContext) (picoagent.ToolResult, error) {
			command, _ := args["command"].(string)
			if command == "" {
				return picoagent.ToolResult{Content: "command is required", IsError: true}, nil
			}

			lower := strings.ToLower(command)
			for _, b := range blocked {
				if strings.Contains(lower, b) {
					return picoagent.ToolResult{Content: "command blocked for safety: " + b, IsError: true}, nil
				}
			}

			timeout := cfg.defaultTimeout
			if n, ok := args["timeout"].(int); ok && n > 0 {
				timeout = n
			}
			if timeout > 300 {
				timeout = 300
			}

			cmdCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
			defer cancel()

			output, err := cfg.runner.Run(cmdCtx, tc.CWD, command)
			if err != nil {
				if cmdCtx.Err() == context.DeadlineExceeded {
					return picoagent.ToolResult{Content: fmt.Sprintf("%s\ncommand timed out after %ds", output, timeout), IsError: true}, nil
				}
				if output == "" {
					output = err.Error()
				}
				return picoagent.ToolResult{Content: output + "\nexit: " + err.Error(), IsError: true}, nil
			}
			if output == "" {
				output = "(no output)"
			}
			return picoagent.ToolResult{Content: output}, nil
		},
	}
}
