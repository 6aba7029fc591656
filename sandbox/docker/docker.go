// Package docker provides a container-backed runner for the shell tool.
// Each command runs in a fresh container with the working directory bind
// mounted at /workspace, so a worker's shell access is confined to its task
// directory even though the command itself is untrusted.
package docker

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DefaultImage is used when no image is configured.
const DefaultImage = "alpine:3.20"

// Runner implements shell.Runner on top of the Docker Engine API.
type Runner struct {
	cli   *client.Client
	image string
}

// Option configures a Runner.
type Option func(*Runner)

// WithImage sets the container image commands run in.
func WithImage(image string) Option {
	return func(r *Runner) { r.image = image }
}

// New creates a Runner from the environment's Docker configuration.
func New(opts ...Option) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	r := &Runner{cli: cli, image: DefaultImage}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Close releases the underlying client.
func (r *Runner) Close() error {
	return r.cli.Close()
}

// Run executes one command in a fresh container and returns its combined
// output. The container is always removed, even on failure.
func (r *Runner) Run(ctx context.Context, dir, command string) (string, error) {
	created, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      r.image,
			Cmd:        []string{"sh", "-c", command},
			WorkingDir: "/workspace",
		},
		&container.HostConfig{
			Binds:       []string{dir + ":/workspace"},
			NetworkMode: "none",
			AutoRemove:  false,
		},
		nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}
	id := created.ID
	defer func() {
		_ = r.cli.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true})
	}()

	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("container start: %w", err)
	}

	statusCh, errCh := r.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("container wait: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	case <-ctx.Done():
		return "", ctx.Err()
	}

	logs, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", fmt.Errorf("container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return "", fmt.Errorf("container logs read: %w", err)
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	if exitCode != 0 {
		return output, fmt.Errorf("exit status %d", exitCode)
	}
	return output, nil
}
