// Command picoagent is the REPL front-end: it wires config, provider,
// store, tools and skills into a Runtime, then reads operator messages from
// stdin and streams assistant text to stdout. Worker completion
// notifications stream to the same sink.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	picoagent "github.com/siriusctrl/picoagent"
	"github.com/siriusctrl/picoagent/internal/config"
	"github.com/siriusctrl/picoagent/observer"
	"github.com/siriusctrl/picoagent/provider/openaicompat"
	sandboxdocker "github.com/siriusctrl/picoagent/sandbox/docker"
	"github.com/siriusctrl/picoagent/skills"
	"github.com/siriusctrl/picoagent/store/postgres"
	"github.com/siriusctrl/picoagent/store/sqlite"
	"github.com/siriusctrl/picoagent/tools/fetch"
	"github.com/siriusctrl/picoagent/tools/file"
	markdowntool "github.com/siriusctrl/picoagent/tools/markdown"
	"github.com/siriusctrl/picoagent/tools/shell"
	tasktool "github.com/siriusctrl/picoagent/tools/task"

	"github.com/jackc/pgx/v5/pgxpool"
)

const mainSystemPrompt = `You are a personal assistant with background workers at your disposal.
For anything that takes more than a moment, create a task and let a worker handle it;
you will be notified when it finishes. Use steer_task to redirect a running worker
and abort_task to stop one. Keep your own replies short.`

func main() {
	ctx := context.Background()
	cfg := config.Load(os.Getenv("PICOAGENT_CONFIG"))

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := os.MkdirAll(cfg.Runtime.WorkspacePath, 0o755); err != nil {
		log.Fatalf("workspace: %v", err)
	}

	provider := openaicompat.New(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)

	// Store: postgres when configured, sqlite otherwise.
	var store picoagent.Store
	if cfg.Store.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	} else {
		store = sqlite.New(cfg.Store.SQLitePath, sqlite.WithLogger(logger))
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		log.Fatalf("store init: %v", err)
	}

	if cfg.Observer.Enabled {
		shutdown, err := observer.Init(ctx)
		if err != nil {
			logger.Warn("observer init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	// Shell tool, optionally sandboxed.
	var shellOpts []shell.Option
	if cfg.Sandbox.Enabled {
		var sbOpts []sandboxdocker.Option
		if cfg.Sandbox.Image != "" {
			sbOpts = append(sbOpts, sandboxdocker.WithImage(cfg.Sandbox.Image))
		}
		runner, err := sandboxdocker.New(sbOpts...)
		if err != nil {
			logger.Warn("sandbox unavailable, shell runs unsandboxed", "error", err)
		} else {
			defer runner.Close()
			shellOpts = append(shellOpts, shell.WithRunner(runner))
		}
	}

	mainTools := append(tasktool.MainTools(), file.Tools()...)
	mainTools = append(mainTools, markdowntool.Tool())

	workerTools := append(tasktool.WorkerTools(), file.Tools()...)
	workerTools = append(workerTools, markdowntool.Tool(), fetch.Tool(), shell.Tool(shellOpts...))

	baseCtx := &picoagent.ToolContext{
		CWD:       cfg.Runtime.WorkspacePath,
		TasksRoot: cfg.Runtime.TasksRoot,
	}

	opts := []picoagent.RuntimeOption{
		picoagent.WithSystemPrompt(mainSystemPrompt),
		picoagent.WithWorkerPrompt(skills.PromptBuilder(cfg.Runtime.WorkspacePath, logger)),
		picoagent.WithCompaction(picoagent.CompactionConfig{
			ContextWindow: cfg.Compaction.ContextWindow,
			TriggerRatio:  cfg.Compaction.TriggerRatio,
			PreserveRatio: cfg.Compaction.PreserveRatio,
			CharsPerToken: cfg.Compaction.CharsPerToken,
		}),
		picoagent.WithStore(store),
		picoagent.WithDeltaSink(os.Stdout),
		picoagent.WithModel(cfg.LLM.Model),
		picoagent.WithRuntimeLogger(logger),
	}
	if cfg.Runtime.TraceDir != "" {
		opts = append(opts, picoagent.WithTraceDir(cfg.Runtime.TraceDir))
	}
	if cfg.Observer.Enabled {
		opts = append(opts, picoagent.WithObserver(observer.LoopHooks))
	}

	runtime := picoagent.NewRuntime(provider, mainTools, workerTools, baseCtx, opts...)

	fmt.Printf("picoagent ready (model %s, workspace %s)\n", cfg.LLM.Model, cfg.Runtime.WorkspacePath)
	fmt.Println(`Type a message, or "exit" to quit.`)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		_, err := runtime.OnUserMessage(ctx, line, func(text string) {
			fmt.Print(text)
		})
		fmt.Println()
		if err != nil {
			logger.Error("turn failed", "error", err)
		}
	}

	logger.Info("waiting for running workers")
	runtime.Wait()
}
