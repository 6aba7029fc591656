// Package picoagent is a personal AI-assistant runtime. A human operator
// converses with an LLM through an interactive loop while long-running
// background workers carry out focused tasks, each running its own
// tool-calling loop against the same provider abstraction.
//
// The core pieces:
//
//   - RunAgentLoop: the turn-by-turn driver alternating LLM calls and tool
//     executions until the model emits a turn without tool calls.
//   - Hooks: nine optional lifecycle callbacks composed with CombineHooks.
//     Tracing, context compaction, worker control and streaming are layered
//     onto the loop through hooks; the loop knows nothing about them.
//   - RunWorker: reads a task directory, runs the loop with a task-scoped
//     tool context, and writes the result file and terminal status; the
//     worker's report_progress tool appends the progress log during the run.
//   - Runtime: owns the main conversation, spawns workers as background
//     goroutines, holds their control handles, and injects completion
//     notifications back into the main agent's conversation.
//
// Provider bindings live under provider/, concrete tools under tools/,
// OTEL export under observer/, and conversation archival under store/.
package picoagent
