// Package agentexec builds agent prompts and supervises coding-agent
// subprocesses. Agents mutate the store themselves; their prose output is
// never parsed for state.
package agentexec

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/metalagman/ainvoke"
	"github.com/rs/zerolog/log"

	"github.com/crewline/crewline/internal/feature"
)

// Options configures the agent runner.
type Options struct {
	Root     string
	AgentCmd string
	Model    string
	MaxTurns int
	Stdout   io.Writer
}

// Runner spawns one agent subprocess at a time in the project root.
type Runner struct {
	opts Options
}

// New creates an agent runner.
func New(opts Options) *Runner {
	if opts.AgentCmd == "" {
		opts.AgentCmd = "claude"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Runner{opts: opts}
}

func (r *Runner) argv(meta PromptMeta) []string {
	model := r.opts.Model
	if meta.Model != "" {
		model = meta.Model
	}
	maxTurns := r.opts.MaxTurns
	if meta.MaxTurns > 0 {
		maxTurns = meta.MaxTurns
	}
	argv := []string{r.opts.AgentCmd, "--print", "--output-format", "text"}
	if model != "" {
		argv = append(argv, "--model", model)
	}
	if maxTurns > 0 {
		argv = append(argv, "--max-turns", strconv.Itoa(maxTurns))
	}
	return argv
}

// Run builds the role prompt for the feature and blocks on the agent
// subprocess. Stdout streams through; stderr is captured to
// .framework/logs. The exit code feeds the controller's retry accounting.
// Context cancellation terminates the child.
func (r *Runner) Run(ctx context.Context, role string, f feature.Feature) (int, error) {
	meta, prompt, err := BuildPrompt(r.opts.Root, role, f)
	if err != nil {
		return 0, err
	}
	argv := r.argv(meta)

	logsDir := filepath.Join(r.opts.Root, ".framework", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return 0, fmt.Errorf("create logs dir: %w", err)
	}
	stderrPath := filepath.Join(logsDir, fmt.Sprintf("agent-%s-%s.log", f.ID, role))
	stderrFile, err := os.Create(stderrPath)
	if err != nil {
		return 0, fmt.Errorf("create agent stderr log: %w", err)
	}
	defer func() {
		if cErr := stderrFile.Close(); cErr != nil {
			log.Warn().Err(cErr).Msg("failed to close agent stderr log")
		}
	}()

	runner, err := ainvoke.NewRunner(ainvoke.AgentConfig{Cmd: argv})
	if err != nil {
		return 0, fmt.Errorf("init agent runner: %w", err)
	}

	log.Info().
		Str("role", role).
		Str("feature", f.ID).
		Strs("cmd", argv).
		Msg("agent start")

	inv := ainvoke.Invocation{
		RunDir:       r.opts.Root,
		SystemPrompt: prompt,
	}
	_, _, exitCode, err := runner.Run(ctx, inv,
		ainvoke.WithStdout(r.opts.Stdout),
		ainvoke.WithStderr(stderrFile))
	if err != nil {
		return exitCode, fmt.Errorf("run %s agent for %s: %w", role, f.ID, err)
	}

	log.Info().
		Str("role", role).
		Str("feature", f.ID).
		Int("exit_code", exitCode).
		Msg("agent finished")
	return exitCode, nil
}
