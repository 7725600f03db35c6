// Package runner executes target actions and test suites as host
// subprocesses, reporting exit status and duration back to the engine.
package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/akashkj/quay/pkg/graph"
	"github.com/akashkj/quay/pkg/utils"
)

// ShellRunner runs one named command on the host. The command is opaque:
// only its exit status matters to the caller.
type ShellRunner struct {
	name   string
	env    []string
	dir    string
	stdout io.Writer
	stderr io.Writer
}

func NewShellRunner(name string) *ShellRunner {
	return &ShellRunner{
		name:   name,
		stdout: utils.NewColorWriter(name, os.Stdout, true),
		stderr: utils.NewColorWriter(name, os.Stderr, false),
	}
}

func (r *ShellRunner) WithEnv(env []string) *ShellRunner {
	r.env = env
	return r
}

func (r *ShellRunner) WithDir(dir string) *ShellRunner {
	r.dir = dir
	return r
}

func (r *ShellRunner) WithOutput(stdout, stderr io.Writer) *ShellRunner {
	r.stdout = stdout
	r.stderr = stderr
	return r
}

// Run executes command and blocks until it exits or ctx is done.
func (r *ShellRunner) Run(ctx context.Context, command []string) graph.ExecutionResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, command[0], command[1:]...) //nolint:gosec // declared pipeline command
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Dir = r.dir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	err := cmd.Run()
	res := graph.ExecutionResult{
		Name:     r.name,
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		// Command never started (missing binary, bad dir).
		res.ExitCode = -1
		res.Err = err
	}

	return res
}

// TargetExecutor adapts ShellRunner to the graph's Executor port.
type TargetExecutor struct{}

func (TargetExecutor) Execute(ctx context.Context, t graph.Target) graph.ExecutionResult {
	return NewShellRunner(t.Name).WithEnv(t.Env).Run(ctx, t.Command)
}
