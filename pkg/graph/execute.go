package graph

import (
	"context"
	"time"
)

// Step is one entry of an execution plan.
type Step struct {
	Target Target
	Stale  bool
	// Reason records why the step is stale, for logging only.
	Reason string
}

// Plan is a topologically ordered execution plan.
type Plan []Step

// Stale returns the targets that actually need to run.
func (p Plan) Stale() []Target {
	var targets []Target
	for _, s := range p {
		if s.Stale {
			targets = append(targets, s.Target)
		}
	}
	return targets
}

// ExecutionResult is the outcome of one target action, or of a skipped
// fresh target.
type ExecutionResult struct {
	Name     string
	ExitCode int
	Duration time.Duration
	Skipped  bool
	Err      error
}

// Executor runs a target's action as an opaque external process. The
// engine only observes the exit status and the file timestamps left
// behind.
type Executor interface {
	Execute(ctx context.Context, t Target) ExecutionResult
}

// Execute runs the plan's stale steps in order, recording a skipped result
// for fresh ones. On the first non-zero exit it stops and reports the
// failed target along with every step that was never attempted.
func (g *Graph) Execute(ctx context.Context, plan Plan, exec Executor) ([]ExecutionResult, error) {
	results := make([]ExecutionResult, 0, len(plan))

	for i, step := range plan {
		if !step.Stale {
			results = append(results, ExecutionResult{Name: step.Target.Name, Skipped: true})
			continue
		}

		res := exec.Execute(ctx, step.Target)
		results = append(results, res)

		if res.Err != nil || res.ExitCode != 0 {
			var remaining []string
			for _, rest := range plan[i+1:] {
				if rest.Stale {
					remaining = append(remaining, rest.Target.Name)
				}
			}
			return results, &ActionExecutionError{
				Target:    step.Target.Name,
				ExitCode:  res.ExitCode,
				Remaining: remaining,
				Err:       res.Err,
			}
		}
	}

	return results, nil
}
