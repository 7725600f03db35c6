package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTargetExists = errors.New("graph: target already declared")

	// ErrNoOutputs rejects targets that declare no outputs without marking
	// themselves always-stale; such a target could never be skipped anyway
	// and the flag keeps the intent explicit.
	ErrNoOutputs = errors.New("graph: target without outputs must set always")
)

// UnknownTargetError is returned when a requested target is not in the graph.
type UnknownTargetError struct {
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q", e.Name)
}

// DependencyCycleError is returned when the declared dependencies form a
// cycle. Members lists the targets on the cycle in dependency order.
type DependencyCycleError struct {
	Members []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Members, " -> "))
}

// ActionExecutionError is returned when a target's action exits non-zero.
// Remaining lists the targets that were never attempted because of the
// fail-fast stop.
type ActionExecutionError struct {
	Target    string
	ExitCode  int
	Remaining []string
	Err       error
}

func (e *ActionExecutionError) Error() string {
	msg := fmt.Sprintf("target %s failed with exit code %d", e.Target, e.ExitCode)
	if len(e.Remaining) > 0 {
		msg += fmt.Sprintf(" (never attempted: %s)", strings.Join(e.Remaining, ", "))
	}
	return msg
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }
