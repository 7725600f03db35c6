// Package graph implements the incremental build engine: a dependency
// graph of targets re-executed only when their outputs are missing or
// older than their inputs.
package graph

import (
	"fmt"

	"github.com/akashkj/quay/pkg/models"
)

// Target is a named build unit with declared inputs, outputs and the
// command that produces the outputs from the inputs.
type Target struct {
	Name      string
	Inputs    []string
	Outputs   []string
	Command   []string
	DependsOn []string
	Env       []string
	// Always marks install-type targets that must run on every invocation
	// regardless of timestamps.
	Always bool
}

// Graph holds the declared target set and, after Validate, a full
// topological order over it.
type Graph struct {
	targets map[string]Target
	order   []string
}

func New() *Graph {
	return &Graph{targets: make(map[string]Target)}
}

// FromPipeline builds a graph from the declared pipeline targets.
func FromPipeline(targets []models.Target, passthrough []string) (*Graph, error) {
	g := New()
	for _, t := range targets {
		env := make([]string, 0, len(t.Variables))
		for _, v := range t.Variables {
			for key, val := range v {
				env = append(env, fmt.Sprintf("%s=%s", key, val))
			}
		}
		env = append(env, passthrough...)

		if err := g.Add(Target{
			Name:      t.Name,
			Inputs:    t.Inputs,
			Outputs:   t.Outputs,
			Command:   t.Command,
			DependsOn: t.DependsOn,
			Env:       env,
			Always:    t.Always,
		}); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Add declares a target. Duplicate names and output-less targets without
// the always flag are configuration errors.
func (g *Graph) Add(t Target) error {
	if _, exists := g.targets[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrTargetExists, t.Name)
	}
	if len(t.Outputs) == 0 && !t.Always {
		return fmt.Errorf("%w: %s", ErrNoOutputs, t.Name)
	}
	g.targets[t.Name] = t
	g.order = nil
	return nil
}

// Get returns the declared target by name.
func (g *Graph) Get(name string) (Target, bool) {
	t, ok := g.targets[name]
	return t, ok
}

// Validate checks the dependency relation for unknown references and
// cycles using a depth-first topological sort, and records the resulting
// execution order. It must succeed before anything executes.
func (g *Graph) Validate() error {
	order := make([]string, 0, len(g.targets))
	visited := make(map[string]int, len(g.targets)) // 0 unvisited, 1 visiting, 2 done
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		visited[name] = 1
		path = append(path, name)

		t, ok := g.targets[name]
		if !ok {
			return &UnknownTargetError{Name: name}
		}

		for _, dep := range t.DependsOn {
			switch visited[dep] {
			case 1:
				return cycleError(path, dep)
			case 0:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[name] = 2
		path = path[:len(path)-1]
		order = append(order, name)
		return nil
	}

	for name := range g.targets {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	g.order = order
	return nil
}

// cycleError trims the DFS path down to the actual cycle members.
func cycleError(path []string, dep string) error {
	start := 0
	for i, name := range path {
		if name == dep {
			start = i
			break
		}
	}
	members := append([]string{}, path[start:]...)
	members = append(members, dep)
	return &DependencyCycleError{Members: members}
}

// Resolve returns the execution plan for the named target: its transitive
// dependencies and itself, in topological order, each step marked stale or
// fresh. The whole graph is validated first so a cycle anywhere is caught
// before any action runs.
func (g *Graph) Resolve(name string) (Plan, error) {
	if _, ok := g.targets[name]; !ok {
		return nil, &UnknownTargetError{Name: name}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	needed := g.collect(name)

	rebuilt := make(map[string]bool, len(needed))
	plan := make(Plan, 0, len(needed))
	for _, n := range g.order {
		if !needed[n] {
			continue
		}
		t := g.targets[n]
		stale, reason, err := g.checkStale(t, rebuilt)
		if err != nil {
			return nil, err
		}
		if stale {
			rebuilt[n] = true
		}
		plan = append(plan, Step{Target: t, Stale: stale, Reason: reason})
	}
	return plan, nil
}

// collect gathers the transitive dependency closure of name with a
// breadth-first walk.
func (g *Graph) collect(name string) map[string]bool {
	needed := make(map[string]bool)
	queue := []string{name}
	needed[name] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.targets[current].DependsOn {
			if !needed[dep] {
				needed[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return needed
}
