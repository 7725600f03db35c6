package graph_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashkj/quay/pkg/graph"
)

// fakeExecutor records invocations and writes every declared output so
// staleness can be re-evaluated between runs.
type fakeExecutor struct {
	calls []string
	fail  map[string]int
}

func (f *fakeExecutor) Execute(_ context.Context, t graph.Target) graph.ExecutionResult {
	f.calls = append(f.calls, t.Name)
	if code, ok := f.fail[t.Name]; ok {
		return graph.ExecutionResult{Name: t.Name, ExitCode: code}
	}
	for _, out := range t.Outputs {
		if err := os.WriteFile(out, []byte(t.Name), 0o644); err != nil {
			return graph.ExecutionResult{Name: t.Name, ExitCode: -1, Err: err}
		}
	}
	return graph.ExecutionResult{Name: t.Name}
}

func TestResolveUnknownTarget(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Add(graph.Target{Name: "bundle", Outputs: []string{"bundle.js"}, Command: []string{"true"}}))

	_, err := g.Resolve("missing")

	var unknown *graph.UnknownTargetError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
}

func TestResolveDetectsCycleBeforeExecution(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Add(graph.Target{Name: "a", DependsOn: []string{"b"}, Always: true, Command: []string{"true"}}))
	require.NoError(t, g.Add(graph.Target{Name: "b", DependsOn: []string{"c"}, Always: true, Command: []string{"true"}}))
	require.NoError(t, g.Add(graph.Target{Name: "c", DependsOn: []string{"a"}, Always: true, Command: []string{"true"}}))

	_, err := g.Resolve("a")

	var cycle *graph.DependencyCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Len(t, cycle.Members, 4)
	assert.Equal(t, cycle.Members[0], cycle.Members[len(cycle.Members)-1])
}

func TestAddRejectsDuplicatesAndOutputlessTargets(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Add(graph.Target{Name: "deps", Always: true, Command: []string{"npm", "install"}}))

	err := g.Add(graph.Target{Name: "deps", Always: true, Command: []string{"true"}})
	assert.ErrorIs(t, err, graph.ErrTargetExists)

	err = g.Add(graph.Target{Name: "install", Command: []string{"true"}})
	assert.ErrorIs(t, err, graph.ErrNoOutputs)
}

func TestBundleStalenessScenario(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.ts")
	bundle := filepath.Join(dir, "bundle.js")
	require.NoError(t, os.WriteFile(source, []byte("export {}"), 0o644))

	g := graph.New()
	require.NoError(t, g.Add(graph.Target{
		Name:    "bundle",
		Inputs:  []string{source},
		Outputs: []string{bundle},
		Command: []string{"true"},
	}))

	exec := &fakeExecutor{}
	ctx := context.Background()

	// Output missing: the bundler runs once.
	plan, err := g.Resolve("bundle")
	require.NoError(t, err)
	require.Len(t, plan.Stale(), 1)

	results, err := g.Execute(ctx, plan, exec)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"bundle"}, exec.calls)
	assert.FileExists(t, bundle)

	// Output newer than the input: nothing to do.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(bundle, future, future))

	plan, err = g.Resolve("bundle")
	require.NoError(t, err)
	assert.Empty(t, plan.Stale())

	results, err = g.Execute(ctx, plan, exec)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, []string{"bundle"}, exec.calls, "no rebuild on fresh outputs")

	// Touching the source makes the target stale again.
	later := future.Add(time.Hour)
	require.NoError(t, os.Chtimes(source, later, later))

	plan, err = g.Resolve("bundle")
	require.NoError(t, err)
	assert.Len(t, plan.Stale(), 1)
}

func TestAlwaysStaleTargetRunsEveryTime(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Add(graph.Target{Name: "deps", Always: true, Command: []string{"npm", "install"}}))

	exec := &fakeExecutor{}
	for i := 0; i < 2; i++ {
		plan, err := g.Resolve("deps")
		require.NoError(t, err)
		_, err = g.Execute(context.Background(), plan, exec)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"deps", "deps"}, exec.calls)
}

func TestAlwaysDependencyLeavesFreshDependentAlone(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.ts")
	bundle := filepath.Join(dir, "bundle.js")
	require.NoError(t, os.WriteFile(source, []byte("export {}"), 0o644))
	require.NoError(t, os.WriteFile(bundle, []byte("js"), 0o644))

	// The bundle is up to date: its output is newer than its input.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(bundle, future, future))

	g := graph.New()
	require.NoError(t, g.Add(graph.Target{Name: "node-deps", Always: true, Command: []string{"npm", "install"}}))
	require.NoError(t, g.Add(graph.Target{
		Name:      "bundle",
		DependsOn: []string{"node-deps"},
		Inputs:    []string{source},
		Outputs:   []string{bundle},
		Command:   []string{"true"},
	}))

	plan, err := g.Resolve("bundle")
	require.NoError(t, err)

	// The install step always runs, but it produces no outputs, so it
	// must not drag a fresh bundle back into the stale set.
	stale := plan.Stale()
	require.Len(t, stale, 1)
	assert.Equal(t, "node-deps", stale[0].Name)
}

func TestRebuiltDependencyForcesDependent(t *testing.T) {
	dir := t.TempDir()
	intermediate := filepath.Join(dir, "deps.json")
	final := filepath.Join(dir, "bundle.js")

	g := graph.New()
	require.NoError(t, g.Add(graph.Target{Name: "deps", Outputs: []string{intermediate}, Command: []string{"true"}}))
	require.NoError(t, g.Add(graph.Target{
		Name:      "bundle",
		DependsOn: []string{"deps"},
		Inputs:    []string{intermediate},
		Outputs:   []string{final},
		Command:   []string{"true"},
	}))

	// Even a fresh-looking bundle must rebuild when its dependency does.
	require.NoError(t, os.WriteFile(final, []byte("old"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(final, future, future))

	plan, err := g.Resolve("bundle")
	require.NoError(t, err)

	stale := plan.Stale()
	require.Len(t, stale, 2)
	assert.Equal(t, "deps", stale[0].Name)
	assert.Equal(t, "bundle", stale[1].Name)
}

func TestExecuteFailsFast(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Add(graph.Target{Name: "first", Always: true, Command: []string{"true"}}))
	require.NoError(t, g.Add(graph.Target{Name: "second", DependsOn: []string{"first"}, Always: true, Command: []string{"false"}}))
	require.NoError(t, g.Add(graph.Target{Name: "third", DependsOn: []string{"second"}, Always: true, Command: []string{"true"}}))

	exec := &fakeExecutor{fail: map[string]int{"second": 2}}

	plan, err := g.Resolve("third")
	require.NoError(t, err)

	results, err := g.Execute(context.Background(), plan, exec)

	var actionErr *graph.ActionExecutionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "second", actionErr.Target)
	assert.Equal(t, 2, actionErr.ExitCode)
	assert.Equal(t, []string{"third"}, actionErr.Remaining)
	assert.Equal(t, []string{"first", "second"}, exec.calls)
	assert.Len(t, results, 2)
}
