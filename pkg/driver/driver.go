// Package driver sequences the pipeline stages: clean, incremental build,
// service provisioning, and test execution, with fail-fast semantics. A
// Pipeline carries all state explicitly so independent runs can coexist
// in one process.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/akashkj/quay/pkg/graph"
	"github.com/akashkj/quay/pkg/models"
	"github.com/akashkj/quay/pkg/runner"
	"github.com/akashkj/quay/pkg/services"
	"github.com/akashkj/quay/pkg/store"
)

// DiagnosticsDir collects service container logs for post-mortems.
const DiagnosticsDir = ".quaydev"

// StageError names the pipeline stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Provisioner is the service lifecycle surface the driver depends on.
type Provisioner interface {
	WithServices(ctx context.Context, specs []services.Spec, consumer services.Consumer) error
}

// SuiteRunner invokes one test suite; the suite's command is opaque.
type SuiteRunner func(ctx context.Context, suite models.Suite, env []string) graph.ExecutionResult

// Pipeline holds everything one run needs.
type Pipeline struct {
	cfg         *models.PipelineFile
	logger      *log.Logger
	run         store.Store
	provisioner Provisioner
	executor    graph.Executor
	suiteRunner SuiteRunner
	passthrough []string
}

func NewPipeline(cfg *models.PipelineFile, logger *log.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		run:    store.NewMemStore(),
		suiteRunner: func(ctx context.Context, suite models.Suite, env []string) graph.ExecutionResult {
			return runner.NewShellRunner(suite.Name).WithEnv(env).Run(ctx, suite.Command)
		},
		executor: runner.TargetExecutor{},
	}
}

func (p *Pipeline) WithProvisioner(prov Provisioner) *Pipeline {
	p.provisioner = prov
	return p
}

func (p *Pipeline) WithExecutor(exec graph.Executor) *Pipeline {
	p.executor = exec
	return p
}

func (p *Pipeline) WithSuiteRunner(run SuiteRunner) *Pipeline {
	p.suiteRunner = run
	return p
}

// WithEnv adds KEY=VALUE pairs passed through to every target action and
// test suite, uninterpreted.
func (p *Pipeline) WithEnv(passthrough []string) *Pipeline {
	p.passthrough = passthrough
	return p
}

// Store exposes the run store for reporting and tests.
func (p *Pipeline) Store() store.Store { return p.run }

// Build resolves and executes every declared target in dependency order,
// skipping fresh ones.
func (p *Pipeline) Build(ctx context.Context) error {
	return p.stage("build", func() error {
		g, err := graph.FromPipeline(p.cfg.Targets, p.passthrough)
		if err != nil {
			return err
		}
		if err := g.Validate(); err != nil {
			return err
		}

		for _, root := range p.roots(g) {
			plan, err := g.Resolve(root)
			if err != nil {
				return err
			}
			for _, step := range plan.Stale() {
				p.logger.Info("building target", "target", step.Name)
			}

			results, err := g.Execute(ctx, plan, p.executor)
			for _, res := range results {
				p.record("target:"+res.Name, res)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// roots returns targets nothing depends on, in declaration order, so one
// Build covers the whole graph without re-resolving shared dependencies.
func (p *Pipeline) roots(g *graph.Graph) []string {
	depended := make(map[string]bool)
	for _, t := range p.cfg.Targets {
		for _, dep := range t.DependsOn {
			depended[dep] = true
		}
	}

	var roots []string
	for _, t := range p.cfg.Targets {
		if !depended[t.Name] {
			roots = append(roots, t.Name)
		}
	}
	return roots
}

// RunSuite brings up the suite's services, runs the suite once they are
// all ready, and relies on the provisioner for teardown on every path.
func (p *Pipeline) RunSuite(ctx context.Context, name string) error {
	return p.stage("suite:"+name, func() error {
		suite, err := p.findSuite(name)
		if err != nil {
			return err
		}

		env := p.suiteEnv(suite)

		if len(suite.Needs) == 0 {
			return p.checkResult(p.suiteRunner(ctx, suite, env))
		}

		specs, err := services.SpecsFromPipeline(p.cfg.Services, suite.Needs)
		if err != nil {
			return err
		}
		if p.provisioner == nil {
			return fmt.Errorf("suite %s needs services but no provisioner is configured", suite.Name)
		}

		return p.provisioner.WithServices(ctx, specs, func(ctx context.Context, started []*services.Instance) error {
			suiteEnv := env
			for _, inst := range started {
				if inst.Spec.URIEnv != "" {
					suiteEnv = append(suiteEnv, fmt.Sprintf("%s=%s", inst.Spec.URIEnv, inst.Addr()))
				}
			}
			return p.checkResult(p.suiteRunner(ctx, suite, suiteEnv))
		})
	})
}

// Clean removes every declared target output and the diagnostics dir.
func (p *Pipeline) Clean(_ context.Context) error {
	return p.stage("clean", func() error {
		for _, t := range p.cfg.Targets {
			for _, out := range t.Outputs {
				if err := os.RemoveAll(out); err != nil {
					return fmt.Errorf("unable to remove output %s of %s: %w", out, t.Name, err)
				}
				p.logger.Info("removed", "target", t.Name, "output", out)
			}
		}
		if err := os.RemoveAll(DiagnosticsDir); err != nil {
			return fmt.Errorf("unable to remove diagnostics dir: %w", err)
		}
		return nil
	})
}

func (p *Pipeline) findSuite(name string) (models.Suite, error) {
	for _, s := range p.cfg.Suites {
		if s.Name == name {
			return s, nil
		}
	}
	return models.Suite{}, fmt.Errorf("suite %q not declared in pipeline file", name)
}

func (p *Pipeline) suiteEnv(suite models.Suite) []string {
	env := make([]string, 0, len(suite.Variables)+len(p.passthrough))
	for _, v := range suite.Variables {
		for key, val := range v {
			env = append(env, fmt.Sprintf("%s=%s", key, val))
		}
	}
	return append(env, p.passthrough...)
}

// record stores a result under key. Overlapping plans can report the
// same target twice; the later result is the current one.
func (p *Pipeline) record(key string, res graph.ExecutionResult) {
	if err := p.run.Set(key, res); errors.Is(err, store.ErrKeyExists) {
		_ = p.run.Update(key, res)
	}
}

// Report logs one line per recorded result, in the order the steps ran.
func (p *Pipeline) Report() {
	for _, key := range p.run.Keys() {
		v, err := p.run.Get(key)
		if err != nil {
			continue
		}
		res, ok := v.(graph.ExecutionResult)
		if !ok {
			continue
		}
		switch {
		case res.Skipped:
			p.logger.Info("report", "step", res.Name, "status", "fresh")
		case res.Err != nil || res.ExitCode != 0:
			p.logger.Error("report", "step", res.Name, "status", "failed", "exit_code", res.ExitCode)
		default:
			p.logger.Info("report", "step", res.Name, "status", "ok", "duration", res.Duration)
		}
	}
}

func (p *Pipeline) checkResult(res graph.ExecutionResult) error {
	p.record("suite:"+res.Name, res)
	if res.Err != nil {
		return res.Err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s exited with code %d", res.Name, res.ExitCode)
	}
	return nil
}

// stage wraps a stage body so the failed stage's identity rides on the
// error and later stages are never attempted.
func (p *Pipeline) stage(name string, fn func() error) error {
	p.logger.Info("stage starting", "stage", name)
	if err := fn(); err != nil {
		p.logger.Error("stage failed", "stage", name, "err", err)
		return &StageError{Stage: name, Err: err}
	}
	p.logger.Info("stage complete", "stage", name)
	return nil
}
