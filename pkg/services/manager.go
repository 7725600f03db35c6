package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/akashkj/quay/pkg/store"
)

// Backend starts, probes and stops service instances. The Docker
// implementation lives in docker.go; tests supply fakes.
type Backend interface {
	Start(ctx context.Context, spec Spec) (*Instance, error)
	Probe(ctx context.Context, inst *Instance) error
	Stop(ctx context.Context, inst *Instance) error
}

// Consumer is the operation run against ready services, typically the
// test executor.
type Consumer func(ctx context.Context, started []*Instance) error

const (
	DefaultReadyInterval = 500 * time.Millisecond
	DefaultReadyTimeout  = 30 * time.Second
)

// Manager owns the lifecycle of the services one consumer run depends on.
type Manager struct {
	backend  Backend
	run      store.Store
	logger   *log.Logger
	interval time.Duration
	budget   time.Duration
}

func NewManager(backend Backend, run store.Store, logger *log.Logger) *Manager {
	return &Manager{
		backend:  backend,
		run:      run,
		logger:   logger,
		interval: DefaultReadyInterval,
		budget:   DefaultReadyTimeout,
	}
}

// WithReadyBudget overrides the readiness poll interval and the per-service
// wall-clock ceiling. The ceiling is mandatory: a dead dependency must fail
// the pipeline, not hang it.
func (m *Manager) WithReadyBudget(interval, budget time.Duration) *Manager {
	if interval > 0 {
		m.interval = interval
	}
	if budget > 0 {
		m.budget = budget
	}
	return m
}

// WithServices starts every spec, waits for all of them to become ready,
// runs consumer exactly once, and tears down everything that at least
// started, in reverse start order, on every exit path. The first failure
// (start, readiness, or consumer) is the one returned; teardown problems
// are only logged.
func (m *Manager) WithServices(ctx context.Context, specs []Spec, consumer Consumer) error {
	if err := m.claimNames(specs); err != nil {
		return err
	}

	var mu sync.Mutex
	var started []*Instance
	instances := make([]*Instance, len(specs))

	defer func() {
		mu.Lock()
		defer mu.Unlock()
		m.teardown(started)
		for _, spec := range specs {
			_ = m.run.Delete(serviceKey(spec.Name))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			inst, err := m.startOne(gctx, spec, &mu, &started)
			if err != nil {
				return err
			}
			instances[i] = inst
			return m.awaitReady(gctx, inst)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	m.logger.Info("all services ready", "count", len(specs))
	if err := consumer(ctx, instances); err != nil {
		return &ConsumerFailure{Err: err}
	}
	return nil
}

// claimNames reserves every service name in the run store up front so two
// provisioning calls in the same process cannot race on an identifier.
func (m *Manager) claimNames(specs []Spec) error {
	for i, spec := range specs {
		if err := m.run.Set(serviceKey(spec.Name), spec.Image); err != nil {
			for _, prev := range specs[:i] {
				_ = m.run.Delete(serviceKey(prev.Name))
			}
			return &ServiceStartError{Service: spec.Name, Err: fmt.Errorf("name already in use: %w", err)}
		}
	}
	return nil
}

func (m *Manager) startOne(ctx context.Context, spec Spec, mu *sync.Mutex, started *[]*Instance) (*Instance, error) {
	m.logger.Info("starting service", "service", spec.Name, "image", spec.Image)

	inst, err := m.backend.Start(ctx, spec)
	if err != nil {
		return nil, &ServiceStartError{Service: spec.Name, Err: err}
	}
	inst.state = StateStarting

	mu.Lock()
	*started = append(*started, inst)
	mu.Unlock()

	return inst, nil
}

// awaitReady polls the readiness probe at a fixed interval until it
// succeeds or the budget is exhausted.
func (m *Manager) awaitReady(ctx context.Context, inst *Instance) error {
	probe := inst.Spec.Probe
	if probe == nil {
		probe = m.backend.Probe
	}

	begin := time.Now()
	attempts := 0
	op := func() error {
		attempts++
		return probe(ctx, inst)
	}

	retries := uint64(m.budget / m.interval)
	if retries == 0 {
		retries = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(m.interval), retries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		inst.state = StateFailedToStart
		return &ReadinessTimeoutError{Service: inst.Spec.Name, Elapsed: time.Since(begin), Err: err}
	}

	inst.state = StateReady
	m.logger.Info("service ready", "service", inst.Spec.Name, "addr", inst.Addr(), "attempts", attempts)
	return nil
}

// teardown stops instances in reverse start order. Errors are logged and
// swallowed so they never mask the failure that got us here.
func (m *Manager) teardown(started []*Instance) {
	for i := len(started) - 1; i >= 0; i-- {
		inst := started[i]
		inst.state = StateTearingDown
		m.logger.Info("tearing down service", "service", inst.Spec.Name)

		// Teardown must run even when the surrounding context is already
		// canceled or expired, so it gets its own deadline.
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := m.backend.Stop(stopCtx, inst); err != nil {
			m.logger.Warn("teardown failed", "err", &TeardownError{Service: inst.Spec.Name, Err: err})
		}
		cancel()
		inst.state = StateStopped
	}
}

func serviceKey(name string) string {
	return "service:" + name
}
