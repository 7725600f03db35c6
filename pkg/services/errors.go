package services

import (
	"fmt"
	"time"
)

// ServiceStartError is returned when a service's container cannot be
// created or started, or when its name collides with one already claimed
// by this run.
type ServiceStartError struct {
	Service string
	Err     error
}

func (e *ServiceStartError) Error() string {
	return fmt.Sprintf("unable to start service %s: %v", e.Service, e.Err)
}

func (e *ServiceStartError) Unwrap() error { return e.Err }

// ReadinessTimeoutError is returned when a started service never passes
// its readiness probe within the configured budget.
type ReadinessTimeoutError struct {
	Service string
	Elapsed time.Duration
	Err     error
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("service %s not ready after %s: %v", e.Service, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *ReadinessTimeoutError) Unwrap() error { return e.Err }

// TeardownError reports a failed stop of one service. It is logged and
// swallowed, never returned: an earlier failure always wins.
type TeardownError struct {
	Service string
	Err     error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("unable to tear down service %s: %v", e.Service, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }

// ConsumerFailure wraps a failure of the consumer operation (the test
// executor) so teardown problems can never mask it.
type ConsumerFailure struct {
	Err error
}

func (e *ConsumerFailure) Error() string {
	return fmt.Sprintf("consumer failed: %v", e.Err)
}

func (e *ConsumerFailure) Unwrap() error { return e.Err }
