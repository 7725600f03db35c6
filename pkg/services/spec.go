// Package services provisions ephemeral containerized dependencies for
// test runs: start, bounded readiness polling, exactly-once consumer
// invocation, and unconditional teardown in reverse start order.
package services

import (
	"context"
	"fmt"

	"github.com/akashkj/quay/pkg/models"
)

// State tracks one service through its lifecycle.
type State string

const (
	StateNotStarted    State = "NotStarted"
	StateStarting      State = "Starting"
	StateReady         State = "Ready"
	StateFailedToStart State = "FailedToStart"
	StateTearingDown   State = "TearingDown"
	StateStopped       State = "Stopped"
)

// Spec describes one ephemeral dependency: how to start it, how to probe
// it, and what connection info to hand to the consumer.
type Spec struct {
	Name     string
	Image    string
	Port     int
	HostPort int
	Env      []string
	// URIEnv, when non-empty, names the environment variable the driver
	// fills with host:port once the service is up.
	URIEnv string
	// Probe overrides the backend's default readiness check. Used by
	// tests and for services without a TCP health surface.
	Probe func(ctx context.Context, inst *Instance) error
}

// Instance is a started service.
type Instance struct {
	Spec  Spec
	ID    string
	Host  string
	Port  int
	state State
}

// Addr returns the host:port the service was published on.
func (i *Instance) Addr() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

// State reports the instance's lifecycle state.
func (i *Instance) State() State { return i.state }

// SpecsFromPipeline converts declared pipeline services, filtered to the
// named ones in declaration order.
func SpecsFromPipeline(declared []models.Service, names []string) ([]Spec, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	specs := make([]Spec, 0, len(names))
	for _, s := range declared {
		if !wanted[s.Name] {
			continue
		}
		delete(wanted, s.Name)

		env := make([]string, 0, len(s.Variables))
		for _, v := range s.Variables {
			for key, val := range v {
				env = append(env, fmt.Sprintf("%s=%s", key, val))
			}
		}

		hostPort := s.HostPort
		if hostPort == 0 {
			hostPort = s.Port
		}

		specs = append(specs, Spec{
			Name:     s.Name,
			Image:    s.Image,
			Port:     s.Port,
			HostPort: hostPort,
			Env:      env,
			URIEnv:   s.URIEnv,
		})
	}

	for n := range wanted {
		return nil, fmt.Errorf("suite needs undeclared service %s", n)
	}
	return specs, nil
}
