package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const probeDialTimeout = 2 * time.Second

// DockerBackend provisions services as containers on the local Docker
// daemon.
type DockerBackend struct {
	cli           *client.Client
	logDir        string
	showImagePull bool
	pullOutput    io.Writer
}

// NewDockerBackend connects to the local daemon. Container logs are
// written under logDir during teardown so a failed run leaves something
// to debug with.
func NewDockerBackend(logDir string) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("unable to create docker client: %w", err)
	}
	return &DockerBackend{cli: cli, logDir: logDir, pullOutput: io.Discard}, nil
}

func (d *DockerBackend) ShowImagePull(w io.Writer) *DockerBackend {
	d.showImagePull = true
	d.pullOutput = w
	return d
}

// Start pulls the image, creates the container with the service port
// published on the host, and starts it. A container that was created but
// failed to start is removed before the error is returned.
func (d *DockerBackend) Start(ctx context.Context, spec Spec) (*Instance, error) {
	reader, err := d.cli.ImagePull(ctx, spec.Image, types.ImagePullOptions{})
	if err != nil {
		return nil, fmt.Errorf("unable to pull image %s: %w", spec.Image, err)
	}
	defer reader.Close()
	out := io.Discard
	if d.showImagePull {
		out = d.pullOutput
	}
	if _, err := io.Copy(out, reader); err != nil {
		return nil, fmt.Errorf("unable to read image pull progress for %s: %w", spec.Image, err)
	}

	containerPort, err := nat.NewPort("tcp", fmt.Sprintf("%d", spec.Port))
	if err != nil {
		return nil, fmt.Errorf("invalid port %d for service %s: %w", spec.Port, spec.Name, err)
	}

	name := slug.Make(spec.Name + "-" + uuid.NewString())
	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		ExposedPorts: nat.PortSet{containerPort: struct{}{}},
	}, &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{{
				HostIP:   "127.0.0.1",
				HostPort: fmt.Sprintf("%d", spec.HostPort),
			}},
		},
	}, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("unable to create container for %s: %w", spec.Name, err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		_ = d.cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{Force: true})
		return nil, fmt.Errorf("unable to start container for %s: %w", spec.Name, err)
	}

	return &Instance{
		Spec:  spec,
		ID:    resp.ID,
		Host:  "127.0.0.1",
		Port:  spec.HostPort,
		state: StateStarting,
	}, nil
}

// Probe dials the published port. Databases accept TCP connections only
// once they are actually serving, which is all the gate we need.
func (d *DockerBackend) Probe(_ context.Context, inst *Instance) error {
	conn, err := net.DialTimeout("tcp", inst.Addr(), probeDialTimeout)
	if err != nil {
		return fmt.Errorf("service %s not accepting connections: %w", inst.Spec.Name, err)
	}
	return conn.Close()
}

// Stop captures the container's logs, then stops and removes it.
func (d *DockerBackend) Stop(ctx context.Context, inst *Instance) error {
	logErr := d.captureLogs(ctx, inst)

	if err := d.cli.ContainerStop(ctx, inst.ID, container.StopOptions{}); err != nil {
		logErr = errors.Join(logErr, fmt.Errorf("unable to stop container for %s: %w", inst.Spec.Name, err))
	}
	if err := d.cli.ContainerRemove(ctx, inst.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
		logErr = errors.Join(logErr, fmt.Errorf("unable to remove container for %s: %w", inst.Spec.Name, err))
	}
	return logErr
}

// captureLogs copies the container's output into the diagnostics dir.
func (d *DockerBackend) captureLogs(ctx context.Context, inst *Instance) error {
	logs, err := d.cli.ContainerLogs(ctx, inst.ID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return fmt.Errorf("unable to read logs for %s: %w", inst.Spec.Name, err)
	}
	defer logs.Close()

	if err := os.MkdirAll(d.logDir, 0o755); err != nil {
		return fmt.Errorf("unable to create log dir %s: %w", d.logDir, err)
	}

	f, err := os.Create(filepath.Clean(filepath.Join(d.logDir, inst.Spec.Name+".log")))
	if err != nil {
		return fmt.Errorf("unable to create log file for %s: %w", inst.Spec.Name, err)
	}
	defer f.Close()

	// Docker multiplexes stdout and stderr into one stream; stdcopy
	// splits them back apart.
	if _, err := stdcopy.StdCopy(f, f, logs); err != nil {
		return fmt.Errorf("unable to copy logs for %s: %w", inst.Spec.Name, err)
	}
	return nil
}
