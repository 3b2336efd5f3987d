package workspace

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"
)

// workspaceLabel marks containers managed by this tool.
const workspaceLabel = "ai.agentry.workspace"

// DockerBackend manages workspace resources as docker containers.
type DockerBackend struct {
	cli       *client.Client
	workspace string
	logger    zerolog.Logger
}

// NewDockerBackend connects to the docker daemon using the standard
// environment (DOCKER_HOST etc.).
func NewDockerBackend(workspaceName string, logger zerolog.Logger) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker daemon: %w", err)
	}
	return &DockerBackend{
		cli:       cli,
		workspace: workspaceName,
		logger:    logger.With().Str("component", "dockerBackend").Logger(),
	}, nil
}

// Close releases the docker client connection.
func (b *DockerBackend) Close() error {
	return b.cli.Close()
}

// Up ensures the image is present and the container is created and running.
// An existing stopped container is started; an existing running container is
// left alone.
func (b *DockerBackend) Up(ctx context.Context, name string, r *Resource, envVars map[string]string) error {
	status, err := b.Status(ctx, name)
	if err != nil {
		return err
	}

	switch status {
	case StatusRunning:
		b.logger.Debug().Str("container", name).Msg("Container already running")
		return nil
	case StatusStopped:
		b.logger.Info().Str("container", name).Msg("Starting existing container")
		if err := b.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
			return fmt.Errorf("start container %q: %w", name, err)
		}
		return nil
	}

	if err := b.ensureImage(ctx, r.Image); err != nil {
		return err
	}

	exposed, bindings, err := nat.ParsePortSpecs(r.Ports)
	if err != nil {
		return fmt.Errorf("resource %q: parse ports: %w", r.Name, err)
	}

	created, err := b.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        r.Image,
			Env:          mergeEnv(envVars, r.EnvVars),
			ExposedPorts: exposed,
			Labels: map[string]string{
				workspaceLabel: b.workspace,
			},
		},
		&container.HostConfig{
			PortBindings: bindings,
			Binds:        r.Volumes,
		},
		nil, nil, name)
	if err != nil {
		return fmt.Errorf("create container %q: %w", name, err)
	}

	b.logger.Info().Str("container", name).Str("image", r.Image).Msg("Starting container")
	if err := b.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", name, err)
	}
	return nil
}

// Down stops and removes the container. A missing container is a no-op.
func (b *DockerBackend) Down(ctx context.Context, name string) error {
	status, err := b.Status(ctx, name)
	if err != nil {
		return err
	}
	if status == StatusMissing {
		return nil
	}

	if status == StatusRunning {
		b.logger.Info().Str("container", name).Msg("Stopping container")
		if err := b.cli.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
			return fmt.Errorf("stop container %q: %w", name, err)
		}
	}

	b.logger.Info().Str("container", name).Msg("Removing container")
	if err := b.cli.ContainerRemove(ctx, name, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("remove container %q: %w", name, err)
	}
	return nil
}

// Restart restarts the container.
func (b *DockerBackend) Restart(ctx context.Context, name string) error {
	b.logger.Info().Str("container", name).Msg("Restarting container")
	if err := b.cli.ContainerRestart(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("restart container %q: %w", name, err)
	}
	return nil
}

// Status inspects the container and maps it to a ResourceStatus.
func (b *DockerBackend) Status(ctx context.Context, name string) (ResourceStatus, error) {
	info, err := b.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return StatusMissing, nil
		}
		return "", fmt.Errorf("inspect container %q: %w", name, err)
	}
	if info.State != nil && info.State.Running {
		return StatusRunning, nil
	}
	return StatusStopped, nil
}

// ensureImage pulls the image when it is not available locally.
func (b *DockerBackend) ensureImage(ctx context.Context, ref string) error {
	if _, _, err := b.cli.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("inspect image %q: %w", ref, err)
	}

	b.logger.Info().Str("image", ref).Msg("Pulling image")
	reader, err := b.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %q: %w", ref, err)
	}
	defer reader.Close() //nolint:errcheck // read-only

	// The pull completes only once the progress stream is drained
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull image %q: %w", ref, err)
	}
	return nil
}

// mergeEnv flattens workspace-level and resource-level variables into docker
// KEY=VALUE form. Resource variables win on conflict.
func mergeEnv(workspaceVars, resourceVars map[string]string) []string {
	merged := make(map[string]string, len(workspaceVars)+len(resourceVars))
	for k, v := range workspaceVars {
		merged[k] = v
	}
	for k, v := range resourceVars {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(merged))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}

var _ Backend = (*DockerBackend)(nil)
