// containers.go implements the two container-facing operations of the
// core: resolving which container publishes a watched host port, and the
// stop/remove escalation ladder used by the termination engine.
package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

// Resolver attributes watched host ports to the Docker containers
// publishing them. It satisfies the prober's ContainerResolver interface.
//
// Resolution queries the daemon per port with a server-side "publish"
// filter, which is more efficient than listing all containers and
// matching port bindings in Go. Only running containers are considered:
// a stopped container does not hold its published ports.
type Resolver struct {
	cli *Client
}

// NewResolver creates a Resolver backed by the given client.
func NewResolver(cli *Client) *Resolver {
	return &Resolver{cli: cli}
}

// Resolve returns the ID and name of the running container publishing the
// given host port. ok is false when no container publishes it.
func (r *Resolver) Resolve(ctx context.Context, port int) (id, name string, ok bool, err error) {
	filterArgs := filters.NewArgs(
		filters.Arg("publish", strconv.Itoa(port)),
	)

	containers, err := r.cli.inner.ContainerList(ctx, container.ListOptions{
		Filters: filterArgs,
	})
	if err != nil {
		return "", "", false, fmt.Errorf("failed to list containers publishing port %d: %w", port, err)
	}
	if len(containers) == 0 {
		return "", "", false, nil
	}

	// The daemon guarantees at most one running container per published
	// host port, so the first match is the only match.
	c := containers[0]
	name = ""
	if len(c.Names) > 0 {
		// Docker returns names with a leading "/" — an API artifact,
		// not meaningful to users.
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	return c.ID, name, true, nil
}

// StopContainer gracefully stops a container, giving its main process up
// to timeout to exit. The daemon sends SIGTERM first and escalates to
// SIGKILL on its own if the container ignores it within the timeout.
func (c *Client) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	seconds := int(timeout.Round(time.Second) / time.Second)
	if err := c.inner.ContainerStop(ctx, containerID, container.StopOptions{
		Timeout: &seconds,
	}); err != nil {
		return fmt.Errorf("failed to stop container %q: %w", containerID, err)
	}
	return nil
}

// RemoveContainer removes a container. With force, the daemon kills the
// container first if it is still running — this is the final escalation
// step when a graceful stop did not converge.
func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	if err := c.inner.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	}); err != nil {
		return fmt.Errorf("failed to remove container %q: %w", containerID, err)
	}
	return nil
}

// ContainerRunning reports whether the container's main process is still
// running. The termination engine uses this to decide whether a graceful
// stop converged before escalating to removal.
func (c *Client) ContainerRunning(ctx context.Context, containerID string) (bool, error) {
	inspect, err := c.inner.ContainerInspect(ctx, containerID)
	if err != nil {
		return false, fmt.Errorf("failed to inspect container %q: %w", containerID, err)
	}
	return inspect.State != nil && inspect.State.Running, nil
}
