// container.go implements the container kill strategy: graceful Docker
// stop, escalating to forced removal when the stop does not converge.
package terminate

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwarden/internal/docker"
	"github.com/shinji-kodama/portwarden/internal/model"
)

// ContainerStopTimeout bounds the graceful stop. The daemon itself
// escalates SIGTERM to SIGKILL inside this window; if the container is
// still running afterwards the engine moves to forced removal.
const ContainerStopTimeout = 5 * time.Second

// containerKiller terminates Docker containers through the stop → remove
// escalation ladder.
type containerKiller struct {
	cli *docker.Client
	log *logrus.Entry
}

func newContainerKiller(cli *docker.Client) *containerKiller {
	return &containerKiller{
		cli: cli,
		log: logrus.WithField("component", "container-killer"),
	}
}

func (k *containerKiller) kill(ctx context.Context, containerID string) (model.KillMethod, error) {
	err := k.cli.StopContainer(ctx, containerID, ContainerStopTimeout)
	if err == nil {
		running, inspectErr := k.cli.ContainerRunning(ctx, containerID)
		if inspectErr == nil && !running {
			return model.MethodDockerStop, nil
		}
		// Stop returned but the container is still (or again) running, or
		// its state could not be confirmed: escalate.
		k.log.WithField("container", containerID).
			Debug("graceful stop did not converge, removing")
	} else {
		switch model.ClassifyKillError(err) {
		case model.ResultVanished, model.ResultPermissionDenied:
			// Escalating cannot help with either: the target is gone, or
			// removal would be refused for the same reason.
			return model.MethodDockerStop, err
		}
		k.log.WithField("container", containerID).WithError(err).
			Debug("graceful stop failed, removing")
	}

	if err := k.cli.RemoveContainer(ctx, containerID, true); err != nil {
		return model.MethodDockerRemove, err
	}
	return model.MethodDockerRemove, nil
}
