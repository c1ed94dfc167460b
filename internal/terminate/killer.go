// killer.go implements the per-platform process kill strategies. The
// strategy is chosen once at engine construction; no platform branching
// leaks into the engine logic.
package terminate

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwarden/internal/model"
)

// Escalation timing. Both are conservative constants by design, not
// user-configurable knobs.
const (
	// GracePeriod is how long a process gets to exit after the graceful
	// signal before the forceful one is sent.
	GracePeriod = 500 * time.Millisecond

	// livenessPollInterval is how often liveness is re-checked during the
	// grace period. Polling early means a cooperative process does not
	// make the engine wait out the full grace period.
	livenessPollInterval = 50 * time.Millisecond
)

// processKiller terminates a single PID and reports the method that
// produced the final state. Errors are raw; the engine classifies them
// into the outcome taxonomy.
type processKiller interface {
	kill(ctx context.Context, pid int) (model.KillMethod, error)
}

// newProcessKiller selects the strategy for the current platform.
// Returns a model.ErrToolUnavailable-wrapped error when the platform's
// kill mechanism is missing; this surfaces once at startup, never per
// request.
func newProcessKiller() (processKiller, error) {
	if runtime.GOOS == "windows" {
		path, err := exec.LookPath("taskkill")
		if err != nil {
			return nil, fmt.Errorf("%w: taskkill not found on PATH", model.ErrToolUnavailable)
		}
		return &taskkillKiller{
			path: path,
			log:  logrus.WithField("component", "taskkill"),
		}, nil
	}
	return &signalKiller{
		grace: GracePeriod,
		log:   logrus.WithField("component", "signal-killer"),
	}, nil
}

// signalKiller is the POSIX strategy: SIGTERM, bounded grace period with
// early liveness polling, then SIGKILL.
type signalKiller struct {
	grace time.Duration
	log   *logrus.Entry
}

func (k *signalKiller) kill(ctx context.Context, pid int) (model.KillMethod, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		// The process table no longer has this PID; the graceful signal
		// was never needed.
		return model.MethodSignalTerm, model.ErrTargetVanished
	}

	if err := proc.Terminate(); err != nil {
		return model.MethodSignalTerm, err
	}
	k.log.WithField("pid", pid).Debug("sent SIGTERM")

	if waitForExit(ctx, pid, k.grace) {
		return model.MethodSignalTerm, nil
	}

	// Still alive after the grace period: escalate.
	k.log.WithField("pid", pid).Debug("grace period expired, sending SIGKILL")
	if err := proc.Kill(); err != nil {
		return model.MethodSignalKill, err
	}
	if waitForExit(ctx, pid, k.grace) {
		return model.MethodSignalKill, nil
	}
	return model.MethodSignalKill, fmt.Errorf("process %d still alive after SIGKILL", pid)
}

// waitForExit polls liveness until the process is gone or the deadline
// passes. Returns true when the process exited. Polling checks the PID
// table, not wait(2): the target is never our child.
func waitForExit(ctx context.Context, pid int, deadline time.Duration) bool {
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()
	ticker := time.NewTicker(livenessPollInterval)
	defer ticker.Stop()

	for {
		exists, err := process.PidExists(int32(pid))
		if err == nil && !exists {
			return true
		}
		select {
		case <-ticker.C:
		case <-timeout.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// taskkillKiller is the Windows strategy: a single forceful terminate via
// taskkill /F. Windows exposes no graceful/forceful distinction at this
// layer, so there is nothing to escalate through.
type taskkillKiller struct {
	path string
	log  *logrus.Entry
}

func (k *taskkillKiller) kill(ctx context.Context, pid int) (model.KillMethod, error) {
	cmd := exec.CommandContext(ctx, k.path, "/PID", strconv.Itoa(pid), "/F")
	output, err := cmd.CombinedOutput()
	if err != nil {
		// taskkill reports the interesting failures ("not found",
		// "Access is denied") on its output stream; surface that text so
		// the classifier can map it onto the taxonomy.
		return model.MethodTaskkill, fmt.Errorf("taskkill failed: %s", strings.TrimSpace(string(output)))
	}
	k.log.WithField("pid", pid).Debug("taskkill issued")
	return model.MethodTaskkill, nil
}
