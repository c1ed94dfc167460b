// engine.go implements the termination engine proper: request fan-out,
// per-target outcome assembly, and acknowledgment back to the update
// coordinator.
package terminate

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwarden/internal/docker"
	"github.com/shinji-kodama/portwarden/internal/model"
)

// SnapshotSource supplies the current snapshot for AllTracked requests.
// In the resident monitor this is the update coordinator; one-shot CLI
// commands supply a static snapshot instead.
type SnapshotSource interface {
	Snapshot(ctx context.Context) model.ProcessSnapshot
}

// AckSink receives the full outcome set of every completed request. The
// coordinator implements it to open its suppression window. A nil sink is
// valid for one-shot use.
type AckSink interface {
	AcknowledgeKill(outcomes []model.KillOutcome)
}

// Engine executes KillRequests. Strategies are selected once at
// construction; requests then run as independent tasks, decoupled from
// the monitor's timer.
type Engine struct {
	proc       processKiller
	containers *containerKiller
	snapshots  SnapshotSource
	acks       AckSink
	log        *logrus.Entry
	wg         sync.WaitGroup
}

// NewEngine creates an Engine. dockerCli may be nil, which disables
// container targets. Returns a CLIError with ExitToolUnavailable when the
// platform's kill mechanism is missing — the one fatal startup condition
// this package has.
func NewEngine(snapshots SnapshotSource, acks AckSink, dockerCli *docker.Client) (*Engine, error) {
	proc, err := newProcessKiller()
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitToolUnavailable,
			"process termination is unavailable on this platform",
			err,
		)
	}

	e := &Engine{
		proc:      proc,
		snapshots: snapshots,
		acks:      acks,
		log:       logrus.WithField("component", "terminator"),
	}
	if dockerCli != nil {
		e.containers = newContainerKiller(dockerCli)
	}
	return e, nil
}

// Submit executes a kill request asynchronously and returns a channel
// that yields the full outcome set exactly once.
//
// The request runs on a context detached from ctx's cancellation: a
// half-issued termination signal must not be abandoned at shutdown.
// Wait blocks until all in-flight requests have run to completion.
func (e *Engine) Submit(ctx context.Context, req model.KillRequest) <-chan []model.KillOutcome {
	results := make(chan []model.KillOutcome, 1)
	killCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		outcomes := e.execute(killCtx, req)
		results <- outcomes
		if e.acks != nil {
			e.acks.AcknowledgeKill(outcomes)
		}
	}()
	return results
}

// Wait blocks until every in-flight request has completed. Called during
// shutdown after the monitor and coordinator have stopped.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// execute dispatches one request and assembles its outcomes. Every
// failure path still yields outcomes — the caller always learns what
// happened to each target.
func (e *Engine) execute(ctx context.Context, req model.KillRequest) []model.KillOutcome {
	if err := req.Validate(); err != nil {
		return []model.KillOutcome{{
			RequestID:   req.ID,
			Kind:        req.Kind,
			PID:         req.PID,
			ContainerID: req.ContainerID,
			Result:      model.ResultFailed,
			Error:       err.Error(),
		}}
	}

	var outcomes []model.KillOutcome
	switch req.Kind {
	case model.TargetSinglePID:
		outcomes = []model.KillOutcome{e.killProcess(ctx, req, e.findTracked(ctx, req.PID))}

	case model.TargetAllTracked:
		outcomes = e.killAllTracked(ctx, req)

	case model.TargetContainer:
		outcomes = []model.KillOutcome{e.killContainer(ctx, req)}
	}

	e.report(req, outcomes)
	return outcomes
}

// killAllTracked terminates every process in the current snapshot.
// Targets run concurrently and independently: one permission-denied
// target never prevents the others from being attempted. Outcomes are
// returned in snapshot (ascending port) order regardless of completion
// order.
func (e *Engine) killAllTracked(ctx context.Context, req model.KillRequest) []model.KillOutcome {
	targets := e.snapshots.Snapshot(ctx).Processes()
	outcomes := make([]model.KillOutcome, len(targets))

	var wg sync.WaitGroup
	for i, info := range targets {
		wg.Add(1)
		go func(i int, info model.ProcessInfo) {
			defer wg.Done()
			outcomes[i] = e.killProcess(ctx, req, info)
		}(i, info)
	}
	wg.Wait()
	return outcomes
}

// killProcess terminates a single process target and classifies the
// result. info.Port may be zero when the PID was not found in the current
// snapshot (the user can kill arbitrary PIDs).
func (e *Engine) killProcess(ctx context.Context, req model.KillRequest, info model.ProcessInfo) model.KillOutcome {
	method, err := e.proc.kill(ctx, info.PID)
	return e.outcome(req, model.KillOutcome{
		Kind: model.TargetSinglePID,
		PID:  info.PID,
		Port: info.Port,
	}, method, err)
}

// killContainer terminates a container target through the stop → remove
// ladder. Requires container support to have been enabled at startup.
func (e *Engine) killContainer(ctx context.Context, req model.KillRequest) model.KillOutcome {
	if e.containers == nil {
		return model.KillOutcome{
			RequestID:   req.ID,
			Kind:        model.TargetContainer,
			ContainerID: req.ContainerID,
			Result:      model.ResultFailed,
			Error:       "container support is disabled (run with --docker)",
		}
	}
	method, err := e.containers.kill(ctx, req.ContainerID)
	return e.outcome(req, model.KillOutcome{
		Kind:        model.TargetContainer,
		ContainerID: req.ContainerID,
	}, method, err)
}

// outcome finalizes a partially filled outcome with the classified result
// and a human-readable reason. Raw errors never leave this package.
func (e *Engine) outcome(req model.KillRequest, base model.KillOutcome, method model.KillMethod, err error) model.KillOutcome {
	base.RequestID = req.ID
	base.Method = method
	base.Result = model.ClassifyKillError(err)

	switch base.Result {
	case model.ResultVanished:
		base.Error = "target already gone"
	case model.ResultPermissionDenied:
		base.Error = "permission denied (owned by another user?)"
	case model.ResultFailed:
		if err != nil {
			base.Error = err.Error()
		}
	}
	return base
}

// findTracked looks the PID up in the current snapshot so the outcome can
// carry the port it occupied. A PID outside the snapshot is still a valid
// target; it just reports without a port.
func (e *Engine) findTracked(ctx context.Context, pid int) model.ProcessInfo {
	for _, info := range e.snapshots.Snapshot(ctx).Processes() {
		if info.PID == pid {
			return info
		}
	}
	return model.ProcessInfo{PID: pid}
}

// report logs the request summary once, aggregating genuine failures so
// a bulk kill produces one warning rather than a storm.
func (e *Engine) report(req model.KillRequest, outcomes []model.KillOutcome) {
	var failures *multierror.Error
	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
			continue
		}
		failures = multierror.Append(failures, oError(o))
	}

	entry := e.log.WithField("request", req.ID).
		WithField("kind", req.Kind.String()).
		WithField("targets", len(outcomes)).
		WithField("succeeded", succeeded)
	if err := failures.ErrorOrNil(); err != nil {
		entry.WithError(err).Warn("kill request completed with failures")
		return
	}
	entry.Info("kill request completed")
}

// oError converts a failed outcome into an error for aggregation.
func oError(o model.KillOutcome) error {
	return &outcomeError{outcome: o}
}

// outcomeError adapts KillOutcome to the error interface for multierror
// aggregation in logs.
type outcomeError struct {
	outcome model.KillOutcome
}

func (e *outcomeError) Error() string {
	return e.outcome.String()
}
