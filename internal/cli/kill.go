// kill.go implements the "portwarden kill" command: a one-shot kill
// without a resident monitor. It builds a single snapshot, resolves the
// requested target against it, and submits one KillRequest.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portwarden/internal/config"
	"github.com/shinji-kodama/portwarden/internal/docker"
	"github.com/shinji-kodama/portwarden/internal/model"
	"github.com/shinji-kodama/portwarden/internal/terminate"
)

// killFlags holds the target-selection flags. Exactly one must be set.
type killFlags struct {
	port      int
	pid       int
	container string
	all       bool
}

// NewKillCommand creates the "kill" cobra command.
func NewKillCommand() *cobra.Command {
	flags := &watchFlags{}
	target := &killFlags{}
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Terminate the process or container holding a port",
		Long: `Terminate a target with the escalation policy: graceful first,
forceful after a bounded grace period.

Exactly one target selector is required.

Examples:
  portwarden kill --port 3000
  portwarden kill --pid 12345
  portwarden kill --container 4f1b2c3d
  portwarden kill --all --ports 3000-3010`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.build(cmd)
			if err != nil {
				return err
			}
			return runKill(cmd.Context(), cfg, target)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&target.port, "port", 0, "Kill the process listening on this port")
	cmd.Flags().IntVar(&target.pid, "pid", 0, "Kill this PID directly")
	cmd.Flags().StringVar(&target.container, "container", "", "Kill this Docker container (implies --docker)")
	cmd.Flags().BoolVar(&target.all, "all", false, "Kill every process on the watched ports")
	return cmd
}

// staticSnapshot adapts a one-shot snapshot to the engine's
// SnapshotSource interface.
type staticSnapshot struct {
	snapshot model.ProcessSnapshot
}

func (s staticSnapshot) Snapshot(context.Context) model.ProcessSnapshot {
	return s.snapshot
}

// runKill resolves the target, submits one request, prints the outcomes,
// and exits non-zero if any target genuinely failed (permission denied or
// survived escalation). A vanished target is success: the port is free.
func runKill(ctx context.Context, cfg config.WatchConfig, target *killFlags) error {
	if err := validateTarget(target); err != nil {
		return err
	}

	// A container target needs the Docker client even without --docker.
	if target.container != "" {
		cfg.IncludeContainers = true
	}

	snapshot, cleanup, err := buildOnce(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var dockerCli *docker.Client
	if cfg.IncludeContainers {
		// buildOnce verified the daemon is reachable; a second client for
		// the engine keeps the two lifetimes independent.
		dockerCli, err = docker.NewClient()
		if err != nil {
			return err
		}
		defer func() { _ = dockerCli.Close() }()
	}

	engine, err := terminate.NewEngine(staticSnapshot{snapshot: snapshot}, nil, dockerCli)
	if err != nil {
		return err
	}

	req, ok, err := resolveRequest(snapshot, target)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("Nothing to kill: no process observed on port %d.\n", target.port)
		return nil
	}

	outcomes := <-engine.Submit(ctx, req)
	return printOutcomes(outcomes)
}

// validateTarget enforces the exactly-one-selector rule.
func validateTarget(target *killFlags) error {
	selectors := 0
	if target.port != 0 {
		selectors++
	}
	if target.pid != 0 {
		selectors++
	}
	if target.container != "" {
		selectors++
	}
	if target.all {
		selectors++
	}
	if selectors != 1 {
		return model.NewCLIError(model.ExitInvalidConfig,
			"exactly one of --port, --pid, --container, --all is required")
	}
	return nil
}

// resolveRequest maps the selector onto a KillRequest. ok is false when a
// --port selector found nothing listening — not an error, the desired end
// state already holds.
func resolveRequest(snapshot model.ProcessSnapshot, target *killFlags) (model.KillRequest, bool, error) {
	switch {
	case target.all:
		return model.NewAllTrackedRequest(), true, nil
	case target.pid != 0:
		return model.NewSinglePIDRequest(target.pid), true, nil
	case target.container != "":
		return model.NewContainerRequest(target.container), true, nil
	default:
		info, ok := snapshot[target.port]
		if !ok {
			return model.KillRequest{}, false, nil
		}
		if info.InContainer() {
			return model.NewContainerRequest(info.ContainerID), true, nil
		}
		return model.NewSinglePIDRequest(info.PID), true, nil
	}
}

// printOutcomes renders the outcome set and translates genuine failures
// into the exit code contract.
func printOutcomes(outcomes []model.KillOutcome) error {
	if IsJSONOutput() {
		data, err := json.MarshalIndent(outcomes, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		for _, outcome := range outcomes {
			fmt.Println(outcome.String())
		}
	}

	failed := 0
	for _, outcome := range outcomes {
		if !outcome.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return model.NewCLIError(model.ExitKillFailed,
			fmt.Sprintf("%d of %d target(s) could not be terminated", failed, len(outcomes)))
	}
	return nil
}
