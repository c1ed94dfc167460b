// list.go implements the "portwarden list" command: one snapshot, printed,
// done. This is the on-demand query path (current_snapshot) without a
// resident monitor.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portwarden/internal/config"
	"github.com/shinji-kodama/portwarden/internal/docker"
	"github.com/shinji-kodama/portwarden/internal/model"
	"github.com/shinji-kodama/portwarden/internal/probe"
)

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	flags := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Scan the watched ports once and print what is listening",
		Long: `Build a single snapshot of the watched ports and print it.

Examples:
  portwarden list
  portwarden list --ports 3000-3010 --show-pid
  portwarden list --docker --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.build(cmd)
			if err != nil {
				return err
			}
			return runList(cmd.Context(), cfg, flags.showPID)
		},
	}
	flags.register(cmd)
	return cmd
}

// runList builds one snapshot and prints it.
func runList(ctx context.Context, cfg config.WatchConfig, showPID bool) error {
	snapshot, cleanup, err := buildOnce(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if IsJSONOutput() {
		data, err := json.MarshalIndent(snapshot.Processes(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(snapshot) == 0 {
		fmt.Printf("No processes listening on %d watched port(s).\n", len(cfg.EffectivePorts()))
		return nil
	}
	for _, info := range snapshot.Processes() {
		fmt.Println(formatInfo(info, showPID))
	}
	return nil
}

// buildOnce constructs the probe stack for a one-shot command, runs a
// single sweep, and returns the snapshot plus a cleanup func for the
// Docker client (a no-op when container support is off).
func buildOnce(ctx context.Context, cfg config.WatchConfig) (model.ProcessSnapshot, func(), error) {
	cleanup := func() {}

	var resolver probe.ContainerResolver
	if cfg.IncludeContainers {
		cli, err := docker.NewClient()
		if err != nil {
			return nil, cleanup, err
		}
		if err := cli.Ping(ctx); err != nil {
			_ = cli.Close()
			return nil, cleanup, err
		}
		cleanup = func() { _ = cli.Close() }
		resolver = docker.NewResolver(cli)
	}

	builder := probe.NewBuilder(probe.NewProber(resolver))
	snapshot := builder.Build(ctx, cfg.Ports, cfg.IgnorePorts, cfg.IgnorePatterns)
	return snapshot, cleanup, nil
}
