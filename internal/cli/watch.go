// watch.go implements the "portwarden watch" command: the resident
// monitor with a console presentation.
//
// The console is a thin subscriber of the update coordinator's stream
// plus a small stdin command reader ("kill 3000", "kill all", "quit") —
// it consumes ProcessSnapshots and emits KillRequests, exactly the
// contract a tray menu would use.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portwarden/internal/config"
	"github.com/shinji-kodama/portwarden/internal/coordinate"
	"github.com/shinji-kodama/portwarden/internal/docker"
	"github.com/shinji-kodama/portwarden/internal/model"
	"github.com/shinji-kodama/portwarden/internal/monitor"
	"github.com/shinji-kodama/portwarden/internal/probe"
	"github.com/shinji-kodama/portwarden/internal/terminate"
)

// NewWatchCommand creates the "watch" cobra command.
func NewWatchCommand() *cobra.Command {
	flags := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously monitor ports and kill processes on demand",
		Long: `Watch the configured ports and print every observed change.

While watching, commands are read from stdin:
  kill <port>     terminate the process (or container) on a port
  kill <pid>      terminate a process by PID (when not on a watched port)
  kill all        terminate every tracked process
  quit            stop watching

Examples:
  portwarden watch --ports 3000-3010,8080
  portwarden watch --docker --ignore-patterns rapportd --show-pid`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.build(cmd)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), cfg, flags.showPID)
		},
	}
	flags.register(cmd)
	return cmd
}

// runWatch wires the core triad together — monitor → coordinator →
// console, console → engine → coordinator — and runs until interrupted.
func runWatch(parent context.Context, cfg config.WatchConfig, showPID bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Container support is optional; without --docker the prober gets a
	// nil resolver and container targets are rejected by the engine.
	var dockerCli *docker.Client
	var resolver probe.ContainerResolver
	if cfg.IncludeContainers {
		cli, err := docker.NewClient()
		if err != nil {
			return err
		}
		defer func() { _ = cli.Close() }()
		if err := cli.Ping(ctx); err != nil {
			return err
		}
		dockerCli = cli
		resolver = docker.NewResolver(cli)
	}

	builder := probe.NewBuilder(probe.NewProber(resolver))

	// One scan interval gives the next sweep time to observe a kill, but
	// the window must never be shorter than the kill grace period or an
	// in-flight escalation could outlive its own suppression.
	window := cfg.ScanInterval
	if window < terminate.GracePeriod {
		window = terminate.GracePeriod
	}
	coord := coordinate.New(window)
	engine, err := terminate.NewEngine(coord, coord, dockerCli)
	if err != nil {
		return err
	}
	mon := monitor.New(builder, cfg, coord)

	updates := coord.Subscribe(16)
	go coord.Run(ctx)
	go mon.Run(ctx)
	go readCommands(ctx, stop, coord, engine)

	if !IsJSONOutput() {
		fmt.Printf("Watching %d port(s) every %s. Type \"kill <port>\", \"kill all\", or \"quit\".\n",
			len(cfg.EffectivePorts()), cfg.ScanInterval)
	}

	// The stream closes when the coordinator shuts down on ctx
	// cancellation; draining it is the whole job of this goroutine.
	for update := range updates {
		printUpdate(update, showPID)
	}

	// In-flight kills run to completion even across shutdown.
	engine.Wait()
	return nil
}

// readCommands parses stdin commands and turns them into KillRequests.
// EOF (e.g. watch running non-interactively with stdin closed) simply
// ends command handling; monitoring continues.
func readCommands(ctx context.Context, stop context.CancelFunc, coord *coordinate.Coordinator, engine *terminate.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "quit", line == "exit", line == "q":
			stop()
			return
		case line == "kill all":
			submit(ctx, engine, model.NewAllTrackedRequest())
		case strings.HasPrefix(line, "kill "):
			arg := strings.TrimSpace(strings.TrimPrefix(line, "kill "))
			submitKillTarget(ctx, coord, engine, arg)
		default:
			fmt.Printf("unknown command %q (try: kill <port>, kill all, quit)\n", line)
		}
	}
}

// submitKillTarget resolves a "kill <n>" argument against the current
// snapshot. A watched port wins over a PID interpretation; a process
// attributed to a container is killed as a container so the daemon does
// not immediately restart it.
func submitKillTarget(ctx context.Context, coord *coordinate.Coordinator, engine *terminate.Engine, arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		fmt.Printf("invalid kill target %q\n", arg)
		return
	}

	snapshot := coord.Snapshot(ctx)
	if info, ok := snapshot[n]; ok {
		if info.InContainer() {
			submit(ctx, engine, model.NewContainerRequest(info.ContainerID))
		} else {
			submit(ctx, engine, model.NewSinglePIDRequest(info.PID))
		}
		return
	}
	// Not a watched port: treat the number as a PID.
	submit(ctx, engine, model.NewSinglePIDRequest(n))
}

// submit sends a request and prints its outcomes when they arrive.
func submit(ctx context.Context, engine *terminate.Engine, req model.KillRequest) {
	results := engine.Submit(ctx, req)
	go func() {
		for _, outcome := range <-results {
			printOutcome(outcome)
		}
	}()
}

// printUpdate renders one coordinator update on the console.
func printUpdate(update coordinate.Update, showPID bool) {
	if IsJSONOutput() {
		data, _ := json.Marshal(struct {
			Time         time.Time             `json:"time"`
			Added        []model.ProcessInfo   `json:"added,omitempty"`
			Removed      []model.ProcessInfo   `json:"removed,omitempty"`
			Tracked      []model.ProcessInfo   `json:"tracked"`
			Consolidated bool                  `json:"consolidated,omitempty"`
		}{
			Time:         time.Now(),
			Added:        update.Diff.Added,
			Removed:      update.Diff.Removed,
			Tracked:      update.Snapshot.Processes(),
			Consolidated: update.Consolidated,
		})
		fmt.Println(string(data))
		return
	}

	stamp := time.Now().Format("15:04:05")
	suffix := ""
	if update.Consolidated {
		suffix = " (consolidated)"
	}
	for _, info := range update.Diff.Removed {
		fmt.Printf("%s - %s%s\n", stamp, formatInfo(info, showPID), suffix)
	}
	for _, info := range update.Diff.Added {
		fmt.Printf("%s + %s%s\n", stamp, formatInfo(info, showPID), suffix)
	}
}

// printOutcome renders one kill outcome on the console.
func printOutcome(outcome model.KillOutcome) {
	if IsJSONOutput() {
		data, _ := json.Marshal(outcome)
		fmt.Println(string(data))
		return
	}
	fmt.Printf("%s %s\n", time.Now().Format("15:04:05"), outcome.String())
}

// formatInfo renders a process for text output, honoring --show-pid.
func formatInfo(info model.ProcessInfo, showPID bool) string {
	if showPID {
		return info.String()
	}
	command := info.Command
	if command == "" {
		command = "<unknown>"
	}
	s := fmt.Sprintf("%s on port %d", command, info.Port)
	if info.InContainer() {
		s += fmt.Sprintf(" [docker: %s]", info.ContainerName)
	}
	return s
}
