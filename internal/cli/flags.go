// flags.go defines the watch-configuration flag set shared by the watch,
// list, and kill commands, and the merge order that produces the final
// WatchConfig: defaults ← config file ← explicit flags.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portwarden/internal/config"
	"github.com/shinji-kodama/portwarden/internal/model"
)

// watchFlags holds the raw flag values before validation. Each command
// gets its own instance so concurrent cobra test runs don't share state.
type watchFlags struct {
	ports          string
	ignorePorts    string
	ignorePatterns []string
	interval       time.Duration
	docker         bool
	configPath     string
	showPID        bool
}

// register binds the shared configuration flags onto a command.
func (f *watchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.ports, "ports", "p", config.DefaultPortSpec,
		"Ports to monitor (comma-separated, ranges allowed: 3000-3010,8080)")
	cmd.Flags().StringVar(&f.ignorePorts, "ignore-ports", config.DefaultIgnorePortSpec,
		"Ports to exclude from monitoring")
	cmd.Flags().StringSliceVar(&f.ignorePatterns, "ignore-patterns", nil,
		"Command-name substrings to exclude (e.g. rapportd)")
	cmd.Flags().DurationVar(&f.interval, "interval", config.DefaultScanInterval,
		"Scan interval")
	cmd.Flags().BoolVar(&f.docker, "docker", false,
		"Enable Docker container attribution and container kill targets")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "",
		"Config file (YAML or JSONC); explicit flags override file values")
	cmd.Flags().BoolVar(&f.showPID, "show-pid", false,
		"Include PIDs in text output")
}

// build assembles and validates the WatchConfig. Merge order: built-in
// defaults, then the config file (when given), then any flag the user set
// explicitly. cobra's Changed tracking distinguishes "default value"
// from "user typed the default value" — both override the file.
func (f *watchFlags) build(cmd *cobra.Command) (config.WatchConfig, error) {
	cfg := config.Default()

	if f.configPath != "" {
		loaded, err := config.LoadFile(f.configPath, cfg)
		if err != nil {
			return cfg, model.WrapCLIError(model.ExitInvalidConfig, "invalid config file", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("ports") || f.configPath == "" {
		ports, err := config.ParsePortSpec(f.ports)
		if err != nil {
			return cfg, model.WrapCLIError(model.ExitInvalidConfig, "invalid --ports", err)
		}
		cfg.Ports = ports
	}
	if cmd.Flags().Changed("ignore-ports") || f.configPath == "" {
		ignore, err := config.ParsePortSpec(f.ignorePorts)
		if err != nil {
			return cfg, model.WrapCLIError(model.ExitInvalidConfig, "invalid --ignore-ports", err)
		}
		cfg.IgnorePorts = ignore
	}
	if cmd.Flags().Changed("ignore-patterns") {
		cfg.IgnorePatterns = f.ignorePatterns
	}
	if cmd.Flags().Changed("interval") {
		cfg.ScanInterval = f.interval
	}
	if cmd.Flags().Changed("docker") {
		cfg.IncludeContainers = f.docker
	}

	if err := cfg.Validate(); err != nil {
		return cfg, model.WrapCLIError(model.ExitInvalidConfig, "invalid watch configuration", err)
	}
	return cfg, nil
}
