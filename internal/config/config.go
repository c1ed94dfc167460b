// Package config assembles and validates the WatchConfig consumed by the
// portwarden core.
//
// Configuration can come from CLI flags, from a YAML file, or from a
// JSON-with-comments file (JSONC); flags take precedence over file values.
// All validation — port ranges, duplicate rejection, interval floors —
// happens here, before anything reaches the monitor. The core trusts the
// WatchConfig it receives.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Default configuration values. The port defaults cover the common
// development-server ports; the default ignore list excludes mDNS (5353)
// and AirPlay (7000), which are long-lived system daemons a developer
// never wants reaped.
const (
	// DefaultPortSpec is the port list monitored when none is configured.
	DefaultPortSpec = "3000,3001,5000,5173,8000,8080"

	// DefaultIgnorePortSpec is the ignore list applied when none is
	// configured.
	DefaultIgnorePortSpec = "5353,7000"

	// DefaultScanInterval is the monitor tick period.
	DefaultScanInterval = 2 * time.Second

	// MinScanInterval is the fastest allowed tick period. Anything faster
	// would spend more time scanning than idle on slow socket tables.
	MinScanInterval = 250 * time.Millisecond
)

// WatchConfig is the validated configuration handed to the core.
// It is constructed once at startup and never mutated afterwards.
type WatchConfig struct {
	// Ports is the ordered watch set: the TCP ports to monitor.
	Ports []int `yaml:"ports" json:"ports"`

	// IgnorePorts are ports excluded from the watch set even when listed
	// in Ports. Kept separate (rather than pre-subtracted) so the
	// effective set is recomputed per cycle.
	IgnorePorts []int `yaml:"ignorePorts" json:"ignorePorts"`

	// IgnorePatterns are substrings matched against process command names.
	// Matching processes are excluded after probing, so pattern changes
	// take effect on the very next cycle.
	IgnorePatterns []string `yaml:"ignorePatterns" json:"ignorePatterns"`

	// ScanInterval is the monitor tick period.
	ScanInterval time.Duration `yaml:"scanInterval" json:"scanInterval"`

	// IncludeContainers enables Docker container attribution on probes
	// and container kill targets.
	IncludeContainers bool `yaml:"docker" json:"docker"`
}

// Default returns a WatchConfig populated with the default values.
func Default() WatchConfig {
	ports, _ := ParsePortSpec(DefaultPortSpec)
	ignore, _ := ParsePortSpec(DefaultIgnorePortSpec)
	return WatchConfig{
		Ports:        ports,
		IgnorePorts:  ignore,
		ScanInterval: DefaultScanInterval,
	}
}

// ParsePortSpec parses a comma-separated port specification into an
// ordered port list. Each element is either a single port ("8080") or an
// inclusive range ("3000-3010"). The result preserves specification order
// with ranges expanded in ascending order.
//
// Duplicate ports are rejected rather than deduplicated: a duplicate
// almost always means a typo in a range, and silently collapsing it would
// hide the mistake.
func ParsePortSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var ports []int
	seen := make(map[int]bool)

	add := func(port int) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port %d out of range (1-65535)", port)
		}
		if seen[port] {
			return fmt.Errorf("duplicate port %d", port)
		}
		seen[port] = true
		ports = append(ports, port)
		return nil
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty element in port spec %q", spec)
		}

		// Range element: "start-end", both bounds inclusive.
		if start, end, ok := strings.Cut(part, "-"); ok {
			lo, err := strconv.Atoi(strings.TrimSpace(start))
			if err != nil {
				return nil, fmt.Errorf("invalid port range start %q", start)
			}
			hi, err := strconv.Atoi(strings.TrimSpace(end))
			if err != nil {
				return nil, fmt.Errorf("invalid port range end %q", end)
			}
			if hi < lo {
				return nil, fmt.Errorf("inverted port range %q", part)
			}
			for port := lo; port <= hi; port++ {
				if err := add(port); err != nil {
					return nil, err
				}
			}
			continue
		}

		port, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		if err := add(port); err != nil {
			return nil, err
		}
	}

	return ports, nil
}

// Validate checks the WatchConfig for internal consistency. It is called
// once at startup; the core never re-validates.
func (c *WatchConfig) Validate() error {
	if len(c.Ports) == 0 {
		return fmt.Errorf("watch config: at least one port is required")
	}
	seen := make(map[int]bool, len(c.Ports))
	for _, port := range c.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("watch config: port %d out of range (1-65535)", port)
		}
		if seen[port] {
			return fmt.Errorf("watch config: duplicate port %d", port)
		}
		seen[port] = true
	}
	for _, port := range c.IgnorePorts {
		if port < 1 || port > 65535 {
			return fmt.Errorf("watch config: ignore port %d out of range (1-65535)", port)
		}
	}
	for _, pattern := range c.IgnorePatterns {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("watch config: empty ignore pattern")
		}
	}
	if c.ScanInterval == 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.ScanInterval < MinScanInterval {
		return fmt.Errorf("watch config: scan interval %s below minimum %s",
			c.ScanInterval, MinScanInterval)
	}
	return nil
}

// EffectivePorts returns the watch set minus the ignore-port set, in
// ascending order. This is the deterministic port order the snapshot
// builder probes in.
func (c *WatchConfig) EffectivePorts() []int {
	ignored := make(map[int]bool, len(c.IgnorePorts))
	for _, port := range c.IgnorePorts {
		ignored[port] = true
	}
	effective := make([]int, 0, len(c.Ports))
	for _, port := range c.Ports {
		if !ignored[port] {
			effective = append(effective, port)
		}
	}
	sort.Ints(effective)
	return effective
}

// fileConfig mirrors WatchConfig for file decoding, with the port fields
// as strings so files can use the same range syntax as the CLI
// ("3000-3010,8080").
type fileConfig struct {
	Ports          string   `yaml:"ports" json:"ports"`
	IgnorePorts    string   `yaml:"ignorePorts" json:"ignorePorts"`
	IgnorePatterns []string `yaml:"ignorePatterns" json:"ignorePatterns"`
	ScanInterval   string   `yaml:"scanInterval" json:"scanInterval"`
	Docker         *bool    `yaml:"docker" json:"docker"`
}

// LoadFile reads a watch configuration file and merges it over the given
// base config. The format is chosen by extension: .yaml/.yml are parsed
// as YAML, everything else as JSONC (JSON with comments, so annotated
// config files survive parsing).
//
// Only fields present in the file override the base; absent fields keep
// their base values.
func LoadFile(path string, base WatchConfig) (WatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return base, fmt.Errorf("parse YAML config %s: %w", path, err)
		}
	default:
		// Strip // and /* */ comments plus trailing commas, then parse
		// with the standard library. Config files are hand-edited, so
		// the comment-tolerant form is the one users actually write.
		if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
			return base, fmt.Errorf("parse JSONC config %s: %w", path, err)
		}
	}

	cfg := base
	if fc.Ports != "" {
		if cfg.Ports, err = ParsePortSpec(fc.Ports); err != nil {
			return base, fmt.Errorf("config %s: ports: %w", path, err)
		}
	}
	if fc.IgnorePorts != "" {
		if cfg.IgnorePorts, err = ParsePortSpec(fc.IgnorePorts); err != nil {
			return base, fmt.Errorf("config %s: ignorePorts: %w", path, err)
		}
	}
	if len(fc.IgnorePatterns) > 0 {
		cfg.IgnorePatterns = fc.IgnorePatterns
	}
	if fc.ScanInterval != "" {
		interval, err := time.ParseDuration(fc.ScanInterval)
		if err != nil {
			return base, fmt.Errorf("config %s: scanInterval: %w", path, err)
		}
		cfg.ScanInterval = interval
	}
	if fc.Docker != nil {
		cfg.IncludeContainers = *fc.Docker
	}
	return cfg, nil
}
