// Package cli — flags_test.go contains unit tests for the flag merge
// logic shared by the watch, list, and kill commands. The tests drive a
// real cobra command through flag parsing, so cobra's Changed tracking
// behaves exactly as it does in production.
package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/portwarden/internal/config"
	"github.com/shinji-kodama/portwarden/internal/model"
)

// parseWatchFlags registers the shared flag set on a throwaway command
// and parses the given arguments, returning both for assertions.
func parseWatchFlags(t *testing.T, args ...string) (*watchFlags, *cobra.Command) {
	t.Helper()
	flags := &watchFlags{}
	cmd := &cobra.Command{Use: "test"}
	flags.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return flags, cmd
}

// TestWatchFlags_Build_Defaults verifies that no arguments yield the
// built-in defaults.
func TestWatchFlags_Build_Defaults(t *testing.T) {
	flags, cmd := parseWatchFlags(t)

	cfg, err := flags.build(cmd)
	require.NoError(t, err)

	assert.Equal(t, config.Default().Ports, cfg.Ports)
	assert.Equal(t, config.Default().IgnorePorts, cfg.IgnorePorts)
	assert.Equal(t, config.DefaultScanInterval, cfg.ScanInterval)
	assert.False(t, cfg.IncludeContainers)
}

// TestWatchFlags_Build_ExplicitFlags verifies that explicitly set flags
// land in the config, including range expansion.
func TestWatchFlags_Build_ExplicitFlags(t *testing.T) {
	flags, cmd := parseWatchFlags(t,
		"--ports", "4000-4002",
		"--ignore-ports", "4001",
		"--ignore-patterns", "rapportd,docker-proxy",
		"--interval", "500ms",
		"--docker",
	)

	cfg, err := flags.build(cmd)
	require.NoError(t, err)

	assert.Equal(t, []int{4000, 4001, 4002}, cfg.Ports)
	assert.Equal(t, []int{4001}, cfg.IgnorePorts)
	assert.Equal(t, []string{"rapportd", "docker-proxy"}, cfg.IgnorePatterns)
	assert.Equal(t, 500*time.Millisecond, cfg.ScanInterval)
	assert.True(t, cfg.IncludeContainers)
}

// TestWatchFlags_Build_FlagOverridesFile verifies the merge order: the
// config file overrides defaults, and explicit flags override the file.
func TestWatchFlags_Build_FlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portwarden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ports: "9000,9001"
scanInterval: 10s
docker: true
`), 0o644))

	flags, cmd := parseWatchFlags(t, "--config", path, "--ports", "3000")

	cfg, err := flags.build(cmd)
	require.NoError(t, err)

	assert.Equal(t, []int{3000}, cfg.Ports, "explicit flag wins over the file")
	assert.Equal(t, 10*time.Second, cfg.ScanInterval, "file wins over the default")
	assert.True(t, cfg.IncludeContainers, "file wins over the default")
}

// TestWatchFlags_Build_FileKeepsUnflaggedValues verifies that a config
// file's port list survives when the ports flag was not set explicitly.
func TestWatchFlags_Build_FileKeepsUnflaggedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portwarden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`ports: "9000,9001"`), 0o644))

	flags, cmd := parseWatchFlags(t, "--config", path)

	cfg, err := flags.build(cmd)
	require.NoError(t, err)

	assert.Equal(t, []int{9000, 9001}, cfg.Ports)
}

// TestWatchFlags_Build_InvalidSpecs verifies that malformed values map to
// the invalid-config exit code.
func TestWatchFlags_Build_InvalidSpecs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad ports", []string{"--ports", "abc"}},
		{"duplicate ports", []string{"--ports", "3000,3000"}},
		{"bad ignore ports", []string{"--ignore-ports", "0"}},
		{"interval below floor", []string{"--interval", "10ms"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, cmd := parseWatchFlags(t, tt.args...)

			_, err := flags.build(cmd)
			require.Error(t, err)

			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, model.ExitInvalidConfig, cliErr.Code)
		})
	}
}

// TestWatchFlags_Build_MissingConfigFile verifies that a nonexistent
// config file is an invalid-config error, not a silent fallback.
func TestWatchFlags_Build_MissingConfigFile(t *testing.T) {
	flags, cmd := parseWatchFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := flags.build(cmd)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitInvalidConfig, cliErr.Code)
}
