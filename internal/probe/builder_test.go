package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/portwarden/internal/model"
)

// fakeProber serves canned probe results per port, with optional per-port
// errors, so builder behavior can be tested without touching real sockets.
type fakeProber struct {
	byPort map[int][]model.ProcessInfo
	errs   map[int]error
}

func (f *fakeProber) Probe(_ context.Context, port int) ([]model.ProcessInfo, error) {
	if err, ok := f.errs[port]; ok {
		return nil, err
	}
	return f.byPort[port], nil
}

// TestBuilder_Build verifies that a sweep assembles one entry per occupied
// port and leaves free ports absent from the snapshot.
func TestBuilder_Build(t *testing.T) {
	prober := &fakeProber{byPort: map[int][]model.ProcessInfo{
		3000: {{PID: 10, Port: 3000, Command: "node"}},
		8080: {{PID: 20, Port: 8080, Command: "python"}},
	}}
	builder := NewBuilder(prober)

	snapshot := builder.Build(context.Background(), []int{3000, 5173, 8080}, nil, nil)

	require.Len(t, snapshot, 2)
	assert.Equal(t, "node", snapshot[3000].Command)
	assert.Equal(t, "python", snapshot[8080].Command)
	_, present := snapshot[5173]
	assert.False(t, present, "free port must not appear in the snapshot")
}

// TestBuilder_Build_IgnorePorts verifies that ignored ports are never
// probed into the snapshot even when they appear in the watch set.
func TestBuilder_Build_IgnorePorts(t *testing.T) {
	prober := &fakeProber{byPort: map[int][]model.ProcessInfo{
		5353: {{PID: 1, Port: 5353, Command: "mDNSResponder"}},
		3000: {{PID: 10, Port: 3000, Command: "node"}},
	}}
	builder := NewBuilder(prober)

	snapshot := builder.Build(context.Background(), []int{3000, 5353}, []int{5353}, nil)

	assert.Equal(t, []int{3000}, snapshot.Ports())
}

// TestBuilder_Build_IgnorePatterns verifies post-probe pattern filtering:
// a matching process is dropped and the next PID-ordered listener on the
// same port takes its place.
func TestBuilder_Build_IgnorePatterns(t *testing.T) {
	prober := &fakeProber{byPort: map[int][]model.ProcessInfo{
		7000: {
			{PID: 5, Port: 7000, Command: "ControlCenter"},
			{PID: 9, Port: 7000, Command: "node"},
		},
		3000: {{PID: 10, Port: 3000, Command: "docker-proxy"}},
	}}
	builder := NewBuilder(prober)

	snapshot := builder.Build(context.Background(), []int{3000, 7000}, nil, []string{"controlcenter", "docker-proxy"})

	require.Len(t, snapshot, 1)
	assert.Equal(t, 9, snapshot[7000].PID, "filtered-out process yields to the next listener")
	_, present := snapshot[3000]
	assert.False(t, present, "port whose only listener matches a pattern stays unobserved")
}

// TestBuilder_Build_ProbeErrorIsolation verifies that one failing probe
// leaves its port unobserved without disturbing the rest of the sweep.
func TestBuilder_Build_ProbeErrorIsolation(t *testing.T) {
	prober := &fakeProber{
		byPort: map[int][]model.ProcessInfo{
			3000: {{PID: 10, Port: 3000, Command: "node"}},
		},
		errs: map[int]error{
			8080: model.ErrProbeTimeout,
			5173: errors.New("socket table query failed"),
		},
	}
	builder := NewBuilder(prober)

	snapshot := builder.Build(context.Background(), []int{3000, 5173, 8080}, nil, nil)

	assert.Equal(t, []int{3000}, snapshot.Ports(), "failing probes contribute nothing, successful ones survive")
}

// TestMatchesIgnorePattern verifies case-insensitive substring matching
// and the empty-input edge cases.
func TestMatchesIgnorePattern(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		patterns []string
		expected bool
	}{
		{"substring match", "rapportd", []string{"rapport"}, true},
		{"case insensitive", "ControlCenter", []string{"controlcenter"}, true},
		{"no match", "node", []string{"python"}, false},
		{"empty command", "", []string{"node"}, false},
		{"no patterns", "node", nil, false},
		{"blank pattern skipped", "node", []string{""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchesIgnorePattern(tt.command, tt.patterns))
		})
	}
}
