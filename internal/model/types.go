// types.go defines the snapshot-side domain types: ProcessInfo,
// ProcessSnapshot, and SnapshotDiff.
//
// ProcessInfo values are immutable once constructed and identified by the
// (pid, port) pair. ProcessSnapshot is the unit of state handed from the
// monitor to the coordinator; SnapshotDiff is derived from two snapshots
// and never stored long-term.
package model

import (
	"fmt"
	"sort"
)

// ProcessInfo describes one process observed listening on a watched port.
//
// Values are immutable once constructed: components share them by copy and
// never mutate them after assembly. Identity is the (PID, Port) pair — the
// same PID listening on two watched ports yields two distinct identities,
// which is what the per-port kill semantics need.
type ProcessInfo struct {
	// PID is the operating system process identifier.
	PID int `json:"pid"`

	// Port is the TCP port the process was observed listening on.
	Port int `json:"port"`

	// Command is the short command name of the process (e.g., "node").
	// May be empty when the process is owned by another user and the
	// name could not be resolved.
	Command string `json:"command"`

	// ContainerID is the Docker container ID publishing this port,
	// if container attribution is enabled and a match was found.
	ContainerID string `json:"containerId,omitempty"`

	// ContainerName is the human-readable Docker container name
	// corresponding to ContainerID.
	ContainerName string `json:"containerName,omitempty"`
}

// ProcessIdentity is the identity key of a ProcessInfo: the (pid, port)
// pair. Two ProcessInfo values with equal identity are considered the same
// observation for diffing purposes, regardless of command or container
// attribution.
type ProcessIdentity struct {
	PID  int
	Port int
}

// Identity returns the (pid, port) identity key for this process.
func (p ProcessInfo) Identity() ProcessIdentity {
	return ProcessIdentity{PID: p.PID, Port: p.Port}
}

// InContainer reports whether this process was attributed to a Docker
// container.
func (p ProcessInfo) InContainer() bool {
	return p.ContainerID != ""
}

// String returns a human-readable one-line description, suitable for
// console output and log messages.
// Format: "node (PID 1234) on port 3000" with an optional container suffix.
func (p ProcessInfo) String() string {
	command := p.Command
	if command == "" {
		command = "<unknown>"
	}
	s := fmt.Sprintf("%s (PID %d) on port %d", command, p.PID, p.Port)
	if p.InContainer() {
		s += fmt.Sprintf(" [docker: %s]", p.ContainerName)
	}
	return s
}

// ProcessSnapshot is an ordered mapping from port number to the single
// process of interest observed listening on it during one scan cycle.
//
// Only ports from the configured watch set (minus ignore lists) ever
// appear as keys. A missing key means "not observed this cycle", not
// "guaranteed absent" — a probe can race with a kill.
//
// The underlying map is unordered; Ports() provides the deterministic
// (ascending port) iteration order that all consumers use.
type ProcessSnapshot map[int]ProcessInfo

// Ports returns the snapshot's ports in ascending order. This is the
// canonical iteration order for presentation layers and tests.
func (s ProcessSnapshot) Ports() []int {
	ports := make([]int, 0, len(s))
	for port := range s {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}

// Processes returns the snapshot's entries in ascending port order.
func (s ProcessSnapshot) Processes() []ProcessInfo {
	infos := make([]ProcessInfo, 0, len(s))
	for _, port := range s.Ports() {
		infos = append(infos, s[port])
	}
	return infos
}

// Clone returns an independent copy of the snapshot. ProcessInfo values
// are immutable, so a shallow copy of the map is sufficient.
func (s ProcessSnapshot) Clone() ProcessSnapshot {
	clone := make(ProcessSnapshot, len(s))
	for port, info := range s {
		clone[port] = info
	}
	return clone
}

// SnapshotDiff captures the change between two consecutive snapshots:
// processes that appeared, processes that disappeared, and how many were
// present in both. Added and Removed are disjoint by construction (they
// are computed as set differences on ProcessInfo identity).
//
// Diffs are derived values — they are forwarded, merged, or discarded,
// but never retained as authoritative state.
type SnapshotDiff struct {
	// Added lists processes present in the new snapshot but not the old,
	// in ascending port order.
	Added []ProcessInfo `json:"added,omitempty"`

	// Removed lists processes present in the old snapshot but not the new,
	// in ascending port order.
	Removed []ProcessInfo `json:"removed,omitempty"`

	// UnchangedCount is the number of identities present in both snapshots.
	UnchangedCount int `json:"unchangedCount"`
}

// Empty reports whether the diff carries no change. Empty diffs are
// produced every quiet cycle and must never be forwarded to subscribers
// as if they were changes.
func (d SnapshotDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// String summarizes the diff for log output, e.g. "+2 -1 (=3)".
func (d SnapshotDiff) String() string {
	return fmt.Sprintf("+%d -%d (=%d)", len(d.Added), len(d.Removed), d.UnchangedCount)
}
