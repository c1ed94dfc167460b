// builder.go implements the snapshot builder: one concurrent probe sweep
// over the effective watch set, assembled into a ProcessSnapshot.
package probe

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwarden/internal/model"
)

// Builder runs the prober over a configured watch set and assembles
// ProcessSnapshots. It is stateless between calls; the monitor owns the
// cycle cadence and the previous-snapshot baseline.
type Builder struct {
	prober Prober
	log    *logrus.Entry
}

// NewBuilder creates a Builder backed by the given prober.
func NewBuilder(prober Prober) *Builder {
	return &Builder{
		prober: prober,
		log:    logrus.WithField("component", "snapshot-builder"),
	}
}

// Build probes every effective port (watch set minus ignore set) and
// returns the resulting snapshot.
//
// Probes run concurrently — they are independent and read-only — but the
// sweep is a join point: Build returns only after every probe completed
// or timed out, and results are assembled in ascending port order so the
// snapshot is deterministic regardless of probe completion order.
//
// Per-port failures are logged and contribute an empty entry; they never
// abort the sweep. Ignore patterns are applied after probing, so an
// ignore-list change is honored on the very next cycle.
func (b *Builder) Build(ctx context.Context, watchPorts, ignorePorts []int, ignorePatterns []string) model.ProcessSnapshot {
	ports := effectivePorts(watchPorts, ignorePorts)

	// One result slot per port, filled concurrently. Indexing by position
	// keeps assembly deterministic without any cross-goroutine ordering.
	results := make([][]model.ProcessInfo, len(ports))
	var wg sync.WaitGroup
	for i, port := range ports {
		wg.Add(1)
		go func(i, port int) {
			defer wg.Done()
			infos, err := b.prober.Probe(ctx, port)
			if err != nil {
				// Empty result for this port; the next cycle retries.
				b.log.WithField("port", port).WithError(err).
					Warn("probe failed, treating port as unobserved")
				return
			}
			results[i] = infos
		}(i, port)
	}
	wg.Wait()

	snapshot := make(model.ProcessSnapshot, len(ports))
	for i, port := range ports {
		for _, info := range results[i] {
			if matchesIgnorePattern(info.Command, ignorePatterns) {
				b.log.WithField("port", port).WithField("command", info.Command).
					Debug("ignoring process by pattern")
				continue
			}
			// A port holds at most one process of interest; probe results
			// are PID-ordered, so the first survivor wins deterministically.
			snapshot[port] = info
			break
		}
	}
	return snapshot
}

// effectivePorts returns watch minus ignore, ascending.
func effectivePorts(watch, ignore []int) []int {
	ignored := make(map[int]bool, len(ignore))
	for _, port := range ignore {
		ignored[port] = true
	}
	ports := make([]int, 0, len(watch))
	for _, port := range watch {
		if !ignored[port] {
			ports = append(ports, port)
		}
	}
	sort.Ints(ports)
	return ports
}

// matchesIgnorePattern reports whether the command name matches any
// configured ignore pattern. Matching is case-insensitive substring
// containment: "rapportd" is caught by pattern "rapport" without users
// having to spell exact daemon names.
func matchesIgnorePattern(command string, patterns []string) bool {
	if command == "" || len(patterns) == 0 {
		return false
	}
	lower := strings.ToLower(command)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
