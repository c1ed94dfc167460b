// diff.go implements snapshot diffing: set difference on ProcessInfo
// identity between two consecutive snapshots.
package monitor

import (
	"sort"

	"github.com/shinji-kodama/portwarden/internal/model"
)

// Diff computes the change from prev to next.
//
// Guarantees (relied on by the coordinator and verified by tests):
//   - Added and Removed are disjoint: identity is (pid, port), so a port
//     whose occupant changed contributes one Removed and one Added entry
//     with different identities.
//   - Applying the diff to prev (insert Added, delete Removed) yields
//     exactly next.
//   - Diff(s, s) is empty for every snapshot s.
//
// Both result slices are in ascending port order.
func Diff(prev, next model.ProcessSnapshot) model.SnapshotDiff {
	prevByIdentity := make(map[model.ProcessIdentity]bool, len(prev))
	for _, info := range prev {
		prevByIdentity[info.Identity()] = true
	}
	nextByIdentity := make(map[model.ProcessIdentity]bool, len(next))
	for _, info := range next {
		nextByIdentity[info.Identity()] = true
	}

	var diff model.SnapshotDiff
	for _, info := range next.Processes() {
		if prevByIdentity[info.Identity()] {
			diff.UnchangedCount++
		} else {
			diff.Added = append(diff.Added, info)
		}
	}
	for _, info := range prev.Processes() {
		if !nextByIdentity[info.Identity()] {
			diff.Removed = append(diff.Removed, info)
		}
	}
	return diff
}

// Apply returns the snapshot that results from applying diff to base:
// Removed entries are deleted, Added entries inserted. It is the inverse
// direction of Diff and exists for the coordinator's consolidation
// bookkeeping and for property tests.
func Apply(base model.ProcessSnapshot, diff model.SnapshotDiff) model.ProcessSnapshot {
	result := base.Clone()
	for _, info := range diff.Removed {
		// Delete only if the entry at this port is the same identity;
		// a racing replacement must not be dropped.
		if existing, ok := result[info.Port]; ok && existing.Identity() == info.Identity() {
			delete(result, info.Port)
		}
	}
	for _, info := range diff.Added {
		result[info.Port] = info
	}
	return result
}

// Merge accumulates a newly observed diff into a pending consolidated
// diff, cancelling opposite observations of the same identity. The result
// is the net change: a process that was added and then removed within the
// accumulation window (or vice versa) disappears entirely.
//
// Merge is associative over a sequence of consecutive diffs, so the
// coordinator can fold any number of suppressed cycles into one
// consolidated update equal to Diff(first-baseline, last-snapshot).
func Merge(pending, next model.SnapshotDiff) model.SnapshotDiff {
	addedBy := make(map[model.ProcessIdentity]model.ProcessInfo, len(pending.Added))
	for _, info := range pending.Added {
		addedBy[info.Identity()] = info
	}
	removedBy := make(map[model.ProcessIdentity]model.ProcessInfo, len(pending.Removed))
	for _, info := range pending.Removed {
		removedBy[info.Identity()] = info
	}

	for _, info := range next.Added {
		if _, ok := removedBy[info.Identity()]; ok {
			// Removed earlier in the window, back now: net no change.
			delete(removedBy, info.Identity())
		} else {
			addedBy[info.Identity()] = info
		}
	}
	for _, info := range next.Removed {
		if _, ok := addedBy[info.Identity()]; ok {
			// Added earlier in the window, gone again: net no change.
			delete(addedBy, info.Identity())
		} else {
			removedBy[info.Identity()] = info
		}
	}

	merged := model.SnapshotDiff{UnchangedCount: next.UnchangedCount}
	for _, info := range addedBy {
		merged.Added = append(merged.Added, info)
	}
	for _, info := range removedBy {
		merged.Removed = append(merged.Removed, info)
	}
	sortByPort(merged.Added)
	sortByPort(merged.Removed)
	return merged
}

// sortByPort orders ProcessInfo slices the way every other diff producer
// does, keeping consolidated updates deterministic.
func sortByPort(infos []model.ProcessInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Port < infos[j].Port })
}
