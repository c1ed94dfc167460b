package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/portwarden/internal/model"
)

// TestDiff_Basic verifies additions, removals, and unchanged counting
// across two snapshots.
func TestDiff_Basic(t *testing.T) {
	prev := model.ProcessSnapshot{
		3000: {PID: 10, Port: 3000, Command: "node"},
		8080: {PID: 20, Port: 8080, Command: "python"},
	}
	next := model.ProcessSnapshot{
		3000: {PID: 10, Port: 3000, Command: "node"},
		5173: {PID: 30, Port: 5173, Command: "vite"},
	}

	diff := Diff(prev, next)

	require.Len(t, diff.Added, 1)
	assert.Equal(t, 30, diff.Added[0].PID)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, 20, diff.Removed[0].PID)
	assert.Equal(t, 1, diff.UnchangedCount)
}

// TestDiff_SelfIsEmpty verifies Diff(s, s) is empty for a non-trivial
// snapshot.
func TestDiff_SelfIsEmpty(t *testing.T) {
	s := model.ProcessSnapshot{
		3000: {PID: 10, Port: 3000},
		8080: {PID: 20, Port: 8080},
	}

	diff := Diff(s, s)
	assert.True(t, diff.Empty())
	assert.Equal(t, 2, diff.UnchangedCount)
}

// TestDiff_OccupantChange verifies that a port whose occupant changed PID
// produces one Removed and one Added entry: identity is (pid, port), not
// just port.
func TestDiff_OccupantChange(t *testing.T) {
	prev := model.ProcessSnapshot{3000: {PID: 10, Port: 3000, Command: "node"}}
	next := model.ProcessSnapshot{3000: {PID: 99, Port: 3000, Command: "node"}}

	diff := Diff(prev, next)

	require.Len(t, diff.Added, 1)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, 99, diff.Added[0].PID)
	assert.Equal(t, 10, diff.Removed[0].PID)
	assert.Equal(t, 0, diff.UnchangedCount)
}

// TestDiff_PortOrder verifies both result slices come back in ascending
// port order regardless of map iteration order.
func TestDiff_PortOrder(t *testing.T) {
	next := model.ProcessSnapshot{
		8080: {PID: 3, Port: 8080},
		3000: {PID: 1, Port: 3000},
		5173: {PID: 2, Port: 5173},
	}

	diff := Diff(model.ProcessSnapshot{}, next)

	require.Len(t, diff.Added, 3)
	assert.Equal(t, 3000, diff.Added[0].Port)
	assert.Equal(t, 5173, diff.Added[1].Port)
	assert.Equal(t, 8080, diff.Added[2].Port)
}

// TestApply_RoundTrip verifies that applying Diff(prev, next) to prev
// reproduces next exactly.
func TestApply_RoundTrip(t *testing.T) {
	prev := model.ProcessSnapshot{
		3000: {PID: 10, Port: 3000, Command: "node"},
		8080: {PID: 20, Port: 8080, Command: "python"},
	}
	next := model.ProcessSnapshot{
		3000: {PID: 11, Port: 3000, Command: "node"},
		5173: {PID: 30, Port: 5173, Command: "vite"},
	}

	assert.Equal(t, next, Apply(prev, Diff(prev, next)))
}

// TestApply_IdentityGuard verifies that a Removed entry does not delete a
// different process that has since taken the port.
func TestApply_IdentityGuard(t *testing.T) {
	base := model.ProcessSnapshot{3000: {PID: 99, Port: 3000, Command: "deno"}}
	diff := model.SnapshotDiff{Removed: []model.ProcessInfo{{PID: 10, Port: 3000, Command: "node"}}}

	result := Apply(base, diff)

	require.Len(t, result, 1)
	assert.Equal(t, 99, result[3000].PID, "stale removal must not evict the new occupant")
}

// TestMerge_CancelsOppositeObservations verifies the net-change rule: an
// identity added and then removed within the window (or the reverse)
// disappears from the merged diff.
func TestMerge_CancelsOppositeObservations(t *testing.T) {
	flaky := model.ProcessInfo{PID: 10, Port: 3000, Command: "node"}

	addedThenRemoved := Merge(
		model.SnapshotDiff{Added: []model.ProcessInfo{flaky}},
		model.SnapshotDiff{Removed: []model.ProcessInfo{flaky}},
	)
	assert.True(t, addedThenRemoved.Empty(), "add then remove nets to nothing")

	removedThenAdded := Merge(
		model.SnapshotDiff{Removed: []model.ProcessInfo{flaky}},
		model.SnapshotDiff{Added: []model.ProcessInfo{flaky}},
	)
	assert.True(t, removedThenAdded.Empty(), "remove then add nets to nothing")
}

// TestMerge_Accumulates verifies that independent observations from
// successive diffs accumulate in port order.
func TestMerge_Accumulates(t *testing.T) {
	first := model.SnapshotDiff{
		Added:   []model.ProcessInfo{{PID: 1, Port: 8080}},
		Removed: []model.ProcessInfo{{PID: 2, Port: 5173}},
	}
	second := model.SnapshotDiff{
		Added:          []model.ProcessInfo{{PID: 3, Port: 3000}},
		UnchangedCount: 4,
	}

	merged := Merge(first, second)

	require.Len(t, merged.Added, 2)
	assert.Equal(t, 3000, merged.Added[0].Port)
	assert.Equal(t, 8080, merged.Added[1].Port)
	require.Len(t, merged.Removed, 1)
	assert.Equal(t, 5173, merged.Removed[0].Port)
	assert.Equal(t, 4, merged.UnchangedCount, "unchanged count reflects the latest cycle")
}

// TestMerge_MatchesEndToEndDiff verifies that folding a sequence of
// consecutive diffs equals diffing the first baseline against the final
// snapshot — the property the consolidation window relies on.
func TestMerge_MatchesEndToEndDiff(t *testing.T) {
	s0 := model.ProcessSnapshot{3000: {PID: 10, Port: 3000}}
	s1 := model.ProcessSnapshot{
		3000: {PID: 10, Port: 3000},
		8080: {PID: 20, Port: 8080},
	}
	s2 := model.ProcessSnapshot{8080: {PID: 20, Port: 8080}}
	s3 := model.ProcessSnapshot{
		8080: {PID: 20, Port: 8080},
		5173: {PID: 30, Port: 5173},
	}

	folded := Merge(Merge(Diff(s0, s1), Diff(s1, s2)), Diff(s2, s3))
	direct := Diff(s0, s3)

	assert.Equal(t, direct.Added, folded.Added)
	assert.Equal(t, direct.Removed, folded.Removed)
}
