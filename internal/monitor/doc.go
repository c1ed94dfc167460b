// Package monitor implements the process monitor: a periodic scan loop
// that builds a fresh ProcessSnapshot each tick, diffs it against the
// previous one, and pushes the (snapshot, diff) pair to the update
// coordinator.
//
// The loop cycles Idle → Scanning → Diffing → Idle on a fixed interval.
// Scan failures degrade to an empty diff and the loop retries next tick;
// shutdown is cooperative and only observed between cycles, so a scan is
// never torn down partially.
package monitor
