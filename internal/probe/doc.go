// Package probe implements port-to-process discovery: the one-shot port
// prober and the snapshot builder that runs it over the configured watch
// set.
//
// The prober answers "which processes are listening on TCP port N right
// now" within a bounded timeout. It has a cheap fast path — if the port
// can be bound, nothing is listening and the socket table is never
// consulted — and a slow path that reads the kernel's socket table and
// resolves PIDs to command names, optionally attributing processes to
// Docker containers.
//
// The builder probes the effective watch set concurrently (probes are
// independent and read-only), assembles results in deterministic ascending
// port order, and applies ignore-pattern filtering after probing so that
// pattern changes take effect on the very next cycle.
package probe
