// Package terminate implements the termination engine: escalating kill
// strategies across process and container targets.
//
// Process targets follow the platform strategy selected once at startup —
// POSIX systems escalate SIGTERM → bounded grace period → SIGKILL, while
// Windows issues a single forceful taskkill, since no graceful/forceful
// distinction exists at this layer. Container targets escalate a graceful
// Docker stop into a forced removal when the stop does not converge.
//
// Every target's outcome is independent: a bulk request processes all
// targets and reports one KillOutcome each, partial failures never abort
// the remainder. The engine's only sanctioned side effect is OS-level
// process/container state change; the next monitor scan observes it.
package terminate
