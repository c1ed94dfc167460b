// Package model defines the domain types and value objects for the
// portwarden core.
//
// This package contains pure data structures with no external dependencies
// beyond request-ID generation. All entities (ProcessInfo, ProcessSnapshot,
// SnapshotDiff, KillRequest, KillOutcome) are transient representations
// reconstructed from the OS socket table and the Docker API at runtime —
// nothing is persisted across restarts.
//
// The package also defines the recoverable error taxonomy (probe timeout,
// permission denied, target vanished, tool unavailable), exit codes
// (ExitCode), and a custom error type (CLIError) that carries exit codes
// for proper OS process exit handling.
package model
