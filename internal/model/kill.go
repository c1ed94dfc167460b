// kill.go defines the termination-side domain types: KillRequest (what the
// presentation layer asks for) and KillOutcome (what the termination engine
// reports back, per target).
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// KillTargetKind identifies what a KillRequest is aimed at: one process,
// every currently tracked process, or a Docker container.
type KillTargetKind string

const (
	// TargetSinglePID targets one process by its PID.
	TargetSinglePID KillTargetKind = "single-pid"

	// TargetAllTracked targets every process in the current snapshot.
	TargetAllTracked KillTargetKind = "all-tracked"

	// TargetContainer targets a Docker container by its ID.
	TargetContainer KillTargetKind = "container"
)

// String returns the string representation of KillTargetKind.
func (k KillTargetKind) String() string {
	return string(k)
}

// IsValid checks whether the KillTargetKind value is one of the
// predefined valid kinds.
func (k KillTargetKind) IsValid() bool {
	switch k {
	case TargetSinglePID, TargetAllTracked, TargetContainer:
		return true
	default:
		return false
	}
}

// KillRequest is a user command to terminate one or more targets.
// It is created by a presentation layer and consumed exactly once by the
// termination engine.
//
// ID is a generated UUID. Presentation layers use it as the stable key
// mapping a request back to whatever native handle (menu item, console
// line) initiated it — the core never emits toolkit-specific identifiers.
type KillRequest struct {
	// ID uniquely identifies this request.
	ID string `json:"id"`

	// Kind selects the target type. Exactly one of PID / ContainerID is
	// meaningful depending on Kind; both are ignored for TargetAllTracked.
	Kind KillTargetKind `json:"kind"`

	// PID is the target process ID when Kind is TargetSinglePID.
	PID int `json:"pid,omitempty"`

	// ContainerID is the target container when Kind is TargetContainer.
	ContainerID string `json:"containerId,omitempty"`
}

// NewSinglePIDRequest creates a KillRequest targeting one process.
func NewSinglePIDRequest(pid int) KillRequest {
	return KillRequest{ID: uuid.NewString(), Kind: TargetSinglePID, PID: pid}
}

// NewAllTrackedRequest creates a KillRequest targeting every process in
// the snapshot current at execution time.
func NewAllTrackedRequest() KillRequest {
	return KillRequest{ID: uuid.NewString(), Kind: TargetAllTracked}
}

// NewContainerRequest creates a KillRequest targeting a Docker container.
func NewContainerRequest(containerID string) KillRequest {
	return KillRequest{ID: uuid.NewString(), Kind: TargetContainer, ContainerID: containerID}
}

// Validate checks that the request's fields are consistent with its kind.
func (r KillRequest) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("kill request: invalid target kind %q", r.Kind)
	}
	if r.Kind == TargetSinglePID && r.PID <= 0 {
		return fmt.Errorf("kill request: pid %d out of range", r.PID)
	}
	if r.Kind == TargetContainer && strings.TrimSpace(r.ContainerID) == "" {
		return fmt.Errorf("kill request: container id must not be empty")
	}
	return nil
}

// KillMethod records which termination mechanism actually produced an
// outcome. The distinction matters to users: a process that needed
// signal_kill ignored its graceful shutdown window.
type KillMethod string

const (
	// MethodSignalTerm is a POSIX graceful termination signal (SIGTERM).
	MethodSignalTerm KillMethod = "signal_term"

	// MethodSignalKill is a POSIX forceful kill signal (SIGKILL), used
	// after the grace period expires.
	MethodSignalKill KillMethod = "signal_kill"

	// MethodTaskkill is the Windows forceful terminate (taskkill /F).
	// Windows offers no graceful/forceful distinction at this layer.
	MethodTaskkill KillMethod = "taskkill"

	// MethodDockerStop is a graceful container stop via the Docker API.
	MethodDockerStop KillMethod = "docker_stop"

	// MethodDockerRemove is a forceful container removal via the Docker
	// API, used when a graceful stop does not converge.
	MethodDockerRemove KillMethod = "docker_rm"
)

// String returns the string representation of KillMethod.
func (m KillMethod) String() string {
	return string(m)
}

// KillResult classifies how a termination attempt ended. It is an explicit
// enum rather than a bare boolean so that "already gone" is distinguishable
// from "killed" and from "could not act".
type KillResult string

const (
	// ResultKilled means the target was alive and this engine terminated it.
	ResultKilled KillResult = "killed"

	// ResultVanished means the target no longer existed when (or shortly
	// after) the engine acted. The desired end state — port free — is
	// achieved, so this counts as success, but presentation layers may
	// render it differently from an actual kill.
	ResultVanished KillResult = "vanished"

	// ResultPermissionDenied means the OS or Docker refused the operation.
	// The port is still occupied; this is a genuine failure to act and is
	// not retried automatically.
	ResultPermissionDenied KillResult = "permission_denied"

	// ResultFailed covers every other failure (target survived all
	// escalation steps, tool invocation error, ...).
	ResultFailed KillResult = "failed"
)

// String returns the string representation of KillResult.
func (r KillResult) String() string {
	return string(r)
}

// Success reports whether the result achieved the termination intent.
// Killed and vanished both qualify: in either case the port is free.
func (r KillResult) Success() bool {
	return r == ResultKilled || r == ResultVanished
}

// KillOutcome reports the result of one target within a KillRequest.
// A bulk request produces one outcome per target; a partial failure never
// suppresses the remaining outcomes.
type KillOutcome struct {
	// RequestID is the ID of the KillRequest this outcome belongs to.
	RequestID string `json:"requestId"`

	// Kind mirrors the effective target type of this outcome. Outcomes of
	// an all-tracked request carry TargetSinglePID, one per process.
	Kind KillTargetKind `json:"kind"`

	// PID is the process this outcome concerns, when applicable.
	PID int `json:"pid,omitempty"`

	// Port is the watched port the process occupied, when known.
	Port int `json:"port,omitempty"`

	// ContainerID is the container this outcome concerns, when applicable.
	ContainerID string `json:"containerId,omitempty"`

	// Result classifies the outcome.
	Result KillResult `json:"result"`

	// Method is the mechanism that produced the final state, i.e. the last
	// escalation step attempted.
	Method KillMethod `json:"method"`

	// Error is a human-readable reason when Result is not a success.
	// Presentation layers show this verbatim; raw low-level errors never
	// cross this boundary.
	Error string `json:"error,omitempty"`
}

// Succeeded reports whether this outcome achieved the termination intent.
func (o KillOutcome) Succeeded() bool {
	return o.Result.Success()
}

// String returns a human-readable one-line description of the outcome.
func (o KillOutcome) String() string {
	target := fmt.Sprintf("PID %d", o.PID)
	if o.Kind == TargetContainer {
		target = fmt.Sprintf("container %s", shortID(o.ContainerID))
	}
	if o.Port != 0 {
		target += fmt.Sprintf(" (port %d)", o.Port)
	}
	if o.Error != "" {
		return fmt.Sprintf("%s: %s via %s: %s", target, o.Result, o.Method, o.Error)
	}
	return fmt.Sprintf("%s: %s via %s", target, o.Result, o.Method)
}

// shortID truncates a Docker container ID to the conventional 12-character
// display form.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
