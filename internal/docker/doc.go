// Package docker wraps the Docker Engine SDK client for the two concerns
// the portwarden core has with containers: attributing a watched host
// port to the container publishing it, and executing the container half
// of the termination escalation (graceful stop, then forced removal).
//
// The wrapper handles automatic Docker socket detection across platforms
// and daemon connectivity verification. Container support is optional:
// when it is disabled or the daemon is unreachable, the rest of the core
// operates on plain processes only.
package docker
