// prober.go implements the one-shot port prober on top of the gopsutil
// socket-table API, which provides a uniform contract across Linux, macOS,
// and Windows. Platform differences live below gopsutil; this file only
// deals in the portable contract.
package probe

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	gnet "github.com/shirou/gopsutil/net"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwarden/internal/model"
)

// Timeout bounds a single port probe. A probe that exceeds it reports an
// empty result so one unresponsive port cannot stall the whole scan cycle.
const Timeout = 1 * time.Second

// Prober answers which processes are currently listening on a TCP port.
//
// Implementations never block longer than Timeout. On timeout or tool
// failure they return model.ErrProbeTimeout (or another taxonomy error)
// with an empty result; callers treat that as "nothing observed" and
// continue. Permission-denied lookups for processes owned by other users
// are tolerated, not reported as errors.
type Prober interface {
	Probe(ctx context.Context, port int) ([]model.ProcessInfo, error)
}

// ContainerResolver maps a host port to the Docker container publishing
// it, when one exists. A nil resolver disables container attribution.
type ContainerResolver interface {
	// Resolve returns the container ID and name publishing the given host
	// port, or ok=false when no container publishes it.
	Resolve(ctx context.Context, port int) (id, name string, ok bool, err error)
}

// socketTableProber is the production Prober. It combines a bind-probe
// fast path with a gopsutil socket-table scan.
type socketTableProber struct {
	containers ContainerResolver
	log        *logrus.Entry
}

// NewProber creates the platform prober. The resolver may be nil, in which
// case container attribution is skipped entirely.
func NewProber(containers ContainerResolver) Prober {
	return &socketTableProber{
		containers: containers,
		log:        logrus.WithField("component", "prober"),
	}
}

// probeResult carries the slow-path result across the timeout boundary.
type probeResult struct {
	infos []model.ProcessInfo
	err   error
}

// Probe implements Prober.
//
// Fast path first: if the port can be bound, no process is listening and
// the socket table is never read. Binding asks the OS directly and is far
// cheaper than enumerating connections, so quiet ports — the common case
// on a mostly-idle watch set — cost almost nothing per cycle.
//
// The slow path runs in its own goroutine so the bounded timeout holds
// even if the socket-table read itself stalls. On timeout the goroutine
// is abandoned; it holds no resources beyond its stack and exits when the
// read returns.
func (p *socketTableProber) Probe(ctx context.Context, port int) ([]model.ProcessInfo, error) {
	if portBindable(port) {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	ch := make(chan probeResult, 1)
	go func() {
		infos, err := p.lookup(ctx, port)
		ch <- probeResult{infos: infos, err: err}
	}()

	select {
	case res := <-ch:
		return res.infos, res.err
	case <-ctx.Done():
		p.log.WithField("port", port).Warn("port probe timed out")
		return nil, model.ErrProbeTimeout
	}
}

// lookup reads the socket table and assembles ProcessInfo values for every
// listener bound to the given port.
func (p *socketTableProber) lookup(ctx context.Context, port int) ([]model.ProcessInfo, error) {
	conns, err := gnet.Connections("tcp")
	if err != nil {
		return nil, fmt.Errorf("%w: socket table query failed: %v", model.ErrToolUnavailable, err)
	}

	var infos []model.ProcessInfo
	seen := make(map[int]bool)
	for _, conn := range conns {
		if conn.Status != "LISTEN" || int(conn.Laddr.Port) != port {
			continue
		}
		pid := int(conn.Pid)
		// Pid 0 means the kernel withheld the owner (typically a socket
		// belonging to another user on a hardened system). Nothing to
		// report for it.
		if pid == 0 || seen[pid] {
			continue
		}
		seen[pid] = true

		info := model.ProcessInfo{
			PID:     pid,
			Port:    port,
			Command: commandName(pid),
		}
		p.attributeContainer(ctx, &info)
		infos = append(infos, info)
	}

	// Deterministic order so the builder's zero-or-one selection per port
	// is stable across cycles.
	sort.Slice(infos, func(i, j int) bool { return infos[i].PID < infos[j].PID })
	return infos, nil
}

// attributeContainer fills the container fields of info when a resolver is
// configured and a container publishes the port. Resolver failures degrade
// to "no attribution" — container metadata is advisory, never worth
// failing a probe over.
func (p *socketTableProber) attributeContainer(ctx context.Context, info *model.ProcessInfo) {
	if p.containers == nil {
		return
	}
	id, name, ok, err := p.containers.Resolve(ctx, info.Port)
	if err != nil {
		p.log.WithField("port", info.Port).WithError(err).
			Debug("container attribution failed")
		return
	}
	if ok {
		info.ContainerID = id
		info.ContainerName = name
	}
}

// commandName resolves a PID to its short command name. Resolution
// failures (process exited between table read and lookup, or owned by
// another user) yield an empty name rather than an error: the listener
// observation itself is still valid.
func commandName(pid int) string {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return ""
	}
	name, err := proc.Name()
	if err != nil {
		return ""
	}
	return name
}

// portBindable reports whether the port can currently be bound on all
// interfaces. A successful bind means no process is listening there.
//
// We bind ":port" rather than "127.0.0.1:port" because a wildcard bind
// collides with listeners on any interface, including loopback-only
// development servers.
func portBindable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}
