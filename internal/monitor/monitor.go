// monitor.go implements the periodic scan loop.
package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwarden/internal/config"
	"github.com/shinji-kodama/portwarden/internal/model"
	"github.com/shinji-kodama/portwarden/internal/probe"
)

// ScanSink receives the result of every completed scan cycle, including
// cycles with an empty diff — deciding whether anything is forwarded
// further is the coordinator's job, not the monitor's.
type ScanSink interface {
	PushScan(snapshot model.ProcessSnapshot, diff model.SnapshotDiff)
}

// Monitor owns the scan cadence and the baseline snapshot used for
// diffing. It is single-threaded: Run processes cycles to completion, so
// the baseline is never touched by two cycles at once.
type Monitor struct {
	builder  *probe.Builder
	cfg      config.WatchConfig
	sink     ScanSink
	baseline model.ProcessSnapshot
	log      *logrus.Entry
}

// New creates a Monitor. The config must already be validated.
func New(builder *probe.Builder, cfg config.WatchConfig, sink ScanSink) *Monitor {
	return &Monitor{
		builder:  builder,
		cfg:      cfg,
		sink:     sink,
		baseline: make(model.ProcessSnapshot),
		log:      logrus.WithField("component", "monitor"),
	}
}

// Run executes the scan loop until ctx is cancelled. The first scan runs
// immediately so subscribers see initial state without waiting out a full
// interval; subsequent scans follow the configured tick.
//
// Cancellation is observed between cycles only. An in-flight sweep
// finishes (its probes abort promptly because they inherit ctx), the
// result is discarded or delivered as usual, and the loop exits before
// the next tick — a scan is never torn down halfway.
func (m *Monitor) Run(ctx context.Context) {
	m.log.WithField("ports", len(m.cfg.Ports)).
		WithField("interval", m.cfg.ScanInterval).
		Info("starting port monitor")

	m.cycle(ctx)

	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cycle(ctx)
		case <-ctx.Done():
			m.log.Info("port monitor stopped")
			return
		}
	}
}

// cycle performs one Scanning → Diffing transition: build a snapshot,
// diff it against the baseline, retain the new snapshot as baseline, and
// push the pair downstream.
//
// A cycle whose probes all failed simply produces an empty or shrinking
// snapshot; the loop never halts on scan failure, the next tick retries.
func (m *Monitor) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	snapshot := m.builder.Build(ctx, m.cfg.Ports, m.cfg.IgnorePorts, m.cfg.IgnorePatterns)
	diff := Diff(m.baseline, snapshot)
	m.baseline = snapshot

	m.log.WithField("tracked", len(snapshot)).
		WithField("diff", diff.String()).
		WithField("elapsed", time.Since(started).Round(time.Millisecond)).
		Debug("scan cycle complete")

	m.sink.PushScan(snapshot, diff)
}
