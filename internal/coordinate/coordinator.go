// Package coordinate implements the update coordinator: the single actor
// that decides when and how observed state changes reach presentation
// layers.
//
// The coordinator decouples raw per-cycle diffs from how often subscribers
// are disturbed, while guaranteeing no change is ever permanently lost.
// While no suppression window is active, every non-empty diff is forwarded
// immediately and unconditionally — there is deliberately no startup delay
// and no batching in the steady state. A kill acknowledgment opens a
// bounded suppression window; diffs observed inside it are merged into one
// pending net diff, emitted as a single consolidated update when the
// window closes — or not at all, when the net effect is empty.
//
// All coordinator state lives in one goroutine consuming one ordered event
// queue (scan results, kill acknowledgments, snapshot queries). Producers
// never share state with the actor; single-writer discipline is structural,
// not lock-based.
package coordinate

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwarden/internal/model"
	"github.com/shinji-kodama/portwarden/internal/monitor"
)

// Update is what subscribers receive: the authoritative snapshot at emit
// time plus the diff that motivated the emission. Consolidated marks
// updates that merged multiple suppressed cycles.
type Update struct {
	Snapshot     model.ProcessSnapshot
	Diff         model.SnapshotDiff
	Consolidated bool
}

// event is the coordinator's input alphabet. Ordering is FIFO per
// producer, which is all the no-loss guarantee needs.
type event interface{}

type scanEvent struct {
	snapshot model.ProcessSnapshot
	diff     model.SnapshotDiff
}

type ackEvent struct {
	outcomes []model.KillOutcome
}

type queryEvent struct {
	reply chan model.ProcessSnapshot
}

// Coordinator owns the last-emitted snapshot, the pending diff, and the
// suppression window. Construct with New, start with Run, feed through
// PushScan / AcknowledgeKill, observe through Subscribe / Snapshot.
type Coordinator struct {
	window time.Duration
	events chan event
	quit   chan struct{}
	log    *logrus.Entry

	subMu     sync.Mutex
	subs      []chan Update
	subClosed bool

	// Actor-owned state. Touched only inside Run's goroutine.
	current     model.ProcessSnapshot
	lastEmitted model.ProcessSnapshot
	lastEmit    time.Time
	pending     model.SnapshotDiff
	suppressed  bool
}

// eventQueueDepth bounds the input queue. Producers are a 2s-tick monitor
// and occasional kill acks, so the queue only ever holds a handful of
// events; the buffer exists to decouple producers from emit latency.
const eventQueueDepth = 64

// New creates a Coordinator with the given suppression-window duration.
// The window should match one monitor interval: long enough for the OS to
// reflect a termination in the next scan, short enough that the user is
// not left staring at stale state.
func New(window time.Duration) *Coordinator {
	return &Coordinator{
		window:      window,
		events:      make(chan event, eventQueueDepth),
		quit:        make(chan struct{}),
		current:     make(model.ProcessSnapshot),
		lastEmitted: make(model.ProcessSnapshot),
		log:         logrus.WithField("component", "coordinator"),
	}
}

// Subscribe registers a new update stream with the given channel buffer.
// Delivery is blocking — updates are batched by suppression, never
// silently dropped — so subscribers must drain their channel promptly.
// The channel is closed when the coordinator shuts down.
func (c *Coordinator) Subscribe(buffer int) <-chan Update {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	ch := make(chan Update, buffer)
	if c.subClosed {
		close(ch)
		return ch
	}
	c.subs = append(c.subs, ch)
	return ch
}

// PushScan feeds one completed scan cycle into the event queue. It
// implements monitor.ScanSink. After shutdown the event is discarded.
func (c *Coordinator) PushScan(snapshot model.ProcessSnapshot, diff model.SnapshotDiff) {
	c.push(scanEvent{snapshot: snapshot, diff: diff})
}

// AcknowledgeKill feeds a termination-engine acknowledgment into the
// event queue. It activates (or extends) the suppression window; it never
// injects a synthetic diff — the next real scan is the source of truth
// for what actually died.
func (c *Coordinator) AcknowledgeKill(outcomes []model.KillOutcome) {
	c.push(ackEvent{outcomes: outcomes})
}

// Snapshot returns the current authoritative snapshot, for presentation
// layers that need state on demand independent of the update stream.
// Returns an empty snapshot if the coordinator has shut down or ctx is
// cancelled before the query is served.
func (c *Coordinator) Snapshot(ctx context.Context) model.ProcessSnapshot {
	reply := make(chan model.ProcessSnapshot, 1)
	select {
	case c.events <- queryEvent{reply: reply}:
	case <-c.quit:
		return make(model.ProcessSnapshot)
	case <-ctx.Done():
		return make(model.ProcessSnapshot)
	}
	select {
	case snapshot := <-reply:
		return snapshot
	case <-c.quit:
		return make(model.ProcessSnapshot)
	case <-ctx.Done():
		return make(model.ProcessSnapshot)
	}
}

// push enqueues an event unless the coordinator has shut down.
func (c *Coordinator) push(e event) {
	select {
	case c.events <- e:
	case <-c.quit:
	}
}

// Run executes the coordinator loop until ctx is cancelled. It must be
// called exactly once. On return all subscriber channels are closed.
func (c *Coordinator) Run(ctx context.Context) {
	defer c.shutdown()

	// The suppression timer lives entirely inside this goroutine. It is
	// created stopped and armed only by kill acknowledgments.
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case e := <-c.events:
			switch ev := e.(type) {
			case scanEvent:
				c.handleScan(ev)
			case ackEvent:
				c.handleAck(ev, timer)
			case queryEvent:
				ev.reply <- c.current.Clone()
			}
		case <-timer.C:
			c.closeWindow()
		case <-ctx.Done():
			return
		}
	}
}

// handleScan applies the forwarding policy to one monitor cycle: forward a
// non-empty diff immediately when unsuppressed, accumulate it into the
// pending net diff when suppressed, and ignore empty diffs either way
// (an empty diff is not a change and must never be presented as one).
func (c *Coordinator) handleScan(ev scanEvent) {
	c.current = ev.snapshot

	if c.suppressed {
		if !ev.diff.Empty() {
			c.pending = monitor.Merge(c.pending, ev.diff)
		}
		return
	}
	if ev.diff.Empty() {
		return
	}
	c.emit(Update{Snapshot: ev.snapshot, Diff: ev.diff})
}

// handleAck opens the suppression window, or extends it when a window is
// already active (a second kill resets the clock — the OS is still
// churning). The acknowledgment itself carries no state change.
func (c *Coordinator) handleAck(ev ackEvent, timer *time.Timer) {
	c.log.WithField("outcomes", len(ev.outcomes)).
		Debug("kill acknowledged, opening suppression window")

	if c.suppressed && !timer.Stop() {
		// Drain a timer that fired between the ack arriving and us
		// stopping it, so Reset arms cleanly.
		select {
		case <-timer.C:
		default:
		}
	}
	c.suppressed = true
	timer.Reset(c.window)
}

// closeWindow ends suppression and emits at most one consolidated update:
// exactly one when the accumulated net diff is non-empty, zero when the
// suppressed cycles cancelled out (e.g., a killed process respawned
// before the window closed).
func (c *Coordinator) closeWindow() {
	c.suppressed = false
	net := c.pending
	c.pending = model.SnapshotDiff{}

	if net.Empty() {
		c.log.Debug("suppression window closed with no net change")
		return
	}
	c.emit(Update{Snapshot: c.current, Diff: net, Consolidated: true})
}

// emit delivers an update to every subscriber and records the snapshot as
// the last state the presentation layer has seen.
func (c *Coordinator) emit(update Update) {
	c.lastEmitted = update.Snapshot
	c.lastEmit = time.Now()

	c.subMu.Lock()
	subs := make([]chan Update, len(c.subs))
	copy(subs, c.subs)
	c.subMu.Unlock()

	for _, ch := range subs {
		ch <- update
	}
	c.log.WithField("diff", update.Diff.String()).
		WithField("consolidated", update.Consolidated).
		Debug("update emitted")
}

// shutdown closes all subscriber channels and marks the coordinator dead
// so producers stop enqueueing.
func (c *Coordinator) shutdown() {
	close(c.quit)

	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subClosed = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.log.Info("coordinator stopped")
}
