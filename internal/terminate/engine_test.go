package terminate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/portwarden/internal/model"
)

// fakeKiller serves canned per-PID results so engine behavior can be
// tested without sending real signals.
type fakeKiller struct {
	mu      sync.Mutex
	results map[int]error
	killed  []int
}

func (f *fakeKiller) kill(_ context.Context, pid int) (model.KillMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	return model.MethodSignalTerm, f.results[pid]
}

// staticSource serves a fixed snapshot, standing in for the coordinator.
type staticSource struct {
	snapshot model.ProcessSnapshot
}

func (s staticSource) Snapshot(context.Context) model.ProcessSnapshot {
	return s.snapshot
}

// recordingAcks captures acknowledgments for assertions.
type recordingAcks struct {
	mu       sync.Mutex
	received [][]model.KillOutcome
}

func (r *recordingAcks) AcknowledgeKill(outcomes []model.KillOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, outcomes)
}

func (r *recordingAcks) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

// newTestEngine builds an engine with the fake killer wired in place of
// the platform strategy. Container support stays disabled.
func newTestEngine(killer processKiller, snapshot model.ProcessSnapshot, acks AckSink) *Engine {
	return &Engine{
		proc:      killer,
		snapshots: staticSource{snapshot: snapshot},
		acks:      acks,
		log:       logrus.WithField("component", "terminator-test"),
	}
}

// awaitOutcomes receives the outcome set or fails the test on timeout.
func awaitOutcomes(t *testing.T, ch <-chan []model.KillOutcome) []model.KillOutcome {
	t.Helper()
	select {
	case outcomes := <-ch:
		return outcomes
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for kill outcomes")
		return nil
	}
}

// TestEngine_SinglePID verifies a single-PID request produces one outcome
// enriched with the port the process occupies in the snapshot.
func TestEngine_SinglePID(t *testing.T) {
	snapshot := model.ProcessSnapshot{3000: {PID: 10, Port: 3000, Command: "node"}}
	killer := &fakeKiller{results: map[int]error{}}
	engine := newTestEngine(killer, snapshot, nil)

	req := model.NewSinglePIDRequest(10)
	outcomes := awaitOutcomes(t, engine.Submit(context.Background(), req))
	engine.Wait()

	require.Len(t, outcomes, 1)
	assert.Equal(t, req.ID, outcomes[0].RequestID)
	assert.Equal(t, model.ResultKilled, outcomes[0].Result)
	assert.Equal(t, 10, outcomes[0].PID)
	assert.Equal(t, 3000, outcomes[0].Port, "outcome carries the tracked port")
	assert.Equal(t, []int{10}, killer.killed)
}

// TestEngine_SinglePID_Untracked verifies a PID outside the snapshot is
// still a valid target; its outcome simply has no port.
func TestEngine_SinglePID_Untracked(t *testing.T) {
	killer := &fakeKiller{results: map[int]error{}}
	engine := newTestEngine(killer, model.ProcessSnapshot{}, nil)

	outcomes := awaitOutcomes(t, engine.Submit(context.Background(), model.NewSinglePIDRequest(42)))
	engine.Wait()

	require.Len(t, outcomes, 1)
	assert.Equal(t, 42, outcomes[0].PID)
	assert.Zero(t, outcomes[0].Port)
	assert.Equal(t, model.ResultKilled, outcomes[0].Result)
}

// TestEngine_AllTracked_Independence verifies that a bulk request attempts
// every target and one failure never suppresses the remaining outcomes.
// Outcomes come back in ascending port order regardless of completion
// order.
func TestEngine_AllTracked_Independence(t *testing.T) {
	snapshot := model.ProcessSnapshot{
		3000: {PID: 10, Port: 3000, Command: "node"},
		5173: {PID: 20, Port: 5173, Command: "vite"},
		8080: {PID: 30, Port: 8080, Command: "python"},
	}
	killer := &fakeKiller{results: map[int]error{
		10: nil,
		20: model.ErrPermissionDenied,
		30: model.ErrTargetVanished,
	}}
	engine := newTestEngine(killer, snapshot, nil)

	outcomes := awaitOutcomes(t, engine.Submit(context.Background(), model.NewAllTrackedRequest()))
	engine.Wait()

	require.Len(t, outcomes, 3)
	assert.Equal(t, model.ResultKilled, outcomes[0].Result)
	assert.Equal(t, 3000, outcomes[0].Port)
	assert.Equal(t, model.ResultPermissionDenied, outcomes[1].Result)
	assert.Equal(t, "permission denied (owned by another user?)", outcomes[1].Error)
	assert.Equal(t, model.ResultVanished, outcomes[2].Result)
	assert.True(t, outcomes[2].Succeeded(), "vanished target counts as success")

	assert.ElementsMatch(t, []int{10, 20, 30}, killer.killed, "every target must be attempted")
}

// TestEngine_AllTracked_EmptySnapshot verifies a bulk request against an
// empty snapshot completes with zero outcomes rather than erroring.
func TestEngine_AllTracked_EmptySnapshot(t *testing.T) {
	engine := newTestEngine(&fakeKiller{}, model.ProcessSnapshot{}, nil)

	outcomes := awaitOutcomes(t, engine.Submit(context.Background(), model.NewAllTrackedRequest()))
	engine.Wait()

	assert.Empty(t, outcomes)
}

// TestEngine_InvalidRequest verifies a malformed request yields a single
// failed outcome instead of touching any killer.
func TestEngine_InvalidRequest(t *testing.T) {
	killer := &fakeKiller{}
	engine := newTestEngine(killer, model.ProcessSnapshot{}, nil)

	req := model.KillRequest{ID: "r1", Kind: model.TargetSinglePID, PID: -5}
	outcomes := awaitOutcomes(t, engine.Submit(context.Background(), req))
	engine.Wait()

	require.Len(t, outcomes, 1)
	assert.Equal(t, model.ResultFailed, outcomes[0].Result)
	assert.NotEmpty(t, outcomes[0].Error)
	assert.Empty(t, killer.killed, "invalid requests never reach the killer")
}

// TestEngine_ContainerDisabled verifies a container request fails cleanly
// when the engine was built without Docker support.
func TestEngine_ContainerDisabled(t *testing.T) {
	engine := newTestEngine(&fakeKiller{}, model.ProcessSnapshot{}, nil)

	outcomes := awaitOutcomes(t, engine.Submit(context.Background(), model.NewContainerRequest("4f1b")))
	engine.Wait()

	require.Len(t, outcomes, 1)
	assert.Equal(t, model.ResultFailed, outcomes[0].Result)
	assert.Contains(t, outcomes[0].Error, "container support is disabled")
}

// TestEngine_Acknowledges verifies the full outcome set is acknowledged
// exactly once per request, after the results are delivered.
func TestEngine_Acknowledges(t *testing.T) {
	acks := &recordingAcks{}
	snapshot := model.ProcessSnapshot{3000: {PID: 10, Port: 3000}}
	engine := newTestEngine(&fakeKiller{results: map[int]error{}}, snapshot, acks)

	awaitOutcomes(t, engine.Submit(context.Background(), model.NewSinglePIDRequest(10)))
	engine.Wait()

	require.Equal(t, 1, acks.count())
	acks.mu.Lock()
	defer acks.mu.Unlock()
	require.Len(t, acks.received[0], 1)
	assert.Equal(t, model.ResultKilled, acks.received[0][0].Result)
}

// TestEngine_SurvivesCallerCancellation verifies a request keeps running
// after the submitting context is cancelled: a kill, once issued, runs to
// completion.
func TestEngine_SurvivesCallerCancellation(t *testing.T) {
	snapshot := model.ProcessSnapshot{3000: {PID: 10, Port: 3000}}
	engine := newTestEngine(&fakeKiller{results: map[int]error{}}, snapshot, nil)

	ctx, cancel := context.WithCancel(context.Background())
	results := engine.Submit(ctx, model.NewSinglePIDRequest(10))
	cancel()

	outcomes := awaitOutcomes(t, results)
	engine.Wait()

	require.Len(t, outcomes, 1)
	assert.Equal(t, model.ResultKilled, outcomes[0].Result)
}
