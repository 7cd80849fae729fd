package avbranch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avbranch/engine"
	"github.com/xaionaro-go/avbranch/engine/enginetest"
	"github.com/xaionaro-go/observability"
)

type testEntry struct {
	eng      *enginetest.Engine
	sink     engine.Element
	failLink bool

	numAcquired int
	numReleased int
}

var _ EntryPorts = (*testEntry)(nil)

func newTestEntry(ctx context.Context, t *testing.T, eng *enginetest.Engine) *testEntry {
	sink, err := eng.NewElement(ctx, "appsink")
	require.NoError(t, err)
	return &testEntry{eng: eng, sink: sink}
}

func (e *testEntry) acquire(ctx context.Context, template string) (engine.Pad, error) {
	pad, err := e.eng.RequestPad(ctx, e.sink, template)
	if err != nil {
		return nil, err
	}
	e.numAcquired++
	if e.failLink {
		e.eng.FailLinksTo(pad)
	}
	return pad, nil
}

func (e *testEntry) AcquireVideoPad(ctx context.Context) (engine.Pad, error) {
	return e.acquire(ctx, "video_%u")
}

func (e *testEntry) AcquireAudioPad(ctx context.Context) (engine.Pad, error) {
	return e.acquire(ctx, "audio_%u")
}

func (e *testEntry) ReleaseVideoPad(ctx context.Context, pad engine.Pad) error {
	e.numReleased++
	return e.eng.ReleaseRequestPad(ctx, e.sink, pad)
}

func (e *testEntry) ReleaseAudioPad(ctx context.Context, pad engine.Pad) error {
	e.numReleased++
	return e.eng.ReleaseRequestPad(ctx, e.sink, pad)
}

func newTees(
	ctx context.Context,
	t *testing.T,
	eng *enginetest.Engine,
	graph engine.Graph,
	amount int,
) []engine.Element {
	tees := make([]engine.Element, 0, amount)
	for i := 0; i < amount; i++ {
		tee, err := eng.NewElement(ctx, "tee")
		require.NoError(t, err)
		require.NoError(t, eng.AddToGraph(ctx, graph, tee))
		tees = append(tees, tee)
	}
	return tees
}

func newTestBranch(
	ctx context.Context,
	t *testing.T,
	cap Capability,
	hooks Hooks,
) (*Branch, *enginetest.Engine, *testEntry, engine.Graph) {
	eng := enginetest.New()
	graph := eng.NewGraph("recorder")
	entry := newTestEntry(ctx, t, eng)
	return NewBranch(cap, eng, graph, entry, hooks), eng, entry, graph
}

func TestBindCountsConnections(t *testing.T) {
	ctx := context.Background()
	b, eng, entry, graph := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})

	teeVideos := newTees(ctx, t, eng, graph, 2)
	teeAudios := newTees(ctx, t, eng, graph, 1)

	require.NoError(t, b.Bind(ctx, teeVideos, teeAudios))

	require.True(t, b.IsAttached(ctx))
	require.Equal(t, 3, b.ConnectionCount(ctx))
	require.Equal(t, 3, entry.numAcquired)
	require.Equal(t, 3, len(b.teeSrcPads))
	require.Equal(t, 3, len(b.entryPads))
	// tee->queue and queue->entry per connection
	require.Equal(t, 6, eng.NumLinks())
	// 3 tees + 3 queues
	require.Equal(t, 6, eng.NumInGraph(graph))
}

func TestBindTwiceIsNoOp(t *testing.T) {
	ctx := context.Background()
	b, eng, entry, graph := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})

	teeVideos := newTees(ctx, t, eng, graph, 2)
	require.NoError(t, b.Bind(ctx, teeVideos, nil))
	require.Equal(t, 2, b.ConnectionCount(ctx))

	require.NoError(t, b.Bind(ctx, teeVideos, nil))
	require.Equal(t, 2, b.ConnectionCount(ctx))
	require.Equal(t, 2, entry.numAcquired)
}

func TestUnbindDetachedIsNoOp(t *testing.T) {
	ctx := context.Background()
	b, _, _, _ := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})

	require.NoError(t, b.Unbind(ctx))
	require.False(t, b.IsAttached(ctx))
}

func TestCapabilityMismatchIsSkipped(t *testing.T) {
	ctx := context.Background()
	b, eng, entry, graph := newTestBranch(ctx, t, CapabilityVideoOnly, Hooks{})

	teeAudios := newTees(ctx, t, eng, graph, 2)
	require.NoError(t, b.Bind(ctx, nil, teeAudios))

	require.True(t, b.IsAttached(ctx))
	require.Equal(t, 0, b.ConnectionCount(ctx))
	require.Equal(t, 0, entry.numAcquired)
}

func TestUnbindEmptiesEverything(t *testing.T) {
	ctx := context.Background()
	b, eng, entry, graph := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})

	teeVideos := newTees(ctx, t, eng, graph, 2)
	teeAudios := newTees(ctx, t, eng, graph, 1)
	require.NoError(t, b.Bind(ctx, teeVideos, teeAudios))
	require.NoError(t, b.Unbind(ctx))

	require.False(t, b.IsAttached(ctx))
	require.Equal(t, 0, b.ConnectionCount(ctx))
	require.Equal(t, 0, len(b.teeSrcPads))
	require.Equal(t, 0, len(b.entryPads))
	require.Equal(t, 3, entry.numReleased)
	// EOS was injected into every queue so it drains instead of
	// discarding what it already holds
	require.Equal(t, 3, eng.NumEOSSent())
	// the queues are gone, only the tees remain
	require.Equal(t, 3, eng.NumInGraph(graph))
	require.Equal(t, 0, eng.NumRequestPads(entry.sink))
}

func TestBindUnbindRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, eng, _, graph := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})

	teeVideos := newTees(ctx, t, eng, graph, 2)
	teeAudios := newTees(ctx, t, eng, graph, 1)

	require.NoError(t, b.Bind(ctx, teeVideos, teeAudios))
	firstCount := b.ConnectionCount(ctx)

	require.NoError(t, b.Unbind(ctx))
	require.NoError(t, b.Bind(ctx, teeVideos, teeAudios))

	require.Equal(t, firstCount, b.ConnectionCount(ctx))
	require.True(t, b.IsAttached(ctx))
}

func TestUnbindWaitsForAllIdleProbes(t *testing.T) {
	ctx := context.Background()
	b, eng, _, graph := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})

	teeVideos := newTees(ctx, t, eng, graph, 3)
	require.NoError(t, b.Bind(ctx, teeVideos, nil))

	// stagger the moments the tee pads go idle
	lastIdle := time.Duration(0)
	delay := time.Duration(0)
	b.padIndexLocker.Do(ctx, func() {
		for pad := range b.teeSrcPads {
			delay += 30 * time.Millisecond
			eng.SetIdleDelay(pad, delay)
			lastIdle = delay
		}
	})

	started := time.Now()
	require.NoError(t, b.Unbind(ctx))
	elapsed := time.Since(started)

	require.GreaterOrEqual(t, elapsed, lastIdle)
	require.False(t, b.IsAttached(ctx))
	require.Equal(t, 0, b.ConnectionCount(ctx))
}

func TestUnbindCancelledThenRetried(t *testing.T) {
	ctx := context.Background()
	b, eng, _, graph := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})
	eng.DefaultIdleDelay = 300 * time.Millisecond

	teeVideos := newTees(ctx, t, eng, graph, 2)
	require.NoError(t, b.Bind(ctx, teeVideos, nil))

	waitCtx, cancelFn := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancelFn()
	err := b.Unbind(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// an interrupted wait leaves the branch attached, with its
	// bookkeeping intact
	require.True(t, b.IsAttached(ctx))
	require.Equal(t, 2, b.ConnectionCount(ctx))

	eng.DefaultIdleDelay = 0
	require.NoError(t, b.Unbind(ctx))
	require.False(t, b.IsAttached(ctx))
	require.Equal(t, 0, b.ConnectionCount(ctx))
}

func TestPartialBindIsKeptAndReported(t *testing.T) {
	ctx := context.Background()
	b, _, entry, graph := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})
	entry.failLink = true

	eng := entry.eng
	teeVideos := newTees(ctx, t, eng, graph, 1)
	err := b.Bind(ctx, teeVideos, nil)
	require.Error(t, err)

	// the degraded connection stays bound, it is not unwound
	require.True(t, b.IsAttached(ctx))
	require.Equal(t, 1, b.ConnectionCount(ctx))

	require.NoError(t, b.Unbind(ctx))
	require.False(t, b.IsAttached(ctx))
	require.Equal(t, 0, b.ConnectionCount(ctx))
}

func TestHooksAreInvokedInOrder(t *testing.T) {
	ctx := context.Background()
	var events []string
	hooks := Hooks{
		OnBindBegin:   func(context.Context) { events = append(events, "bind_begin") },
		OnBindEnd:     func(context.Context) { events = append(events, "bind_end") },
		OnUnbindBegin: func(context.Context) { events = append(events, "unbind_begin") },
		OnUnbindEnd:   func(context.Context) { events = append(events, "unbind_end") },
	}
	b, eng, _, graph := newTestBranch(ctx, t, CapabilityVideoAudio, hooks)

	teeVideos := newTees(ctx, t, eng, graph, 1)
	require.NoError(t, b.Bind(ctx, teeVideos, nil))
	require.NoError(t, b.Unbind(ctx))

	require.Equal(t, []string{"bind_begin", "bind_end", "unbind_begin", "unbind_end"}, events)
}

func TestAutoBindFlag(t *testing.T) {
	ctx := context.Background()
	b, _, _, _ := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})

	require.True(t, b.IsAutoBind())
	b.SetAutoBind(false)
	require.False(t, b.IsAutoBind())
	require.False(t, b.IsAttached(ctx))
}

func TestBindBlocksUntilUnbindCompletes(t *testing.T) {
	ctx := context.Background()
	b, eng, _, graph := newTestBranch(ctx, t, CapabilityVideoAudio, Hooks{})
	eng.DefaultIdleDelay = 100 * time.Millisecond

	teeVideos := newTees(ctx, t, eng, graph, 2)
	require.NoError(t, b.Bind(ctx, teeVideos, nil))

	unbindDone := make(chan struct{})
	var unbindErr error
	observability.Go(ctx, func(ctx context.Context) {
		defer close(unbindDone)
		unbindErr = b.Unbind(ctx)
	})

	// give the unbind a head start so the rebind has to wait for it
	time.Sleep(10 * time.Millisecond)
	started := time.Now()
	require.NoError(t, b.Bind(ctx, teeVideos, nil))
	elapsed := time.Since(started)

	<-unbindDone
	require.NoError(t, unbindErr)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.True(t, b.IsAttached(ctx))
	require.Equal(t, 2, b.ConnectionCount(ctx))
}
