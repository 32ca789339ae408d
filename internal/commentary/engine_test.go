package commentary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGen struct {
	mu      sync.Mutex
	prompts []string
	text    string
	err     error
}

func (g *fakeGen) Generate(_ context.Context, _, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.prompts = append(g.prompts, prompt)
	return g.text, nil
}

func (g *fakeGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *fakeGen) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type fakeOut struct {
	mu      sync.Mutex
	entries []ChatEntry
}

func (o *fakeOut) BroadcastChat(_ context.Context, _ string, entry ChatEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, entry)
	return nil
}

func (o *fakeOut) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

func testVenue() Venue {
	return Venue{EventID: "e1", Name: "The Spot", HostName: "Ada", Latitude: 0, Longitude: 0}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestCooldownSuppresssesBackToBackOutput(t *testing.T) {
	gen := &fakeGen{text: "nice one"}
	out := &fakeOut{}
	eng := newEngine(testLogger(), testVenue(), gen, out, Config{
		Cooldown:    200 * time.Millisecond,
		IdleTimeout: time.Minute,
	})
	eng.start()
	defer eng.stop()

	eng.Admit("g1", "Dana", false)
	eng.TrackChat("Dana", "first")
	eng.TrackChat("Dana", "second")
	eng.TrackChat("Dana", "third")

	waitFor(t, func() bool { return out.count() == 1 })
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, out.count(), "events inside cooldown are dropped, not queued")

	// Past the cooldown a fresh event speaks again.
	time.Sleep(250 * time.Millisecond)
	eng.TrackChat("Dana", "fourth")
	waitFor(t, func() bool { return out.count() == 2 })
}

func TestCommentaryAttributionAndHistory(t *testing.T) {
	gen := &fakeGen{text: "Dana has arrived, fashionably on time"}
	out := &fakeOut{}
	eng := newEngine(testLogger(), testVenue(), gen, out, Config{IdleTimeout: time.Minute})
	eng.start()
	defer eng.stop()

	eng.Admit("g1", "Dana", true)
	waitFor(t, func() bool { return out.count() == 1 })

	out.mu.Lock()
	entry := out.entries[0]
	out.mu.Unlock()
	require.Equal(t, CommentatorName, entry.Sender)
	require.True(t, entry.Commentary)

	history := eng.History()
	require.Len(t, history, 1)
	require.Equal(t, CommentatorName, history[0].Sender)
}

func TestIdleTickNeedsDoubleCooldownOfQuiet(t *testing.T) {
	gen := &fakeGen{text: "quiet out there"}
	out := &fakeOut{}
	eng := newEngine(testLogger(), testVenue(), gen, out, Config{
		Cooldown:    200 * time.Millisecond,
		IdleTimeout: 50 * time.Millisecond,
	})
	eng.start()
	defer eng.stop()

	eng.Admit("g1", "Dana", true)
	waitFor(t, func() bool { return out.count() == 1 })

	// Idle ticks fire every 50ms but are only eligible once the quiet
	// stretch reaches twice the cooldown.
	time.Sleep(250 * time.Millisecond)
	require.Equal(t, 1, out.count(), "idle must stay silent inside the doubled window")

	waitFor(t, func() bool { return out.count() == 2 })
	require.Contains(t, gen.lastPrompt(), "It's been quiet")
}

func TestIdleTickSkippedWithoutAttendees(t *testing.T) {
	gen := &fakeGen{text: "anyone?"}
	out := &fakeOut{}
	eng := newEngine(testLogger(), testVenue(), gen, out, Config{
		Cooldown:    10 * time.Millisecond,
		IdleTimeout: 30 * time.Millisecond,
	})
	eng.start()
	defer eng.stop()

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 0, out.count())
}

func TestArrivalHysteresis(t *testing.T) {
	eng := newEngine(testLogger(), testVenue(), nil, &fakeOut{}, Config{})

	// Roughly 222m out, then 11m out, then 11m again.
	eng.ObserveLocation("g1", "Dana", 0.002, 0)
	require.Empty(t, drain(eng), "moving around far away is not an arrival")

	eng.ObserveLocation("g1", "Dana", 0.0001, 0)
	events := drain(eng)
	require.Len(t, events, 1)
	require.Equal(t, KindLocation, events[0].Kind)
	require.True(t, events[0].Arrived)

	eng.ObserveLocation("g1", "Dana", 0.00012, 0)
	require.Empty(t, drain(eng), "jitter inside the arrived radius must not re-fire")
}

func TestArrivalOnFirstUpdateInsideVenue(t *testing.T) {
	eng := newEngine(testLogger(), testVenue(), nil, &fakeOut{}, Config{})
	eng.ObserveLocation("g1", "Dana", 0.0001, 0)
	events := drain(eng)
	require.Len(t, events, 1)
	require.True(t, events[0].Arrived)
}

func TestQueueOverflowDropsWithoutBlocking(t *testing.T) {
	eng := newEngine(testLogger(), testVenue(), nil, &fakeOut{}, Config{QueueCap: 2})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			eng.TrackChat("Dana", "spam")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push blocked on a full queue")
	}
	require.Len(t, drain(eng), 2)
}

func TestVacateProducesNoLeftEvent(t *testing.T) {
	eng := newEngine(testLogger(), testVenue(), nil, &fakeOut{}, Config{})
	eng.Admit("g1", "Dana", true)
	drain(eng)

	eng.Vacate("g1")
	require.Empty(t, drain(eng))
	require.True(t, eng.Empty())

	eng.Admit("g2", "Eli", true)
	drain(eng)
	eng.Depart("g2", "Eli")
	events := drain(eng)
	require.Len(t, events, 1)
	require.Equal(t, KindLeft, events[0].Kind)
}

func TestGenerationFailureIsSkipped(t *testing.T) {
	gen := &fakeGen{err: errors.New("api down")}
	out := &fakeOut{}
	eng := newEngine(testLogger(), testVenue(), gen, out, Config{
		Cooldown:    10 * time.Millisecond,
		IdleTimeout: time.Minute,
	})
	eng.start()
	defer eng.stop()

	eng.Admit("g1", "Dana", true)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 0, out.count())

	// A failed call does not consume the cooldown; the next event may speak.
	gen.mu.Lock()
	gen.err = nil
	gen.text = "back online"
	gen.mu.Unlock()
	eng.TrackChat("Dana", "hello?")
	waitFor(t, func() bool { return out.count() == 1 })
}

func TestHistoryEvictsOldest(t *testing.T) {
	eng := newEngine(testLogger(), testVenue(), nil, &fakeOut{}, Config{HistoryCap: 3})
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		eng.AddChat("Dana", text, false)
	}
	history := eng.History()
	require.Len(t, history, 3)
	require.Equal(t, "c", history[0].Text)
	require.Equal(t, "e", history[2].Text)
}

func TestStopWaitsForLoop(t *testing.T) {
	block := make(chan struct{})
	gen := &blockingGen{block: block}
	eng := newEngine(testLogger(), testVenue(), gen, &fakeOut{}, Config{IdleTimeout: time.Minute})
	eng.start()

	eng.Admit("g1", "Dana", true)
	waitFor(t, func() bool { return gen.started.Load() })

	stopped := make(chan struct{})
	go func() {
		eng.stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after cancellation")
	}
}

type blockingGen struct {
	block   chan struct{}
	started atomic.Bool
}

func (g *blockingGen) Generate(ctx context.Context, _, _ string) (string, error) {
	g.started.Store(true)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-g.block:
		return "done", nil
	}
}

// drain empties the engine's queue for assertions on unstarted engines.
func drain(eng *Engine) []DomainEvent {
	var out []DomainEvent
	for {
		select {
		case ev := <-eng.queue:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(testLogger(), nil, &fakeOut{}, Config{IdleTimeout: time.Minute})

	eng := r.Acquire(testVenue())
	require.Same(t, eng, r.Acquire(testVenue()))

	eng.Admit("g1", "Dana", false)
	eng.AddChat("Dana", "hello", false)

	// Release while occupied is a no-op.
	r.Release("e1")
	r.Release("e1")
	require.Same(t, eng, r.Acquire(testVenue()))

	eng.Vacate("g1")
	r.Release("e1")

	fresh := r.Acquire(testVenue())
	require.NotSame(t, eng, fresh)
	require.Empty(t, fresh.History(), "a fresh engine starts with empty chat history")
	r.Shutdown()
}

func TestAcquireHoldKeepsEngineAliveThroughDeparture(t *testing.T) {
	r := NewRegistry(testLogger(), nil, &fakeOut{}, Config{IdleTimeout: time.Minute})

	departing := r.Acquire(testVenue())
	departing.Admit("g1", "Dana", false)

	// A joiner acquires before it has admitted anyone.
	joiner := r.Acquire(testVenue())
	require.Same(t, departing, joiner)

	// The departure empties the directory and releases; the joiner's hold
	// must keep the engine from being reaped mid-join.
	departing.Depart("g1", "Dana")
	r.Release("e1")

	select {
	case <-joiner.done:
		t.Fatal("engine was stopped while a join still held it")
	default:
	}
	joiner.Admit("g2", "Eli", false)
	require.Same(t, joiner, r.Acquire(testVenue()))
	r.Release("e1")
	r.Release("e1")
	r.Shutdown()
}
