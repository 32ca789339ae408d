package commentary

import (
	"log/slog"
	"sync"
)

// Registry owns the per-event engines. An engine is created on first join to
// an event and torn down when its attendee directory empties; it mirrors live
// occupancy, not the event's durable existence. Sessions hold a reference
// from Acquire to Release so a join that is still setting up can never have
// its engine reaped out from under it by a concurrent departure.
type Registry struct {
	log *slog.Logger
	gen Generator
	out Broadcaster
	cfg Config

	mu      sync.Mutex
	engines map[string]*Engine
	holds   map[string]int
}

// NewRegistry constructs the registry. gen may be nil to run with commentary
// output disabled.
func NewRegistry(log *slog.Logger, gen Generator, out Broadcaster, cfg Config) *Registry {
	return &Registry{
		log:     log,
		gen:     gen,
		out:     out,
		cfg:     cfg,
		engines: make(map[string]*Engine),
		holds:   make(map[string]int),
	}
}

// Acquire returns the event's engine, starting a fresh one if none runs, and
// records the caller's hold on it. Every Acquire must be paired with exactly
// one Release.
func (r *Registry) Acquire(venue Venue) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, ok := r.engines[venue.EventID]
	if !ok {
		eng = newEngine(r.log, venue, r.gen, r.out, r.cfg)
		eng.start()
		r.engines[venue.EventID] = eng
		enginesActive.Inc()
	}
	r.holds[venue.EventID]++
	return eng
}

// Release drops one hold. The engine is torn down only once no holds remain
// and its attendee directory is empty.
func (r *Registry) Release(eventID string) {
	r.mu.Lock()
	if r.holds[eventID] > 0 {
		r.holds[eventID]--
	}
	eng, ok := r.engines[eventID]
	if !ok || r.holds[eventID] > 0 || !eng.Empty() {
		r.mu.Unlock()
		return
	}
	delete(r.engines, eventID)
	delete(r.holds, eventID)
	r.mu.Unlock()

	// Stop outside the lock: it waits for the loop, which may be mid-generation.
	eng.stop()
	enginesActive.Dec()
}

// Shutdown stops every engine. Used on process teardown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.engines))
	for id, eng := range r.engines {
		engines = append(engines, eng)
		delete(r.engines, id)
		delete(r.holds, id)
	}
	r.mu.Unlock()
	for _, eng := range engines {
		eng.stop()
		enginesActive.Dec()
	}
}
