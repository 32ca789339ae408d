// Package commentary turns a stream of presence events into occasional,
// rate-limited chat messages. One engine runs per occupied event; it owns a
// bounded lossy queue, a rolling chat history, and an attendee directory, and
// never blocks the presence protocol that feeds it.
package commentary

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
)

// CommentatorName is the sender attribution for generated messages.
const CommentatorName = "Bounce AI"

// Kind tags a domain event.
type Kind string

const (
	KindJoined   Kind = "joined"
	KindLeft     Kind = "left"
	KindChat     Kind = "chat"
	KindLocation Kind = "location_update"
	KindIdle     Kind = "idle_tick"
)

// DomainEvent is one input to the engine, carrying only what policy and
// phrasing need.
type DomainEvent struct {
	Kind       Kind
	AttendeeID string
	Name       string
	Sender     string
	Text       string
	Arrived    bool
}

// ChatEntry is one line of an event's rolling chat history. The JSON shape is
// what late joiners receive in the chat_history replay.
type ChatEntry struct {
	Sender     string `json:"sender"`
	Text       string `json:"text"`
	Commentary bool   `json:"is_commentary"`
	Timestamp  int64  `json:"timestamp"`
}

// Generator produces commentary text from a bounded context. A nil Generator
// disables output; the engine still tracks attendees and history.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Broadcaster delivers a generated chat entry to the event's audience.
type Broadcaster interface {
	BroadcastChat(ctx context.Context, eventID string, entry ChatEntry) error
}

// Config tunes one engine. Zero values fall back to defaults.
type Config struct {
	// Cooldown is the minimum interval between generated messages. Events
	// arriving inside the window are dropped, not queued.
	Cooldown time.Duration
	// IdleTimeout is how long the loop waits for an event before considering
	// an idle tick.
	IdleTimeout time.Duration
	// QueueCap bounds the event queue; a full queue drops new events.
	QueueCap int
	// HistoryCap bounds the rolling chat buffer.
	HistoryCap int
	// FarRadius and ArrivedRadius define arrival hysteresis: crossing from
	// beyond FarRadius to within ArrivedRadius counts as arriving.
	FarRadius     float64
	ArrivedRadius float64
}

// DefaultConfig mirrors production tuning.
func DefaultConfig() Config {
	return Config{
		Cooldown:      30 * time.Second,
		IdleTimeout:   120 * time.Second,
		QueueCap:      64,
		HistoryCap:    50,
		FarRadius:     100,
		ArrivedRadius: 50,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.QueueCap <= 0 {
		c.QueueCap = def.QueueCap
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = def.HistoryCap
	}
	if c.FarRadius <= 0 {
		c.FarRadius = def.FarRadius
	}
	if c.ArrivedRadius <= 0 {
		c.ArrivedRadius = def.ArrivedRadius
	}
	return c
}

type attendee struct {
	id          string
	name        string
	lat, lng    float64
	hasLocation bool
	lastSeen    time.Time
}

// Venue is the event metadata the engine phrases commentary around.
type Venue struct {
	EventID   string
	Name      string
	Address   string
	Message   string
	HostName  string
	Latitude  float64
	Longitude float64
}

// Engine is one event's commentator.
type Engine struct {
	log   *slog.Logger
	venue Venue
	gen   Generator
	out   Broadcaster
	cfg   Config

	mu        sync.Mutex
	attendees map[string]*attendee
	history   []ChatEntry
	lastSpoke time.Time

	queue  chan DomainEvent
	cancel context.CancelFunc
	done   chan struct{}
}

func newEngine(log *slog.Logger, venue Venue, gen Generator, out Broadcaster, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		log:       log.With("event_id", venue.EventID),
		venue:     venue,
		gen:       gen,
		out:       out,
		cfg:       cfg,
		attendees: make(map[string]*attendee),
		queue:     make(chan DomainEvent, cfg.QueueCap),
		done:      make(chan struct{}),
	}
}

func (e *Engine) start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.run(ctx)
}

// stop cancels the loop and waits for it to finish, so no in-flight
// generation call outlives the engine.
func (e *Engine) stop() {
	e.cancel()
	<-e.done
}

// Admit records an attendee. announce pushes a joined event; reconnects
// re-admit silently.
func (e *Engine) Admit(id, name string, announce bool) {
	e.mu.Lock()
	e.attendees[id] = &attendee{id: id, name: name, lastSeen: time.Now()}
	e.mu.Unlock()
	if announce {
		e.push(DomainEvent{Kind: KindJoined, AttendeeID: id, Name: name})
	}
}

// Depart removes an attendee after an intentional leave.
func (e *Engine) Depart(id, name string) {
	e.mu.Lock()
	delete(e.attendees, id)
	e.mu.Unlock()
	e.push(DomainEvent{Kind: KindLeft, AttendeeID: id, Name: name})
}

// Vacate removes an attendee slot without a left event. Used on transport
// drops so a network blip never produces departure commentary.
func (e *Engine) Vacate(id string) {
	e.mu.Lock()
	delete(e.attendees, id)
	e.mu.Unlock()
}

// TrackChat appends a human chat line to history and feeds it to policy.
func (e *Engine) TrackChat(sender, text string) {
	e.AddChat(sender, text, false)
	e.push(DomainEvent{Kind: KindChat, Sender: sender, Text: text})
}

// ObserveLocation updates an attendee's position and pushes an arrival event
// when the distance to the venue crosses from beyond FarRadius to within
// ArrivedRadius. The gap between the two thresholds keeps GPS jitter near the
// boundary from re-firing arrivals.
func (e *Engine) ObserveLocation(id, name string, lat, lng float64) {
	e.mu.Lock()
	prevDist := math.MaxFloat64
	if prev, ok := e.attendees[id]; ok && prev.hasLocation {
		prevDist = haversineMeters(prev.lat, prev.lng, e.venue.Latitude, e.venue.Longitude)
	}
	e.attendees[id] = &attendee{id: id, name: name, lat: lat, lng: lng, hasLocation: true, lastSeen: time.Now()}
	newDist := haversineMeters(lat, lng, e.venue.Latitude, e.venue.Longitude)
	e.mu.Unlock()

	if prevDist > e.cfg.FarRadius && newDist <= e.cfg.ArrivedRadius {
		e.push(DomainEvent{Kind: KindLocation, AttendeeID: id, Name: name, Arrived: true})
	}
}

// AddChat appends a line to the rolling history, evicting the oldest past
// capacity, and returns the stored entry.
func (e *Engine) AddChat(sender, text string, commentary bool) ChatEntry {
	entry := ChatEntry{Sender: sender, Text: text, Commentary: commentary, Timestamp: time.Now().Unix()}
	e.mu.Lock()
	e.history = append(e.history, entry)
	if len(e.history) > e.cfg.HistoryCap {
		e.history = e.history[len(e.history)-e.cfg.HistoryCap:]
	}
	e.mu.Unlock()
	return entry
}

// History returns a copy of the rolling chat buffer.
func (e *Engine) History() []ChatEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ChatEntry, len(e.history))
	copy(out, e.history)
	return out
}

// Empty reports whether the attendee directory is empty.
func (e *Engine) Empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.attendees) == 0
}

// push enqueues without blocking; a full queue drops the event. Commentary is
// best-effort and the presence protocol must never stall on it.
func (e *Engine) push(ev DomainEvent) {
	select {
	case e.queue <- ev:
	default:
		eventsDroppedTotal.WithLabelValues("queue_full").Inc()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.queue:
			e.handle(ctx, ev)
		case <-time.After(e.cfg.IdleTimeout):
			if !e.Empty() {
				e.handle(ctx, DomainEvent{Kind: KindIdle})
			}
		}
	}
}

func (e *Engine) handle(ctx context.Context, ev DomainEvent) {
	e.mu.Lock()
	since := time.Since(e.lastSpoke)
	e.mu.Unlock()

	if since < e.cfg.Cooldown {
		eventsDroppedTotal.WithLabelValues("throttled").Inc()
		return
	}
	if !e.shouldComment(ev, since) {
		return
	}
	if e.gen == nil {
		return
	}

	text, err := e.gen.Generate(ctx, e.systemPrompt(), e.eventPrompt(ev))
	if err != nil {
		generationFailuresTotal.Inc()
		e.log.Error("commentary generation failed", "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	e.mu.Lock()
	e.lastSpoke = time.Now()
	e.mu.Unlock()

	entry := e.AddChat(CommentatorName, text, true)
	if err := e.out.BroadcastChat(ctx, e.venue.EventID, entry); err != nil {
		e.log.Warn("commentary broadcast failed", "error", err)
	}
	generatedTotal.Inc()
}

// shouldComment is the reaction policy: joins, leaves, and chat are always
// eligible once past cooldown; idle ticks need a quiet stretch of at least
// twice the cooldown; location updates only count when they are arrivals.
func (e *Engine) shouldComment(ev DomainEvent, since time.Duration) bool {
	switch ev.Kind {
	case KindJoined, KindLeft, KindChat:
		return true
	case KindIdle:
		return since >= 2*e.cfg.Cooldown
	case KindLocation:
		return ev.Arrived
	default:
		return false
	}
}
