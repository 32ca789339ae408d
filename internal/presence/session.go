package presence

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"bouncehub/internal/commentary"
	"bouncehub/internal/event"
	"bouncehub/internal/hub"
	"bouncehub/internal/identity"
	"bouncehub/internal/location"
	"bouncehub/internal/notify"
)

// ErrSessionClosed is returned once a session has left or dropped; the
// transport should close the connection on seeing it.
var ErrSessionClosed = errors.New("presence: session closed")

// State is a session's lifecycle stage.
type State int

const (
	StateConnecting State = iota
	StateActive
	StateLeft
	StateDropped
)

// Deps carries the collaborators a session needs.
type Deps struct {
	Log       *slog.Logger
	Hub       *hub.Hub
	Engines   *commentary.Registry
	Rosters   *Rosters
	Locations location.Store
	Directory event.Directory
	Notifier  notify.Notifier
}

// Session is one attendee connection bound to one event. It owns the
// presence protocol for that connection: the join handshake, inbound message
// dispatch, and the two teardown paths (intentional leave and silent drop).
type Session struct {
	deps   Deps
	evt    event.Event
	who    identity.Identity
	conn   hub.Conn
	log    *slog.Logger
	engine *commentary.Engine

	mu    sync.Mutex
	state State
}

// NewSession builds a session in the connecting state. Start completes the
// handshake.
func NewSession(deps Deps, evt event.Event, who identity.Identity, conn hub.Conn) *Session {
	return &Session{
		deps:  deps,
		evt:   evt,
		who:   who,
		conn:  conn,
		log:   deps.Log.With("event_id", evt.ID, "attendee_id", who.ID),
		state: StateConnecting,
	}
}

// Start runs the join handshake: claim a roster slot, register with the hub,
// send the snapshot and chat history, and announce a first join. Reconnects
// inside the grace window skip the announcement.
func (s *Session) Start(ctx context.Context) {
	s.engine = s.deps.Engines.Acquire(venueFor(s.evt))
	first := s.deps.Rosters.Join(s.evt.ID, s.who)

	s.deps.Hub.Register(s.conn, hub.EventKey(s.evt.ID))
	if s.who.Authenticated {
		s.deps.Hub.Register(s.conn, hub.UserKey(s.who.ID))
	}

	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()
	sessionsActive.Inc()

	s.sendSnapshot(ctx)
	s.sendHistory()

	s.engine.Admit(s.who.ID, s.who.DisplayName, first)
	if first {
		joinsTotal.Inc()
		s.broadcastToEvent(ctx, noticeMessage{
			Type:        typeGuestJoined,
			EventID:     s.evt.ID,
			ID:          s.who.ID,
			DisplayName: s.who.DisplayName,
		})
		s.notifyHost(ctx)
	} else {
		reconnectsTotal.Inc()
	}
}

// Handle processes one inbound frame. Malformed and unknown payloads are
// ignored; a guest_leave returns ErrSessionClosed after teardown.
func (s *Session) Handle(ctx context.Context, raw []byte) error {
	s.mu.Lock()
	active := s.state == StateActive
	s.mu.Unlock()
	if !active {
		return ErrSessionClosed
	}

	if strings.TrimSpace(string(raw)) == pingProbe {
		if err := s.conn.Send([]byte(pongReply)); err != nil {
			return ErrSessionClosed
		}
		return nil
	}

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.log.Debug("discarding malformed frame", "error", err)
		return nil
	}

	switch msg.Type {
	case msgGuestLocation:
		s.handleLocation(ctx, msg)
	case msgGuestStopSharing:
		s.handleStopSharing(ctx)
	case msgChatMessage:
		s.handleChat(ctx, msg.Text)
	case msgGuestLeave:
		s.Leave(ctx)
		return ErrSessionClosed
	default:
		// Unknown types pass silently so old servers tolerate new clients.
	}
	return nil
}

// Leave is the intentional exit: the roster record is removed, durable
// location deleted, and a guest_left announced. Only the connection that
// actually removes the record announces; siblings of an already-left
// identity tear down quietly.
func (s *Session) Leave(ctx context.Context) {
	if !s.transition(StateLeft) {
		return
	}

	if s.deps.Rosters.Leave(s.evt.ID, s.who.ID) {
		if err := s.deps.Locations.Delete(ctx, s.evt.ID, s.who.ID); err != nil {
			s.log.Warn("deleting location record", "error", err)
		}

		out := noticeMessage{
			Type:        typeGuestLeft,
			EventID:     s.evt.ID,
			ID:          s.who.ID,
			DisplayName: s.who.DisplayName,
		}
		s.broadcastToEvent(ctx, out)
		s.fanOutToParticipants(ctx, out)

		s.engine.Depart(s.who.ID, s.who.DisplayName)
	}
	s.teardown()
}

// Drop is the silent exit when a transport closes without guest_leave. The
// identity-level effects (stopped notice, cleared sharing, vacated
// commentary slot) apply only when this was the identity's last connection;
// a stale transport dying under an overlapping reconnect must not disturb
// the live session.
func (s *Session) Drop(ctx context.Context) {
	if !s.transition(StateDropped) {
		return
	}

	if s.deps.Rosters.Drop(s.evt.ID, s.who.ID) {
		if err := s.deps.Locations.SetSharing(ctx, s.evt.ID, s.who.ID, false); err != nil {
			s.log.Warn("clearing sharing flag", "error", err)
		}

		out := noticeMessage{
			Type:        typeLocationStopped,
			EventID:     s.evt.ID,
			ID:          s.who.ID,
			DisplayName: s.who.DisplayName,
		}
		s.broadcastToEvent(ctx, out)
		s.fanOutToParticipants(ctx, out)

		s.engine.Vacate(s.who.ID)
	}
	s.teardown()
}

// transition moves active -> next exactly once.
func (s *Session) transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return false
	}
	s.state = next
	return true
}

func (s *Session) teardown() {
	s.deps.Hub.Unregister(s.conn, hub.EventKey(s.evt.ID))
	if s.who.Authenticated {
		s.deps.Hub.Unregister(s.conn, hub.UserKey(s.who.ID))
	}
	s.deps.Engines.Release(s.evt.ID)
	sessionsActive.Dec()
}

func (s *Session) handleLocation(ctx context.Context, msg inboundMessage) {
	if msg.Latitude == nil || msg.Longitude == nil {
		return
	}
	lat, lng := *msg.Latitude, *msg.Longitude

	s.deps.Rosters.UpdateLocation(s.evt.ID, s.who.ID, s.who.DisplayName, lat, lng)
	err := s.deps.Locations.Upsert(ctx, location.Record{
		EventID:     s.evt.ID,
		AttendeeID:  s.who.ID,
		DisplayName: s.who.DisplayName,
		Latitude:    lat,
		Longitude:   lng,
		Sharing:     true,
		UpdatedAt:   time.Now(),
	})
	if err != nil {
		s.log.Warn("persisting location", "error", err)
	}

	out := locationSharedMessage{
		Type:        typeLocationShared,
		EventID:     s.evt.ID,
		ID:          s.who.ID,
		DisplayName: s.who.DisplayName,
		Latitude:    lat,
		Longitude:   lng,
	}
	s.broadcastToEvent(ctx, out)
	s.fanOutToParticipants(ctx, out)

	s.engine.ObserveLocation(s.who.ID, s.who.DisplayName, lat, lng)
}

func (s *Session) handleStopSharing(ctx context.Context) {
	s.deps.Rosters.StopSharing(s.evt.ID, s.who.ID)
	if err := s.deps.Locations.SetSharing(ctx, s.evt.ID, s.who.ID, false); err != nil {
		s.log.Warn("clearing sharing flag", "error", err)
	}

	out := noticeMessage{
		Type:        typeLocationStopped,
		EventID:     s.evt.ID,
		ID:          s.who.ID,
		DisplayName: s.who.DisplayName,
	}
	s.broadcastToEvent(ctx, out)
	s.fanOutToParticipants(ctx, out)
}

func (s *Session) handleChat(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxChatLen {
		return
	}

	s.engine.TrackChat(s.who.DisplayName, text)
	chatsTotal.Inc()

	s.broadcastToEvent(ctx, chatMessage{
		Type:            typeChatMessage,
		EventID:         s.evt.ID,
		SenderID:        s.who.ID,
		Sender:          s.who.DisplayName,
		Text:            text,
		IsAuthenticated: s.who.Authenticated,
		Timestamp:       time.Now().Unix(),
	})
}

// sendSnapshot delivers the current sharing attendees to this connection
// only. The durable store is authoritative; the roster covers for it when
// the store is down.
func (s *Session) sendSnapshot(ctx context.Context) {
	var attendees []AttendeeState
	records, err := s.deps.Locations.ListSharing(ctx, s.evt.ID)
	if err != nil {
		s.log.Warn("listing shared locations, falling back to roster", "error", err)
		for _, a := range s.deps.Rosters.Snapshot(s.evt.ID) {
			attendees = append(attendees, AttendeeState(a))
		}
	} else {
		for _, r := range records {
			attendees = append(attendees, AttendeeState{
				ID:          r.AttendeeID,
				DisplayName: r.DisplayName,
				Latitude:    r.Latitude,
				Longitude:   r.Longitude,
			})
		}
	}
	if attendees == nil {
		attendees = []AttendeeState{}
	}
	s.sendJSON(initialStateMessage{Type: typeInitialState, EventID: s.evt.ID, Attendees: attendees})
}

func (s *Session) sendHistory() {
	history := s.engine.History()
	if history == nil {
		history = []commentary.ChatEntry{}
	}
	s.sendJSON(chatHistoryMessage{Type: typeChatHistory, EventID: s.evt.ID, Messages: history})
}

func (s *Session) sendJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encoding outbound message", "error", err)
		return
	}
	if err := s.conn.Send(payload); err != nil {
		s.log.Debug("direct send failed", "error", err)
	}
}

func (s *Session) broadcastToEvent(ctx context.Context, v any) {
	if err := s.deps.Hub.Publish(ctx, hub.EventKey(s.evt.ID), v); err != nil {
		s.log.Warn("publishing to event audience", "error", err)
	}
}

// fanOutToParticipants mirrors a notice onto every participant's personal
// key so app users see event activity outside the event screen.
func (s *Session) fanOutToParticipants(ctx context.Context, v any) {
	ids, err := s.deps.Directory.Participants(ctx, s.evt.ID)
	if err != nil {
		s.log.Warn("listing participants", "error", err)
		return
	}
	for _, id := range ids {
		if err := s.deps.Hub.Publish(ctx, hub.UserKey(id), v); err != nil {
			s.log.Warn("publishing to participant", "user_id", id, "error", err)
		}
	}
}

func (s *Session) notifyHost(ctx context.Context) {
	if s.deps.Notifier == nil || s.evt.HostID == "" || s.evt.HostID == s.who.ID {
		return
	}
	s.deps.Notifier.Notify(ctx, s.evt.HostID, notify.Payload{
		Title: s.who.DisplayName + " joined your event",
		Body:  "They just connected to " + s.evt.VenueName,
		Data: map[string]string{
			"event_id": s.evt.ID,
			"guest_id": s.who.ID,
		},
	})
}

func venueFor(evt event.Event) commentary.Venue {
	return commentary.Venue{
		EventID:   evt.ID,
		Name:      evt.VenueName,
		Address:   evt.VenueAddress,
		Message:   evt.Message,
		HostName:  evt.HostName,
		Latitude:  evt.Latitude,
		Longitude: evt.Longitude,
	}
}
