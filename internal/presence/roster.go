package presence

import (
	"sync"
	"time"

	"bouncehub/internal/identity"
)

// graceWindow is how long a dropped identity's live record survives. A
// reconnect inside the window is treated as a refresh, not a new join.
const graceWindow = 5 * time.Minute

// liveRecord is one identity's live state within an event. It exists from
// first join until explicit leave or grace expiry, surviving transport drops
// so network blips don't look like departures.
type liveRecord struct {
	id            string
	displayName   string
	authenticated bool
	lat, lng      float64
	hasLocation   bool
	sharing       bool
	conns         int
	droppedAt     time.Time
}

func (r *liveRecord) expired(now time.Time) bool {
	return r.conns == 0 && !r.droppedAt.IsZero() && now.Sub(r.droppedAt) > graceWindow
}

// LiveAttendee is a read-only view of one sharing attendee, used for the
// join snapshot when the durable store is unavailable.
type LiveAttendee struct {
	ID          string
	DisplayName string
	Latitude    float64
	Longitude   float64
}

// Rosters tracks live records for every event on this instance. The
// first-join-vs-reconnect decision happens atomically under its lock, so two
// near-simultaneous reconnects from one identity produce exactly one join.
type Rosters struct {
	mu     sync.Mutex
	events map[string]map[string]*liveRecord
}

// NewRosters creates an empty roster set.
func NewRosters() *Rosters {
	return &Rosters{events: make(map[string]map[string]*liveRecord)}
}

// Join registers a connection for an identity and reports whether this is the
// identity's first join (as opposed to a reconnect within the grace window).
func (rs *Rosters) Join(eventID string, who identity.Identity) (first bool) {
	now := time.Now()
	rs.mu.Lock()
	defer rs.mu.Unlock()

	records := rs.events[eventID]
	if records == nil {
		records = make(map[string]*liveRecord)
		rs.events[eventID] = records
	}

	rec := records[who.ID]
	if rec == nil || rec.expired(now) {
		records[who.ID] = &liveRecord{
			id:            who.ID,
			displayName:   who.DisplayName,
			authenticated: who.Authenticated,
			conns:         1,
		}
		return true
	}
	rec.conns++
	rec.displayName = who.DisplayName
	rec.droppedAt = time.Time{}
	return false
}

// Drop records a transport closing without an explicit leave and reports
// whether the identity is now fully vacated (no connections left). While
// other connections remain the record is untouched: an overlapping reconnect
// must not look like the identity going dark. On the last connection the
// record is retained but its sharing flag is cleared.
func (rs *Rosters) Drop(eventID, id string) (vacated bool) {
	now := time.Now()
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rec := rs.events[eventID][id]
	if rec == nil {
		return false
	}
	rec.conns--
	if rec.conns <= 0 {
		rec.conns = 0
		rec.sharing = false
		rec.droppedAt = now
		vacated = true
	}
	rs.sweepLocked(eventID, now)
	return vacated
}

// Leave removes the identity's record after an intentional leave and reports
// whether there was one to remove. An intentional leave trumps any other
// open transports for the identity; their eventual drops find no record.
func (rs *Rosters) Leave(eventID, id string) (vacated bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	records := rs.events[eventID]
	if _, ok := records[id]; !ok {
		return false
	}
	delete(records, id)
	if len(records) == 0 {
		delete(rs.events, eventID)
	}
	return true
}

// UpdateLocation stores new coordinates and marks the identity as sharing.
func (rs *Rosters) UpdateLocation(eventID, id, displayName string, lat, lng float64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rec := rs.events[eventID][id]
	if rec == nil {
		return
	}
	rec.displayName = displayName
	rec.lat, rec.lng = lat, lng
	rec.hasLocation = true
	rec.sharing = true
}

// StopSharing clears the sharing flag without touching the record.
func (rs *Rosters) StopSharing(eventID, id string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rec := rs.events[eventID][id]; rec != nil {
		rec.sharing = false
	}
}

// Snapshot lists currently-sharing attendees for an event.
func (rs *Rosters) Snapshot(eventID string) []LiveAttendee {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var out []LiveAttendee
	for _, rec := range rs.events[eventID] {
		if rec.sharing && rec.hasLocation {
			out = append(out, LiveAttendee{
				ID:          rec.id,
				DisplayName: rec.displayName,
				Latitude:    rec.lat,
				Longitude:   rec.lng,
			})
		}
	}
	return out
}

// sweepLocked prunes grace-expired records. Caller holds rs.mu.
func (rs *Rosters) sweepLocked(eventID string, now time.Time) {
	records := rs.events[eventID]
	for id, rec := range records {
		if rec.expired(now) {
			delete(records, id)
		}
	}
	if len(records) == 0 {
		delete(rs.events, eventID)
	}
}
