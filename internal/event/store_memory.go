package event

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-memory Directory for single-instance and test use.
type MemoryDirectory struct {
	mu           sync.RWMutex
	events       map[string]Event
	participants map[string]map[string]struct{} // event id -> user ids
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		events:       make(map[string]Event),
		participants: make(map[string]map[string]struct{}),
	}
}

// Put inserts or replaces an event. The host is always a participant.
func (d *MemoryDirectory) Put(evt Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[evt.ID] = evt
	if d.participants[evt.ID] == nil {
		d.participants[evt.ID] = make(map[string]struct{})
	}
	if evt.HostID != "" {
		d.participants[evt.ID][evt.HostID] = struct{}{}
	}
}

// AddParticipant invites a user to an event.
func (d *MemoryDirectory) AddParticipant(eventID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.participants[eventID] == nil {
		d.participants[eventID] = make(map[string]struct{})
	}
	d.participants[eventID][userID] = struct{}{}
}

func (d *MemoryDirectory) ByID(_ context.Context, id string) (Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	evt, ok := d.events[id]
	if !ok || !evt.Active {
		return Event{}, ErrNotFound
	}
	return evt, nil
}

func (d *MemoryDirectory) ByShareToken(_ context.Context, token string) (Event, error) {
	if token == "" {
		return Event{}, ErrNotFound
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, evt := range d.events {
		if evt.Active && evt.ShareToken == token {
			return evt, nil
		}
	}
	return Event{}, ErrNotFound
}

func (d *MemoryDirectory) EnsureShareToken(_ context.Context, id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	evt, ok := d.events[id]
	if !ok || !evt.Active {
		return "", ErrNotFound
	}
	if evt.ShareToken == "" {
		evt.ShareToken = newShareToken()
		d.events[id] = evt
	}
	return evt.ShareToken, nil
}

func (d *MemoryDirectory) IsParticipant(_ context.Context, eventID, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.participants[eventID][userID]
	return ok, nil
}

func (d *MemoryDirectory) Participants(_ context.Context, eventID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.participants[eventID]))
	for id := range d.participants[eventID] {
		ids = append(ids, id)
	}
	return ids, nil
}

// newShareToken mints an opaque URL-safe token.
func newShareToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
