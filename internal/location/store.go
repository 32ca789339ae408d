// Package location persists last-known attendee locations per event. The
// live core treats this as an external collaborator: writes are best-effort
// and reads only serve the join snapshot.
package location

import (
	"context"
	"time"
)

// Record is one attendee's last shared position within an event.
type Record struct {
	EventID     string
	AttendeeID  string
	DisplayName string
	Latitude    float64
	Longitude   float64
	Sharing     bool
	UpdatedAt   time.Time
}

// Store is the durable attendee/location persistence surface.
type Store interface {
	// Upsert writes a record keyed by (event, attendee).
	Upsert(ctx context.Context, rec Record) error
	// SetSharing flips the sharing flag without touching coordinates.
	// Unknown records are a no-op.
	SetSharing(ctx context.Context, eventID, attendeeID string, sharing bool) error
	// Delete removes the record entirely.
	Delete(ctx context.Context, eventID, attendeeID string) error
	// ListSharing returns all currently-sharing records for an event.
	ListSharing(ctx context.Context, eventID string) ([]Record, error)
}
