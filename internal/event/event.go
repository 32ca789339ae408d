// Package event exposes the durable event directory the live core consumes.
// Events themselves (creation, invites, lifecycle) are managed elsewhere;
// the presence and commentary layers only need lookups, participation checks,
// and share-token minting.
package event

import (
	"context"
	"errors"
)

// ErrNotFound marks a missing or inactive event.
var ErrNotFound = errors.New("event not found")

// Event is the directory's view of one live gathering.
type Event struct {
	ID           string
	ShareToken   string
	VenueName    string
	VenueAddress string
	Message      string
	HostID       string
	HostName     string
	Latitude     float64
	Longitude    float64
	Active       bool
}

// Directory is the narrow read surface over durable event storage.
type Directory interface {
	// ByID returns an active event by id.
	ByID(ctx context.Context, id string) (Event, error)
	// ByShareToken resolves a guest share token to its active event.
	ByShareToken(ctx context.Context, token string) (Event, error)
	// EnsureShareToken returns the event's share token, minting one if the
	// event has none yet.
	EnsureShareToken(ctx context.Context, id string) (string, error)
	// IsParticipant reports whether a user is the host or invited.
	IsParticipant(ctx context.Context, eventID, userID string) (bool, error)
	// Participants lists user ids that should receive targeted notices for
	// the event (host included).
	Participants(ctx context.Context, eventID string) ([]string, error)
}
