// Package identity models who is on the other end of a connection: an
// authenticated app user (bearer token) or an anonymous guest (client-chosen
// session id plus display name).
package identity

import (
	"context"
	"strings"
)

// Identity is a validated connection identity.
type Identity struct {
	ID            string
	DisplayName   string
	Authenticated bool
}

// Guest builds an anonymous identity from client-supplied values.
func Guest(sessionID, displayName string) Identity {
	return Identity{
		ID:          strings.TrimSpace(sessionID),
		DisplayName: strings.TrimSpace(displayName),
	}
}

// Valid reports whether the identity carries enough to join an event.
func (i Identity) Valid() bool {
	return i.ID != "" && i.DisplayName != ""
}

// Verifier validates a bearer token and returns the active identity behind
// it. Token issuance lives elsewhere; this side only consumes.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
