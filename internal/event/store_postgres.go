package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresDirectory reads events from PostgreSQL.
//
// Expected schema:
//
//	events(id, share_token, venue_name, venue_address, message,
//	       host_id, host_name, latitude, longitude, status)
//	event_invites(event_id, user_id)
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory constructs a Postgres-backed directory.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

const eventColumns = `
	id, COALESCE(share_token, ''), COALESCE(venue_name, ''),
	COALESCE(venue_address, ''), COALESCE(message, ''),
	host_id, COALESCE(host_name, ''), latitude, longitude,
	status = 'active'
`

func (d *PostgresDirectory) ByID(ctx context.Context, id string) (Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND status = 'active'`
	return d.scanOne(ctx, query, id)
}

func (d *PostgresDirectory) ByShareToken(ctx context.Context, token string) (Event, error) {
	if token == "" {
		return Event{}, ErrNotFound
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE share_token = $1 AND status = 'active'`
	return d.scanOne(ctx, query, token)
}

func (d *PostgresDirectory) scanOne(ctx context.Context, query string, arg any) (Event, error) {
	var evt Event
	err := d.db.QueryRowContext(ctx, query, arg).Scan(
		&evt.ID, &evt.ShareToken, &evt.VenueName, &evt.VenueAddress,
		&evt.Message, &evt.HostID, &evt.HostName,
		&evt.Latitude, &evt.Longitude, &evt.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("load event: %w", err)
	}
	return evt, nil
}

func (d *PostgresDirectory) EnsureShareToken(ctx context.Context, id string) (string, error) {
	// Fill the token only when absent so existing links stay valid.
	query := `
		UPDATE events
		SET share_token = COALESCE(NULLIF(share_token, ''), $2)
		WHERE id = $1 AND status = 'active'
		RETURNING share_token
	`
	var token string
	err := d.db.QueryRowContext(ctx, query, id, newShareToken()).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("ensure share token: %w", err)
	}
	return token, nil
}

func (d *PostgresDirectory) IsParticipant(ctx context.Context, eventID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM events WHERE id = $1 AND host_id = $2
			UNION ALL
			SELECT 1 FROM event_invites WHERE event_id = $1 AND user_id = $2
		)
	`
	var ok bool
	if err := d.db.QueryRowContext(ctx, query, eventID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return ok, nil
}

func (d *PostgresDirectory) Participants(ctx context.Context, eventID string) ([]string, error) {
	query := `
		SELECT host_id FROM events WHERE id = $1
		UNION
		SELECT user_id FROM event_invites WHERE event_id = $1
	`
	rows, err := d.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
