package location

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists attendee locations in PostgreSQL.
//
// Expected schema:
//
//	event_locations(event_id, attendee_id, display_name,
//	                latitude, longitude, is_sharing, updated_at)
//	PRIMARY KEY (event_id, attendee_id)
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a Postgres-backed location store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO event_locations (event_id, attendee_id, display_name, latitude, longitude, is_sharing, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (event_id, attendee_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			is_sharing = EXCLUDED.is_sharing,
			updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.EventID, rec.AttendeeID, rec.DisplayName,
		rec.Latitude, rec.Longitude, rec.Sharing,
	)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetSharing(ctx context.Context, eventID, attendeeID string, sharing bool) error {
	query := `
		UPDATE event_locations SET is_sharing = $3, updated_at = NOW()
		WHERE event_id = $1 AND attendee_id = $2
	`
	if _, err := s.db.ExecContext(ctx, query, eventID, attendeeID, sharing); err != nil {
		return fmt.Errorf("set sharing: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, eventID, attendeeID string) error {
	query := `DELETE FROM event_locations WHERE event_id = $1 AND attendee_id = $2`
	if _, err := s.db.ExecContext(ctx, query, eventID, attendeeID); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSharing(ctx context.Context, eventID string) ([]Record, error) {
	query := `
		SELECT event_id, attendee_id, COALESCE(display_name, ''), latitude, longitude, is_sharing, updated_at
		FROM event_locations
		WHERE event_id = $1 AND is_sharing = TRUE
	`
	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list sharing: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.EventID, &rec.AttendeeID, &rec.DisplayName,
			&rec.Latitude, &rec.Longitude, &rec.Sharing, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
