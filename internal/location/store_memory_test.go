package location

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, Record{EventID: "e1", AttendeeID: "g1", DisplayName: "Dana", Latitude: 1, Longitude: 2, Sharing: true}))
	require.NoError(t, s.Upsert(ctx, Record{EventID: "e1", AttendeeID: "g2", DisplayName: "Eli", Sharing: false}))
	require.NoError(t, s.Upsert(ctx, Record{EventID: "e2", AttendeeID: "g1", Sharing: true}))

	out, err := s.ListSharing(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "g1", out[0].AttendeeID)
	require.False(t, out[0].UpdatedAt.IsZero())

	// Upsert replaces coordinates in place.
	require.NoError(t, s.Upsert(ctx, Record{EventID: "e1", AttendeeID: "g1", DisplayName: "Dana", Latitude: 5, Longitude: 6, Sharing: true}))
	out, err = s.ListSharing(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 5.0, out[0].Latitude)
}

func TestMemoryStoreSetSharing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, Record{EventID: "e1", AttendeeID: "g1", Sharing: true}))

	require.NoError(t, s.SetSharing(ctx, "e1", "g1", false))
	out, err := s.ListSharing(ctx, "e1")
	require.NoError(t, err)
	require.Empty(t, out)

	// Unknown records are a silent no-op.
	require.NoError(t, s.SetSharing(ctx, "e1", "missing", true))
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, Record{EventID: "e1", AttendeeID: "g1", Sharing: true}))
	require.NoError(t, s.Delete(ctx, "e1", "g1"))
	require.NoError(t, s.Delete(ctx, "e1", "g1"))

	out, err := s.ListSharing(ctx, "e1")
	require.NoError(t, err)
	require.Empty(t, out)
}
