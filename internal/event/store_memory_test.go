package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func active(id, host, token string) Event {
	return Event{ID: id, HostID: host, HostName: "Host", ShareToken: token, VenueName: "The Spot", Active: true}
}

func TestMemoryDirectoryLookups(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	d.Put(active("e1", "u1", "tok1"))
	d.Put(Event{ID: "e2", HostID: "u2", ShareToken: "tok2", Active: false})

	got, err := d.ByID(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, "The Spot", got.VenueName)

	_, err = d.ByID(ctx, "e2")
	require.ErrorIs(t, err, ErrNotFound, "inactive events are invisible")

	got, err = d.ByShareToken(ctx, "tok1")
	require.NoError(t, err)
	require.Equal(t, "e1", got.ID)

	_, err = d.ByShareToken(ctx, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDirectoryShareToken(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	d.Put(active("e1", "u1", ""))

	tok, err := d.EnsureShareToken(ctx, "e1")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	again, err := d.EnsureShareToken(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, tok, again, "minted token must be stable")

	_, err = d.EnsureShareToken(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDirectoryParticipants(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	d.Put(active("e1", "u1", "tok"))
	d.AddParticipant("e1", "u2")

	for _, id := range []string{"u1", "u2"} {
		ok, err := d.IsParticipant(ctx, "e1", id)
		require.NoError(t, err)
		require.True(t, ok, id)
	}
	ok, err := d.IsParticipant(ctx, "e1", "stranger")
	require.NoError(t, err)
	require.False(t, ok)

	ids, err := d.Participants(ctx, "e1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u1", "u2"}, ids)
}
