package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bouncehub/internal/identity"
)

func guest(id, name string) identity.Identity {
	return identity.Identity{ID: id, DisplayName: name}
}

func TestFirstJoinThenReconnect(t *testing.T) {
	rs := NewRosters()

	require.True(t, rs.Join("e1", guest("g1", "Dana")), "first connection is a join")
	require.False(t, rs.Join("e1", guest("g1", "Dana")), "second tab is a reconnect")

	// Dropping one of two connections keeps the record live.
	require.False(t, rs.Drop("e1", "g1"), "a sibling connection remains")
	require.False(t, rs.Join("e1", guest("g1", "Dana")))
}

func TestDropReportsVacancyOnlyOnLastConnection(t *testing.T) {
	rs := NewRosters()
	rs.Join("e1", guest("g1", "Dana"))
	rs.Join("e1", guest("g1", "Dana"))
	rs.UpdateLocation("e1", "g1", "Dana", 1, 2)

	require.False(t, rs.Drop("e1", "g1"))
	require.Len(t, rs.Snapshot("e1"), 1, "sharing persists while a connection remains")

	require.True(t, rs.Drop("e1", "g1"))
	require.Empty(t, rs.Snapshot("e1"))
	require.False(t, rs.Drop("e1", "g1"), "dropping an unknown identity reports nothing to do")
}

func TestLeaveReportsWhetherARecordExisted(t *testing.T) {
	rs := NewRosters()
	rs.Join("e1", guest("g1", "Dana"))
	require.True(t, rs.Leave("e1", "g1"))
	require.False(t, rs.Leave("e1", "g1"))
}

func TestDropInsideGraceIsReconnect(t *testing.T) {
	rs := NewRosters()
	rs.Join("e1", guest("g1", "Dana"))
	rs.Drop("e1", "g1")

	require.False(t, rs.Join("e1", guest("g1", "Dana")), "return inside the grace window")
}

func TestDropPastGraceIsFreshJoin(t *testing.T) {
	rs := NewRosters()
	rs.Join("e1", guest("g1", "Dana"))
	rs.Drop("e1", "g1")

	rs.mu.Lock()
	rs.events["e1"]["g1"].droppedAt = time.Now().Add(-graceWindow - time.Second)
	rs.mu.Unlock()

	require.True(t, rs.Join("e1", guest("g1", "Dana")), "grace expired, counts as a new join")
}

func TestDropClearsSharingOnLastConnection(t *testing.T) {
	rs := NewRosters()
	rs.Join("e1", guest("g1", "Dana"))
	rs.UpdateLocation("e1", "g1", "Dana", 1, 2)
	require.Len(t, rs.Snapshot("e1"), 1)

	rs.Drop("e1", "g1")
	require.Empty(t, rs.Snapshot("e1"), "a dropped guest must not keep appearing on the map")
}

func TestLeaveRemovesRecordImmediately(t *testing.T) {
	rs := NewRosters()
	rs.Join("e1", guest("g1", "Dana"))
	rs.Leave("e1", "g1")

	require.True(t, rs.Join("e1", guest("g1", "Dana")), "leaving forfeits the grace window")
}

func TestSnapshotListsOnlySharing(t *testing.T) {
	rs := NewRosters()
	rs.Join("e1", guest("g1", "Dana"))
	rs.Join("e1", guest("g2", "Eli"))
	rs.UpdateLocation("e1", "g1", "Dana", 51.5, -0.12)
	rs.UpdateLocation("e1", "g2", "Eli", 51.6, -0.11)
	rs.StopSharing("e1", "g2")

	snap := rs.Snapshot("e1")
	require.Len(t, snap, 1)
	require.Equal(t, "g1", snap[0].ID)
	require.Equal(t, 51.5, snap[0].Latitude)
}

func TestSweepPrunesExpiredRecords(t *testing.T) {
	rs := NewRosters()
	rs.Join("e1", guest("g1", "Dana"))
	rs.Join("e1", guest("g2", "Eli"))
	rs.Drop("e1", "g1")

	rs.mu.Lock()
	rs.events["e1"]["g1"].droppedAt = time.Now().Add(-graceWindow - time.Second)
	rs.mu.Unlock()

	// Any drop sweeps the event's expired records.
	rs.Drop("e1", "g2")

	rs.mu.Lock()
	_, stale := rs.events["e1"]["g1"]
	rs.mu.Unlock()
	require.False(t, stale)
}

func TestUpdateLocationForUnknownIdentityIsNoop(t *testing.T) {
	rs := NewRosters()
	rs.UpdateLocation("e1", "ghost", "Ghost", 1, 2)
	require.Empty(t, rs.Snapshot("e1"))
}
