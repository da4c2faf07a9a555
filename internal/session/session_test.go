package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	store := NewStore()

	first := store.GetOrCreate("U1", "C1", "T1")
	second := store.GetOrCreate("U1", "C1", "T1")

	assert.Same(t, first, second)
	assert.Equal(t, 1, store.Len())
}

func TestDistinctTriplesGetDistinctSessions(t *testing.T) {
	store := NewStore()

	store.GetOrCreate("U1", "C1", "T1")
	store.GetOrCreate("U1", "C1", "T2")
	store.GetOrCreate("U2", "C1", "T1")

	assert.Equal(t, 3, store.Len())
}

func TestAttachExternalID(t *testing.T) {
	store := NewStore()
	store.GetOrCreate("U1", "C1", "")

	store.AttachExternalID("U1", "C1", "", "sess-abc")

	sess, ok := store.Get("U1", "C1", "")
	require.True(t, ok)
	assert.Equal(t, "sess-abc", sess.ExternalID)
}

func TestTouchRefreshesLastActivity(t *testing.T) {
	store := NewStore()
	sess := store.GetOrCreate("U1", "C1", "")
	sess.LastActivity = time.Now().Add(-time.Hour)

	store.Touch("U1", "C1", "")

	got, ok := store.Get("U1", "C1", "")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), got.LastActivity, time.Minute)
}

func TestReapRemovesOnlyStaleSessions(t *testing.T) {
	store := NewStore()

	stale := store.GetOrCreate("U1", "C1", "")
	stale.LastActivity = time.Now().Add(-2 * time.Hour)
	store.GetOrCreate("U2", "C2", "")

	removed := store.Reap(time.Hour)

	assert.Equal(t, 1, removed)
	_, ok := store.Get("U1", "C1", "")
	assert.False(t, ok)
	_, ok = store.Get("U2", "C2", "")
	assert.True(t, ok)
}

func TestReapZeroMaxAgeIsNoOp(t *testing.T) {
	store := NewStore()

	sess := store.GetOrCreate("U1", "C1", "")
	sess.LastActivity = time.Now().Add(-24 * 365 * time.Hour)

	assert.Equal(t, 0, store.Reap(0))
	assert.Equal(t, 0, store.Reap(-time.Hour))
	assert.Equal(t, 1, store.Len())
}

func TestWorkingDirRoundTrip(t *testing.T) {
	store := NewStore()

	_, ok := store.WorkingDir("U1:C1:direct")
	assert.False(t, ok)

	store.SetWorkingDir("U1:C1:direct", "/srv/project")

	path, ok := store.WorkingDir("U1:C1:direct")
	require.True(t, ok)
	assert.Equal(t, "/srv/project", path)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	store := NewStore()
	store.GetOrCreate("U1", "C1", "T1")
	store.AttachExternalID("U1", "C1", "T1", "sess-1")
	store.SetWorkingDir("U1:C1:T1", "/srv/project")

	records, dirs := store.Snapshot()

	restored := NewStore()
	restored.Restore(records, dirs)

	sess, ok := restored.Get("U1", "C1", "T1")
	require.True(t, ok)
	assert.Equal(t, "sess-1", sess.ExternalID)

	path, ok := restored.WorkingDir("U1:C1:T1")
	require.True(t, ok)
	assert.Equal(t, "/srv/project", path)
}

func TestRestoreNeverClobbersNewerLiveState(t *testing.T) {
	store := NewStore()
	live := store.GetOrCreate("U1", "C1", "")
	live.ExternalID = "sess-live"

	records := []Record{{
		Key: "U1:C1:direct",
		Session: Session{
			UserID:       "U1",
			ChannelID:    "C1",
			ExternalID:   "sess-stale",
			Active:       true,
			LastActivity: time.Now().Add(-time.Hour),
		},
	}}
	store.Restore(records, nil)

	sess, ok := store.Get("U1", "C1", "")
	require.True(t, ok)
	assert.Equal(t, "sess-live", sess.ExternalID)
}
