package expiry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossy-p/ephemeral-chat/internal/models"
	"github.com/mossy-p/ephemeral-chat/internal/store"
)

// agedStore builds a store whose room predates the age threshold by loading
// it from a snapshot with a backdated creation time.
func agedStore(t *testing.T, code string, age time.Duration) *store.Store {
	t.Helper()
	created := time.Now().Add(-age).UnixMilli()
	snap := models.Snapshot{Rooms: map[string]models.SnapshotRoom{
		code: {CreatedAt: created, LastActiveAt: created},
	}}
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rooms.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return store.New(store.NewSnapshotter(path))
}

func TestSweepDeletesEmptyRoomsRegardlessOfAge(t *testing.T) {
	st := store.New(nil)
	st.GetOrCreate("fresh")

	sched := New(st, Options{SweepInterval: time.Hour, MaxAge: time.Hour, Grace: time.Hour})
	st.SetCanceller(sched)

	// No eager deletion before the sweep runs.
	assert.True(t, st.Info("fresh").Exists)

	sched.Sweep()
	assert.False(t, st.Info("fresh").Exists)
}

func TestSweepSchedulesAgedOccupiedRooms(t *testing.T) {
	st := agedStore(t, "old", 2*time.Hour)
	sched := New(st, Options{SweepInterval: time.Hour, MaxAge: time.Hour, Grace: time.Hour})
	st.SetCanceller(sched)

	_, err := st.Join("old", "Alice", "", 0)
	require.NoError(t, err)

	sched.Sweep()
	assert.True(t, sched.Pending("old"))
	assert.True(t, st.Info("old").Exists, "grace period must elapse before deletion")

	msgs := st.Data("old").Messages
	require.NotEmpty(t, msgs)
	warning := msgs[len(msgs)-1]
	assert.True(t, warning.System)
	assert.Contains(t, warning.Text, "deleted")
}

func TestWarningSentOncePerCycle(t *testing.T) {
	st := agedStore(t, "old", 2*time.Hour)
	sched := New(st, Options{SweepInterval: time.Hour, MaxAge: time.Hour, Grace: time.Hour})
	st.SetCanceller(sched)

	_, err := st.Join("old", "Alice", "", 0)
	require.NoError(t, err)

	sched.Sweep()
	sched.Sweep()
	sched.Sweep()

	warnings := 0
	for _, m := range st.Data("old").Messages {
		if m.System && strings.Contains(m.Text, "maximum age") {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestGraceTimerDeletesRoom(t *testing.T) {
	st := agedStore(t, "old", 2*time.Hour)
	sched := New(st, Options{SweepInterval: time.Hour, MaxAge: time.Hour, Grace: 50 * time.Millisecond})
	st.SetCanceller(sched)

	_, err := st.Join("old", "Alice", "", 0)
	require.NoError(t, err)

	sched.Sweep()
	require.True(t, sched.Pending("old"))

	assert.Eventually(t, func() bool {
		return !st.Info("old").Exists
	}, time.Second, 10*time.Millisecond)
}

func TestActivityCancelsPendingDeletion(t *testing.T) {
	st := agedStore(t, "old", 2*time.Hour)
	sched := New(st, Options{SweepInterval: time.Hour, MaxAge: time.Hour, Grace: 100 * time.Millisecond})
	st.SetCanceller(sched)

	_, err := st.Join("old", "Alice", "", 0)
	require.NoError(t, err)

	sched.Sweep()
	require.True(t, sched.Pending("old"))

	// Activity is a reprieve: the original deadline must pass harmlessly.
	st.Append("old", "Alice", "still here", false)
	assert.False(t, sched.Pending("old"))

	time.Sleep(300 * time.Millisecond)
	assert.True(t, st.Info("old").Exists)
}

func TestCancelOfAbsentRoomIsNoOp(t *testing.T) {
	st := store.New(nil)
	sched := New(st, Options{})
	sched.Cancel("never-scheduled")
	assert.False(t, sched.Pending("never-scheduled"))
}
