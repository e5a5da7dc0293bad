package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossy-p/ephemeral-chat/internal/models"
	"github.com/mossy-p/ephemeral-chat/internal/policy"
)

type fakeNotifier struct {
	messages []string
	deleted  []string
}

func (f *fakeNotifier) RoomMessage(code string, msg models.Message) {
	f.messages = append(f.messages, code+":"+msg.Text)
}

func (f *fakeNotifier) RoomDeleted(code string) {
	f.deleted = append(f.deleted, code)
}

func TestAppendTrimsHistory(t *testing.T) {
	s := New(nil)

	for i := 0; i < 1001; i++ {
		s.Append("abc", "Alice", fmt.Sprintf("m%d", i), false)
	}

	msgs := s.Data("abc").Messages
	require.Len(t, msgs, 800)
	assert.Equal(t, "m201", msgs[0].Text)
	assert.Equal(t, "m1000", msgs[799].Text)
	for i := 1; i < len(msgs); i++ {
		assert.Equal(t, fmt.Sprintf("m%d", 201+i), msgs[i].Text, "relative order must survive the trim")
	}
}

func TestJoinPasswordSetOnce(t *testing.T) {
	s := New(nil)

	_, err := s.Join("xyz", "Alice", "secret", 0)
	require.NoError(t, err)

	_, err = s.Join("xyz", "Bob", "wrong", 0)
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.Equal(t, 1, s.Members("xyz"), "rejected join must not change state")

	// A later password supply cannot overwrite the established one.
	_, err = s.Join("xyz", "Bob", "secret", 0)
	require.NoError(t, err)
	_, err = s.Join("xyz", "Carol", "other", 0)
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestJoinLimitSetOnce(t *testing.T) {
	s := New(nil)

	_, err := s.Join("abc", "A", "", 2)
	require.NoError(t, err)

	// The second joiner's larger limit is ignored.
	_, err = s.Join("abc", "B", "", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Members("abc"))

	_, err = s.Join("abc", "C", "", 0)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 2, s.Members("abc"))
}

func TestJoinNameUniquenessIsPerRoom(t *testing.T) {
	s := New(nil)

	_, err := s.Join("a", "Alice", "", 0)
	require.NoError(t, err)

	_, err = s.Join("a", "alice", "", 0)
	assert.ErrorIs(t, err, policy.ErrNameTaken)

	_, err = s.Join("b", "Alice", "", 0)
	assert.NoError(t, err, "the same name in a different room must be accepted")
}

func TestJoinResultCarriesHistoryAndUsers(t *testing.T) {
	s := New(nil)

	s.Append("abc", "Alice", "hello", false)
	_, err := s.Join("abc", "Alice", "", 0)
	require.NoError(t, err)

	res, err := s.Join("abc", "Bob", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", res.Room)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "hello", res.Messages[0].Text)
	assert.Equal(t, []string{"alice", "bob"}, res.Users)
}

func TestLeaveDeletesEmptyRoomImmediately(t *testing.T) {
	s := New(nil)

	_, err := s.Join("solo", "Alice", "", 0)
	require.NoError(t, err)

	notice, members, deleted := s.Leave("solo", "Alice")
	assert.True(t, deleted)
	assert.Equal(t, 0, members)
	assert.True(t, notice.System)
	assert.Contains(t, notice.Text, "Alice left")
	assert.False(t, s.Info("solo").Exists)
}

func TestLeaveNeverGoesNegative(t *testing.T) {
	s := New(nil)

	// Room exists with zero members (created by a message, never joined).
	s.Append("abc", "Alice", "hi", false)
	_, members, _ := s.Leave("abc", "Alice")
	assert.Equal(t, 0, members)

	// Leaving an absent room is a no-op.
	_, _, deleted := s.Leave("nope", "Alice")
	assert.False(t, deleted)
}

func TestDeleteNotifiesGatewayAndIsIdempotent(t *testing.T) {
	s := New(nil)
	n := &fakeNotifier{}
	s.SetNotifier(n)

	s.GetOrCreate("abc")
	s.Delete("abc")
	s.Delete("abc")

	assert.Equal(t, []string{"abc"}, n.deleted, "deleting an absent room must not re-notify")
	assert.False(t, s.Info("abc").Exists)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")

	s1 := New(NewSnapshotter(path))
	_, err := s1.Join("abc", "Alice", "secret", 3)
	require.NoError(t, err)
	s1.Append("abc", "Alice", "hello", false)

	s2 := New(NewSnapshotter(path))
	data := s2.Data("abc")
	require.True(t, data.Exists)
	assert.True(t, data.HasPassword)
	assert.Equal(t, 3, data.Limit)
	assert.Equal(t, "hello", data.Messages[len(data.Messages)-1].Text)

	// Live-connection state never survives a restart.
	assert.Equal(t, 0, s2.Members("abc"))
	assert.Empty(t, data.Users)
}

func TestSnapshotExcludesDeletedRooms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")

	s1 := New(NewSnapshotter(path))
	s1.GetOrCreate("gone")
	s1.GetOrCreate("kept")
	s1.Delete("gone")

	s2 := New(NewSnapshotter(path))
	assert.False(t, s2.Info("gone").Exists)
	assert.True(t, s2.Info("kept").Exists)
}

func TestLoadToleratesMissingAndCorruptSnapshots(t *testing.T) {
	missing := New(NewSnapshotter(filepath.Join(t.TempDir(), "nope.json")))
	assert.Empty(t, missing.Stats())

	path := filepath.Join(t.TempDir(), "rooms.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	corrupt := New(NewSnapshotter(path))
	assert.Empty(t, corrupt.Stats())
}
