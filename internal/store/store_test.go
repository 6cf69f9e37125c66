package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/pkg/logger"
)

const requester = "alice"

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(requester, logger.Nop())
}

func direct(id, other string) model.Thread {
	return model.Thread{
		ID:             id,
		Type:           model.ThreadTypeOneToOne,
		ParticipantIDs: []string{requester, other},
		Messages:       []model.Message{},
		CreatedBy:      requester,
	}
}

func group(id string, others ...string) model.Thread {
	return model.Thread{
		ID:             id,
		Type:           model.ThreadTypeGroup,
		ParticipantIDs: append([]string{requester}, others...),
		Messages:       []model.Message{},
		CreatedBy:      requester,
	}
}

func msg(id, author string) model.Message {
	return model.Message{
		ID:          id,
		AuthorID:    author,
		Body:        "hello",
		ContentType: model.ContentTypeText,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestUpsertThreadIdempotent(t *testing.T) {
	s := newStore(t)
	thread := direct("t1", "bob")

	require.NoError(t, s.Apply(UpsertThread{Thread: thread}))
	require.NoError(t, s.Apply(UpsertThread{Thread: thread}))

	assert.Equal(t, 1, s.Len())
	threads := s.Threads()
	require.Len(t, threads, 1)
	assert.Equal(t, "t1", threads[0].ID)
}

func TestUpsertOrdering(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Apply(UpsertThread{Thread: direct("t1", "bob")}))
	require.NoError(t, s.Apply(UpsertThread{Thread: direct("t2", "carol")}))

	// New threads go to the front.
	threads := s.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, "t2", threads[0].ID)
	assert.Equal(t, "t1", threads[1].ID)

	// Re-upserting an existing thread keeps its position.
	updated := direct("t1", "bob")
	updated.UnreadCount = 3
	require.NoError(t, s.Apply(UpsertThread{Thread: updated}))

	threads = s.Threads()
	assert.Equal(t, "t2", threads[0].ID)
	assert.Equal(t, "t1", threads[1].ID)
	assert.Equal(t, 3, threads[1].UnreadCount)
}

func TestUpsertThreadsLaterEntryWins(t *testing.T) {
	s := newStore(t)

	first := direct("t1", "bob")
	second := direct("t1", "bob")
	second.UnreadCount = 7

	require.NoError(t, s.Apply(UpsertThreads{Threads: []model.Thread{first, second}}))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 7, s.ThreadByID("t1").UnreadCount)
}

func TestUpsertInvariantViolation(t *testing.T) {
	s := newStore(t)

	bad := model.Thread{
		ID:             "t1",
		Type:           model.ThreadTypeOneToOne,
		ParticipantIDs: []string{requester},
	}

	err := s.Apply(UpsertThread{Thread: bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvariantViolation)
	assert.Equal(t, 0, s.Len())
}

func TestAppendMessage(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Apply(UpsertThread{Thread: direct("t1", "bob")}))

	require.NoError(t, s.Apply(AppendMessage{ThreadID: "t1", Message: msg("m1", "bob")}))

	thread := s.ThreadByID("t1")
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "m1", thread.Messages[0].ID)
}

func TestAppendMessageUnknownThreadIsDropped(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Apply(UpsertThread{Thread: direct("t1", "bob")}))

	require.NoError(t, s.Apply(AppendMessage{ThreadID: "nope", Message: msg("m1", "bob")}))

	assert.Equal(t, 1, s.Len())
	assert.Empty(t, s.ThreadByID("t1").Messages)
}

func TestMarkSeen(t *testing.T) {
	s := newStore(t)
	thread := direct("t1", "bob")
	thread.UnreadCount = 5
	require.NoError(t, s.Apply(UpsertThread{Thread: thread}))

	require.NoError(t, s.Apply(MarkSeen{ThreadID: "t1"}))
	assert.Equal(t, 0, s.ThreadByID("t1").UnreadCount)

	// Unknown ids are a no-op, not an error.
	require.NoError(t, s.Apply(MarkSeen{ThreadID: "nope"}))
}

func TestSelectThreadAllowsUnresolvedID(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Apply(SelectThread{ThreadID: "pending"}))
	assert.Equal(t, "pending", s.CurrentThreadID())
	assert.Nil(t, s.CurrentThread())

	require.NoError(t, s.Apply(SelectThread{}))
	assert.Empty(t, s.CurrentThreadID())
}

func TestThreadByKey(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Apply(UpsertThread{Thread: direct("t1", "bob")}))
	require.NoError(t, s.Apply(UpsertThread{Thread: group("g1", "bob", "carol")}))

	// Direct threads are addressed by the other participant's id.
	found := s.ThreadByKey("bob")
	require.NotNil(t, found)
	assert.Equal(t, "t1", found.ID)

	// Group threads are addressed by their own id.
	found = s.ThreadByKey("g1")
	require.NotNil(t, found)
	assert.Equal(t, "g1", found.ID)

	assert.Nil(t, s.ThreadByKey("unknown"))
}

func TestKeyIndexFollowsParticipantChange(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Apply(UpsertThread{Thread: direct("t1", "bob")}))

	changed := direct("t1", "carol")
	require.NoError(t, s.Apply(UpsertThread{Thread: changed}))

	assert.Nil(t, s.ThreadByKey("bob"))
	found := s.ThreadByKey("carol")
	require.NotNil(t, found)
	assert.Equal(t, "t1", found.ID)
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Apply(UpsertThread{Thread: direct("t1", "bob")}))

	snapshot := s.ThreadByID("t1")
	snapshot.Messages = append(snapshot.Messages, msg("m1", "bob"))
	snapshot.ParticipantIDs[0] = "mallory"

	fresh := s.ThreadByID("t1")
	assert.Empty(t, fresh.Messages)
	assert.Equal(t, requester, fresh.ParticipantIDs[0])
}

func TestReset(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Apply(UpsertThread{Thread: direct("t1", "bob")}))
	require.NoError(t, s.Apply(SelectThread{ThreadID: "t1"}))

	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.CurrentThreadID())
	assert.Nil(t, s.ThreadByKey("bob"))
}
