package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskfront/messaging-core/internal/composer"
	"github.com/deskfront/messaging-core/internal/directory"
	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/internal/store"
	"github.com/deskfront/messaging-core/pkg/logger"
)

var (
	alice = model.Participant{ID: "alice", Name: "Alice"}
	bob   = model.Participant{ID: "bob", Name: "Bob"}
	carol = model.Participant{ID: "carol", Name: "Carol"}
)

type saveCall struct {
	threadID string
	msg      model.Message
}

// fakeThreadAPI is an in-memory chat backend keyed the way the real one
// is: direct threads by the other participant's id, groups by thread id.
type fakeThreadAPI struct {
	mu          sync.Mutex
	byKey       map[string]*model.Thread
	all         []model.Thread
	nextID      int
	createDelay time.Duration

	createErr error
	saveErr   error
	fetchErr  error

	createCalls int
	fetchCalls  int
	saveCalls   []saveCall
}

func newFakeThreadAPI() *fakeThreadAPI {
	return &fakeThreadAPI{byKey: map[string]*model.Thread{}}
}

func (f *fakeThreadAPI) FetchAll(_ context.Context, _ string) ([]model.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]model.Thread(nil), f.all...), nil
}

func (f *fakeThreadAPI) FetchByKey(_ context.Context, _ string, key string) (*model.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	t, ok := f.byKey[key]
	if !ok {
		return nil, nil
	}
	clone := *t
	return &clone, nil
}

func (f *fakeThreadAPI) Create(_ context.Context, _ string, thread model.Thread) (*model.Thread, error) {
	f.mu.Lock()
	f.createCalls++
	delay := f.createDelay
	f.mu.Unlock()

	// Simulated backend latency, so concurrent creations overlap.
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	thread.ID = fmt.Sprintf("thread-%d", f.nextID)
	f.byKey[thread.ID] = &thread
	return &thread, nil
}

func (f *fakeThreadAPI) SaveMessage(_ context.Context, _ string, threadID string, msg model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saveCalls = append(f.saveCalls, saveCall{threadID: threadID, msg: msg})
	return nil
}

type fakeDirectoryAPI struct {
	participants map[string]model.Participant
	lookupErr    error
}

func newFakeDirectoryAPI(participants ...model.Participant) *fakeDirectoryAPI {
	byID := make(map[string]model.Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	return &fakeDirectoryAPI{participants: byID}
}

func (f *fakeDirectoryAPI) FetchParticipant(_ context.Context, _ string, participantID string) (*model.Participant, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	p, ok := f.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("unknown participant %s", participantID)
	}
	return &p, nil
}

func (f *fakeDirectoryAPI) SearchByName(_ context.Context, _ string, query string) ([]model.Participant, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var results []model.Participant
	for _, p := range f.participants {
		if p.Name == query {
			results = append(results, p)
		}
	}
	return results, nil
}

func newService(t *testing.T, api *fakeThreadAPI) (*ChatService, *store.Store) {
	t.Helper()
	log := logger.Nop()
	st := store.New(alice.ID, log)
	dir := directory.New(newFakeDirectoryAPI(alice, bob, carol), log)
	return NewChatService(api, dir, st, alice, nil, nil, log), st
}

func TestSendMessageCreatesDirectThread(t *testing.T) {
	api := newFakeThreadAPI()
	svc, st := newService(t, api)

	resp, err := svc.SendMessage(context.Background(), model.SendMessageRequest{
		RecipientIDs: []string{"bob"},
		Body:         "hello bob",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ThreadID)

	assert.Equal(t, 1, api.createCalls)
	require.Len(t, api.saveCalls, 1)
	assert.Equal(t, resp.ThreadID, api.saveCalls[0].threadID)

	thread := st.ThreadByID(resp.ThreadID)
	require.NotNil(t, thread)
	assert.Equal(t, model.ThreadTypeOneToOne, thread.Type)
	assert.Equal(t, []string{"alice", "bob"}, thread.ParticipantIDs)
	assert.Equal(t, []model.Participant{alice, bob}, thread.Participants)
	assert.Equal(t, "alice", thread.CreatedBy)

	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "alice", thread.Messages[0].AuthorID)
	assert.Equal(t, "hello bob", thread.Messages[0].Body)
	assert.Equal(t, resp.Message.ID, thread.Messages[0].ID)

	// The new conversation becomes the current one.
	assert.Equal(t, resp.ThreadID, st.CurrentThreadID())
}

func TestSendMessageCreatesGroupThread(t *testing.T) {
	api := newFakeThreadAPI()
	svc, st := newService(t, api)

	resp, err := svc.SendMessage(context.Background(), model.SendMessageRequest{
		RecipientIDs: []string{"bob", "carol"},
		Body:         "hi all",
	})
	require.NoError(t, err)

	thread := st.ThreadByID(resp.ThreadID)
	require.NotNil(t, thread)
	assert.Equal(t, model.ThreadTypeGroup, thread.Type)
	assert.Equal(t, []string{"alice", "bob", "carol"}, thread.ParticipantIDs)
}

func TestSendMessageToExistingThread(t *testing.T) {
	api := newFakeThreadAPI()
	svc, st := newService(t, api)

	first, err := svc.SendMessage(context.Background(), model.SendMessageRequest{
		RecipientIDs: []string{"bob"},
		Body:         "first",
	})
	require.NoError(t, err)

	second, err := svc.SendMessage(context.Background(), model.SendMessageRequest{
		ThreadID: first.ThreadID,
		Body:     "second",
	})
	require.NoError(t, err)

	// Same conversation, no second creation.
	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.Equal(t, 1, api.createCalls)
	assert.Len(t, api.saveCalls, 2)

	thread := st.ThreadByID(first.ThreadID)
	require.NotNil(t, thread)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "first", thread.Messages[0].Body)
	assert.Equal(t, "second", thread.Messages[1].Body)
	assert.Equal(t, 1, st.Len())
}

func TestSendMessageEmptyBody(t *testing.T) {
	api := newFakeThreadAPI()
	svc, _ := newService(t, api)

	_, err := svc.SendMessage(context.Background(), model.SendMessageRequest{
		RecipientIDs: []string{"bob"},
		Body:         "",
	})
	assert.ErrorIs(t, err, composer.ErrEmptyBody)

	// Composition is validated before anything goes on the wire.
	assert.Zero(t, api.createCalls)
	assert.Zero(t, api.fetchCalls)
	assert.Empty(t, api.saveCalls)
}

func TestSendMessageNoRecipients(t *testing.T) {
	api := newFakeThreadAPI()
	svc, _ := newService(t, api)

	_, err := svc.SendMessage(context.Background(), model.SendMessageRequest{Body: "hello"})
	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Zero(t, api.createCalls)
}

func TestSendMessageSaveFailureKeepsCreatedThread(t *testing.T) {
	api := newFakeThreadAPI()
	api.saveErr = errors.New("backend down")
	svc, st := newService(t, api)

	_, err := svc.SendMessage(context.Background(), model.SendMessageRequest{
		RecipientIDs: []string{"bob"},
		Body:         "hello",
	})
	require.Error(t, err)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "send_message", opErr.Op)

	// The remote creation succeeded, so the thread is surfaced locally
	// without the message; a retry targets the existing id.
	require.Equal(t, 1, st.Len())
	thread := st.Threads()[0]
	assert.Empty(t, thread.Messages)
	assert.Empty(t, st.CurrentThreadID())
}

func TestSendMessageSaveFailureLeavesExistingThreadIntact(t *testing.T) {
	api := newFakeThreadAPI()
	svc, st := newService(t, api)

	first, err := svc.SendMessage(context.Background(), model.SendMessageRequest{
		RecipientIDs: []string{"bob"},
		Body:         "first",
	})
	require.NoError(t, err)

	api.saveErr = errors.New("backend down")
	_, err = svc.SendMessage(context.Background(), model.SendMessageRequest{
		ThreadID: first.ThreadID,
		Body:     "second",
	})
	require.Error(t, err)

	thread := st.ThreadByID(first.ThreadID)
	require.NotNil(t, thread)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "first", thread.Messages[0].Body)
}

func TestConcurrentSendsShareOneCreation(t *testing.T) {
	api := newFakeThreadAPI()
	api.createDelay = 20 * time.Millisecond
	svc, st := newService(t, api)

	const senders = 4
	responses := make([]*model.SendMessageResponse, senders)
	errs := make([]error, senders)

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], errs[i] = svc.SendMessage(context.Background(), model.SendMessageRequest{
				RecipientIDs: []string{"bob"},
				Body:         fmt.Sprintf("message %d", i),
			})
		}(i)
	}
	wg.Wait()

	// One remote creation, every send lands in the same thread.
	assert.Equal(t, 1, api.createCalls)
	for i := 0; i < senders; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, responses[0].ThreadID, responses[i].ThreadID)
	}

	thread := st.ThreadByID(responses[0].ThreadID)
	require.NotNil(t, thread)
	assert.Len(t, thread.Messages, senders)
	assert.Equal(t, 1, st.Len())
}

func TestOpenThreadUnknownKey(t *testing.T) {
	api := newFakeThreadAPI()
	svc, st := newService(t, api)
	st.Apply(store.SelectThread{ThreadID: "stale"})

	thread, err := svc.OpenThread(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, thread)

	// Unknown key means "new, empty conversation": selection is cleared.
	assert.Empty(t, st.CurrentThreadID())
}

func TestOpenThreadLoadsSelectsAndMarksSeen(t *testing.T) {
	api := newFakeThreadAPI()
	api.byKey["bob"] = &model.Thread{
		ID:             "t1",
		Type:           model.ThreadTypeOneToOne,
		ParticipantIDs: []string{"alice", "bob"},
		UnreadCount:    3,
	}
	svc, st := newService(t, api)

	thread, err := svc.OpenThread(context.Background(), "bob")
	require.NoError(t, err)
	require.NotNil(t, thread)

	assert.Equal(t, "t1", thread.ID)
	assert.Equal(t, []model.Participant{alice, bob}, thread.Participants)
	assert.Zero(t, thread.UnreadCount)
	assert.Equal(t, "t1", st.CurrentThreadID())
}

func TestOpenThreadExpansionFailure(t *testing.T) {
	api := newFakeThreadAPI()
	api.byKey["dave"] = &model.Thread{
		ID:             "t2",
		Type:           model.ThreadTypeOneToOne,
		ParticipantIDs: []string{"alice", "dave"},
	}
	svc, st := newService(t, api)

	_, err := svc.OpenThread(context.Background(), "dave")
	require.Error(t, err)

	var lookupErr *directory.LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "dave", lookupErr.ParticipantID)

	// The failed load leaves the store untouched.
	assert.Zero(t, st.Len())
	assert.Empty(t, st.CurrentThreadID())
}

func TestFetchThreads(t *testing.T) {
	api := newFakeThreadAPI()
	api.all = []model.Thread{
		{ID: "t1", Type: model.ThreadTypeOneToOne, ParticipantIDs: []string{"alice", "bob"}},
		{ID: "t2", Type: model.ThreadTypeGroup, ParticipantIDs: []string{"alice", "bob", "carol"}},
	}
	svc, st := newService(t, api)

	threads, err := svc.FetchThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 2)

	assert.Equal(t, 2, st.Len())
	t1 := st.ThreadByID("t1")
	require.NotNil(t, t1)
	assert.Equal(t, []model.Participant{alice, bob}, t1.Participants)

	// Direct threads are addressable by the other participant's id.
	assert.NotNil(t, st.ThreadByKey("bob"))
	assert.NotNil(t, st.ThreadByKey("t2"))
}

func TestSearchParticipants(t *testing.T) {
	api := newFakeThreadAPI()
	svc, _ := newService(t, api)

	results, err := svc.SearchParticipants(context.Background(), "Bob")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob", results[0].ID)

	results, err = svc.SearchParticipants(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecordingWithoutCaptureDevice(t *testing.T) {
	api := newFakeThreadAPI()
	svc, _ := newService(t, api)

	err := svc.StartRecording(context.Background())
	var capErr *composer.CaptureDeviceError
	require.ErrorAs(t, err, &capErr)
	assert.ErrorIs(t, err, composer.ErrNoCaptureDevice)

	_, err = svc.StopRecording(context.Background())
	assert.ErrorIs(t, err, composer.ErrNoCaptureDevice)
}

func TestMarkSeenAndSelectThread(t *testing.T) {
	api := newFakeThreadAPI()
	api.all = []model.Thread{{
		ID:             "t1",
		Type:           model.ThreadTypeOneToOne,
		ParticipantIDs: []string{"alice", "bob"},
		UnreadCount:    2,
	}}
	svc, st := newService(t, api)

	_, err := svc.FetchThreads(context.Background())
	require.NoError(t, err)

	svc.SelectThread("t1")
	assert.Equal(t, "t1", svc.CurrentThreadID())

	svc.MarkSeen("t1")
	thread := st.ThreadByID("t1")
	require.NotNil(t, thread)
	assert.Zero(t, thread.UnreadCount)
}
