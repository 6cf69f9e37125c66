// Package service provides the use-case layer coordinating the thread
// store, participant directory and remote chat API. Caller-visible
// operations are atomic from the caller's perspective even when they span
// several network calls.
package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/deskfront/messaging-core/internal/composer"
	"github.com/deskfront/messaging-core/internal/directory"
	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/internal/remote"
	"github.com/deskfront/messaging-core/internal/store"
	"github.com/deskfront/messaging-core/pkg/logger"
	"github.com/deskfront/messaging-core/pkg/metrics"
)

// pendingCreation tracks an in-flight remote thread creation so that
// concurrent sends to the same new recipient set share one thread instead
// of racing into two.
type pendingCreation struct {
	done   chan struct{}
	thread *model.Thread
	err    error
}

// ChatService orchestrates composite chat operations. It is the only
// writer to the thread store besides the live channel, and both funnel
// through the same store commands.
type ChatService struct {
	threads     remote.ThreadAPI
	directory   *directory.Directory
	store       *store.Store
	requester   model.Participant
	recorder    *composer.Recorder
	transcriber *composer.Transcriber
	logger      *logger.Logger
	tracer      trace.Tracer

	mu      sync.Mutex
	pending map[string]*pendingCreation
}

// NewChatService creates the orchestrator for a session. The recorder and
// transcriber are optional; audio operations fail cleanly without them.
func NewChatService(
	threads remote.ThreadAPI,
	dir *directory.Directory,
	st *store.Store,
	requester model.Participant,
	rec *composer.Recorder,
	tr *composer.Transcriber,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		threads:     threads,
		directory:   dir,
		store:       st,
		requester:   requester,
		recorder:    rec,
		transcriber: tr,
		logger:      log,
		tracer:      otel.Tracer("messaging-core/service"),
		pending:     make(map[string]*pendingCreation),
	}
}

// Requester returns the session user's participant projection.
func (s *ChatService) Requester() model.Participant {
	return s.requester
}

// FetchThreads loads every thread the requester belongs to, expands
// participants and replaces the store's view.
func (s *ChatService) FetchThreads(ctx context.Context) ([]model.Thread, error) {
	start := time.Now()

	threads, err := s.threads.FetchAll(ctx, s.requester.ID)
	if err != nil {
		return nil, s.fail(ctx, "fetch_threads", start, err)
	}

	for i := range threads {
		participants, err := s.directory.Expand(ctx, s.requester, threads[i].ParticipantIDs)
		if err != nil {
			return nil, s.fail(ctx, "fetch_threads", start, err)
		}
		threads[i].Participants = participants
	}

	if err := s.store.Apply(store.UpsertThreads{Threads: threads}); err != nil {
		return nil, s.fail(ctx, "fetch_threads", start, err)
	}

	metrics.RecordOperation("fetch_threads", "ok", time.Since(start).Seconds())
	return s.store.Threads(), nil
}

// OpenThread resolves a thread key, loads the thread into the store,
// selects it and marks it seen. A key matching neither a thread nor a
// participant is not an error: the selection is cleared and the caller
// gets a nil thread, meaning "new, empty conversation".
func (s *ChatService) OpenThread(ctx context.Context, threadKey string) (*model.Thread, error) {
	ctx, span := s.tracer.Start(ctx, "chat.open_thread",
		trace.WithAttributes(attribute.String("thread_key", threadKey)))
	defer span.End()
	start := time.Now()

	thread, err := s.threads.FetchByKey(ctx, s.requester.ID, threadKey)
	if err != nil {
		return nil, s.fail(ctx, "open_thread", start, err)
	}

	if thread == nil {
		s.store.Apply(store.SelectThread{})
		metrics.RecordOperation("open_thread", "empty", time.Since(start).Seconds())
		return nil, nil
	}

	participants, err := s.directory.Expand(ctx, s.requester, thread.ParticipantIDs)
	if err != nil {
		return nil, s.fail(ctx, "open_thread", start, err)
	}
	thread.Participants = participants

	if err := s.store.Apply(store.UpsertThread{Thread: *thread}); err != nil {
		return nil, s.fail(ctx, "open_thread", start, err)
	}
	s.store.Apply(store.SelectThread{ThreadID: thread.ID})
	s.store.Apply(store.MarkSeen{ThreadID: thread.ID})

	metrics.RecordOperation("open_thread", "ok", time.Since(start).Seconds())
	return s.store.ThreadByID(thread.ID), nil
}

// SendMessage persists a message against an existing thread, or creates
// the thread first when none exists. Thread creation always completes and
// returns an authoritative id before the message save is issued.
func (s *ChatService) SendMessage(ctx context.Context, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "chat.send_message")
	defer span.End()
	start := time.Now()

	msg, err := composer.ComposeText(s.requester.ID, req.Body)
	if err != nil {
		return nil, s.fail(ctx, "send_message", start, err)
	}

	var thread *model.Thread
	if req.ThreadID != "" {
		thread, err = s.threads.FetchByKey(ctx, s.requester.ID, req.ThreadID)
		if err != nil {
			return nil, s.fail(ctx, "send_message", start, err)
		}
	}

	if thread != nil {
		if err := s.sendToExisting(ctx, thread, msg); err != nil {
			return nil, s.fail(ctx, "send_message", start, err)
		}
	} else {
		thread, err = s.sendToNew(ctx, req.RecipientIDs, msg)
		if err != nil {
			return nil, s.fail(ctx, "send_message", start, err)
		}
	}

	metrics.MessagesTotal.WithLabelValues(string(msg.ContentType)).Inc()
	metrics.RecordOperation("send_message", "ok", time.Since(start).Seconds())

	return &model.SendMessageResponse{ThreadID: thread.ID, Message: msg}, nil
}

// sendToExisting appends a message to a thread already known remotely.
func (s *ChatService) sendToExisting(ctx context.Context, thread *model.Thread, msg model.Message) error {
	if err := s.threads.SaveMessage(ctx, s.requester.ID, thread.ID, msg); err != nil {
		return err
	}

	// The thread may not be loaded locally, e.g. a send straight from a
	// search result. Load it before appending so the append has a home.
	if s.store.ThreadByID(thread.ID) == nil {
		participants, err := s.directory.Expand(ctx, s.requester, thread.ParticipantIDs)
		if err != nil {
			return err
		}
		thread.Participants = participants
		if err := s.store.Apply(store.UpsertThread{Thread: *thread}); err != nil {
			return err
		}
	}

	s.store.Apply(store.AppendMessage{ThreadID: thread.ID, Message: msg})
	return nil
}

// sendToNew creates the conversation remotely, then persists the first
// message against the canonical id, then materializes the thread locally
// and selects it.
func (s *ChatService) sendToNew(ctx context.Context, recipientIDs []string, msg model.Message) (*model.Thread, error) {
	if len(recipientIDs) == 0 {
		return nil, ErrNoRecipients
	}

	created, err := s.createThread(ctx, recipientIDs)
	if err != nil {
		return nil, err
	}

	if err := s.threads.SaveMessage(ctx, s.requester.ID, created.ID, msg); err != nil {
		// The thread exists remotely even though the message never landed.
		// Surface it locally so a retry can target the existing id.
		s.mu.Lock()
		if s.store.ThreadByID(created.ID) == nil {
			if upsertErr := s.store.Apply(store.UpsertThread{Thread: *created}); upsertErr != nil {
				s.logger.Error("failed to record created thread after save failure",
					zap.String("thread_id", created.ID), zap.Error(upsertErr))
			}
		}
		s.mu.Unlock()
		return nil, err
	}

	participants, err := s.directory.Expand(ctx, s.requester, created.ParticipantIDs)
	if err == nil {
		created.Participants = participants
	} else {
		s.logger.Warn("participant expansion failed for new thread",
			zap.String("thread_id", created.ID), zap.Error(err))
	}

	// Concurrent sends sharing one creation materialize the same thread.
	// Serialize so a late upsert never clobbers an earlier send's append.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store.ThreadByID(created.ID) == nil {
		if err := s.store.Apply(store.UpsertThread{Thread: *created}); err != nil {
			return nil, err
		}
	}
	s.store.Apply(store.AppendMessage{ThreadID: created.ID, Message: msg})
	s.store.Apply(store.SelectThread{ThreadID: created.ID})

	return created, nil
}

// createThread persists a new conversation shape. Concurrent creations for
// an identical recipient set share one remote call through the pending
// map; distinct sets proceed independently.
func (s *ChatService) createThread(ctx context.Context, recipientIDs []string) (*model.Thread, error) {
	key := recipientSetKey(recipientIDs)

	s.mu.Lock()
	if p, ok := s.pending[key]; ok {
		s.mu.Unlock()
		select {
		case <-p.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return cloneCreated(p.thread), p.err
	}

	p := &pendingCreation{done: make(chan struct{})}
	s.pending[key] = p
	s.mu.Unlock()

	participantIDs := append([]string{s.requester.ID}, recipientIDs...)
	pending := model.Thread{
		Type:           model.DeriveThreadType(len(participantIDs)),
		ParticipantIDs: participantIDs,
		Messages:       []model.Message{},
		CreatedBy:      s.requester.ID,
	}

	p.thread, p.err = s.threads.Create(ctx, s.requester.ID, pending)
	if p.err == nil {
		metrics.ThreadsCreatedTotal.WithLabelValues(string(p.thread.Type)).Inc()
	}
	close(p.done)

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	return cloneCreated(p.thread), p.err
}

// cloneCreated gives each waiter on a shared creation its own copy, so
// concurrent sends never mutate one another's thread.
func cloneCreated(t *model.Thread) *model.Thread {
	if t == nil {
		return nil
	}
	clone := *t
	clone.ParticipantIDs = append([]string(nil), t.ParticipantIDs...)
	clone.Messages = append([]model.Message(nil), t.Messages...)
	clone.Participants = append([]model.Participant(nil), t.Participants...)
	return &clone
}

// recipientSetKey produces an order-insensitive identity for a recipient
// set.
func recipientSetKey(recipientIDs []string) string {
	ids := append([]string(nil), recipientIDs...)
	sort.Strings(ids)
	return strings.Join(ids, "\x00")
}

// SelectThread sets the current selection. Idempotent; the id may point at
// a thread still being created.
func (s *ChatService) SelectThread(threadID string) {
	s.store.Apply(store.SelectThread{ThreadID: threadID})
}

// MarkSeen zeroes a thread's unread count. Idempotent.
func (s *ChatService) MarkSeen(threadID string) {
	s.store.Apply(store.MarkSeen{ThreadID: threadID})
}

// SearchParticipants returns recipient candidates for a search query.
func (s *ChatService) SearchParticipants(ctx context.Context, query string) ([]model.Participant, error) {
	results, err := s.directory.SearchByName(ctx, s.requester.ID, query)
	if err != nil {
		return nil, &OperationError{Op: "search_participants", Err: err}
	}
	return results, nil
}

// StartRecording acquires the capture device and begins recording.
func (s *ChatService) StartRecording(ctx context.Context) error {
	if s.recorder == nil {
		return &composer.CaptureDeviceError{Err: composer.ErrNoCaptureDevice}
	}
	return s.recorder.Start(ctx)
}

// StopRecording releases the capture device and ships the recorded
// payload to the transcription endpoint, returning the transcript. The
// upload is out-of-band from the message pipeline.
func (s *ChatService) StopRecording(ctx context.Context) (string, error) {
	if s.recorder == nil || s.transcriber == nil {
		return "", &composer.CaptureDeviceError{Err: composer.ErrNoCaptureDevice}
	}

	payload, err := s.recorder.Stop()
	if err != nil {
		return "", err
	}

	transcript, err := s.transcriber.Transcribe(ctx, payload)
	if err != nil {
		return "", &OperationError{Op: "transcribe_audio", Err: err}
	}
	return transcript, nil
}

// CurrentThread returns a snapshot of the selected thread, or nil.
func (s *ChatService) CurrentThread() *model.Thread {
	return s.store.CurrentThread()
}

// CurrentThreadID returns the current selection id.
func (s *ChatService) CurrentThreadID() string {
	return s.store.CurrentThreadID()
}

// Threads returns a snapshot of all loaded threads in display order.
func (s *ChatService) Threads() []model.Thread {
	return s.store.Threads()
}

// ThreadByKey returns a snapshot of the locally loaded thread addressed by
// a thread key, or nil.
func (s *ChatService) ThreadByKey(key string) *model.Thread {
	return s.store.ThreadByKey(key)
}

// fail wraps an operation failure with context, records it and preserves
// the cause for errors.Is/As. Previously established store state stays
// intact; only the attempted mutation is absent.
func (s *ChatService) fail(ctx context.Context, op string, start time.Time, err error) error {
	metrics.RecordOperation(op, "error", time.Since(start).Seconds())
	s.logger.Error("chat operation failed", zap.String("operation", op), zap.Error(err))
	if span := trace.SpanFromContext(ctx); span != nil {
		span.RecordError(err)
	}
	return &OperationError{Op: op, Err: err}
}
