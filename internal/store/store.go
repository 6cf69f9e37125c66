// Package store holds the normalized, session-scoped view of threads.
package store

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/pkg/logger"
	"github.com/deskfront/messaging-core/pkg/metrics"
)

// Store is the single mutable source of UI truth: a table of threads by
// id, their ordering (most recent first), and the current selection.
// Writers go through Apply; readers get copies.
type Store struct {
	mu          sync.RWMutex
	requesterID string
	byID        map[string]*model.Thread
	allIDs      []string
	currentID   string

	// keyIndex maps a thread key (other participant id for direct threads,
	// thread id for groups) to the thread id, maintained on every upsert.
	keyIndex map[string]string

	logger *logger.Logger
}

// New creates an empty store for a session. The requester id is needed to
// maintain the key index, since direct-thread keys depend on who is asking.
func New(requesterID string, log *logger.Logger) *Store {
	return &Store{
		requesterID: requesterID,
		byID:        make(map[string]*model.Thread),
		keyIndex:    make(map[string]string),
		logger:      log,
	}
}

// Apply executes a single command against the table. The switch is
// exhaustive over the closed command set; an unknown command is a
// programming error.
func (s *Store) Apply(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case UpsertThread:
		return s.upsert(c.Thread)
	case UpsertThreads:
		for _, t := range c.Threads {
			if err := s.upsert(t); err != nil {
				return err
			}
		}
		return nil
	case AppendMessage:
		s.appendMessage(c.ThreadID, c.Message)
		return nil
	case MarkSeen:
		if t, ok := s.byID[c.ThreadID]; ok {
			t.UnreadCount = 0
		} else {
			s.drop("mark_seen", c.ThreadID)
		}
		return nil
	case SelectThread:
		s.currentID = c.ThreadID
		return nil
	default:
		panic(fmt.Sprintf("store: unhandled command %T", cmd))
	}
}

func (s *Store) upsert(t model.Thread) error {
	key, err := t.Key(s.requesterID)
	if err != nil {
		return err
	}

	if prev, ok := s.byID[t.ID]; ok {
		// Position in allIDs is preserved; only the entry changes. A stale
		// key mapping can survive a participant change, so drop it first.
		if prevKey, keyErr := prev.Key(s.requesterID); keyErr == nil && prevKey != key {
			delete(s.keyIndex, prevKey)
		}
	} else {
		s.allIDs = append([]string{t.ID}, s.allIDs...)
	}

	clone := cloneThread(t)
	s.byID[t.ID] = &clone
	s.keyIndex[key] = t.ID
	return nil
}

func (s *Store) appendMessage(threadID string, msg model.Message) {
	t, ok := s.byID[threadID]
	if !ok {
		s.drop("append_message", threadID)
		return
	}
	t.Messages = append(t.Messages, msg)
}

func (s *Store) drop(command, threadID string) {
	metrics.StoreDroppedMutations.WithLabelValues(command).Inc()
	s.logger.Warn("dropped mutation for unknown thread",
		zap.String("command", command),
		zap.String("thread_id", threadID))
}

// Reset clears the table, selection and index. Used at sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[string]*model.Thread)
	s.keyIndex = make(map[string]string)
	s.allIDs = nil
	s.currentID = ""
}

// CurrentThreadID returns the current selection, which may reference a
// thread not yet in the table.
func (s *Store) CurrentThreadID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// CurrentThread returns a copy of the selected thread, or nil when nothing
// is selected or the selection is not resolved yet.
func (s *Store) CurrentThread() *model.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(s.currentID)
}

// ThreadByID returns a copy of the thread with the given id, or nil.
func (s *Store) ThreadByID(threadID string) *model.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(threadID)
}

// ThreadByKey returns a copy of the thread addressed by a thread key, or
// nil. Lookups go through the incrementally maintained index rather than a
// scan.
func (s *Store) ThreadByKey(key string) *model.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keyIndex[key]
	if !ok {
		return nil
	}
	return s.copyOf(id)
}

// Threads returns copies of all threads in display order.
func (s *Store) Threads() []model.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threads := make([]model.Thread, 0, len(s.allIDs))
	for _, id := range s.allIDs {
		if t, ok := s.byID[id]; ok {
			threads = append(threads, cloneThread(*t))
		}
	}
	return threads
}

// Len returns the number of threads in the table.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) copyOf(threadID string) *model.Thread {
	t, ok := s.byID[threadID]
	if !ok {
		return nil
	}
	clone := cloneThread(*t)
	return &clone
}

// cloneThread copies a thread deeply enough that callers cannot mutate
// table state through a snapshot.
func cloneThread(t model.Thread) model.Thread {
	clone := t
	clone.ParticipantIDs = append([]string(nil), t.ParticipantIDs...)
	clone.Messages = append([]model.Message(nil), t.Messages...)
	clone.Participants = append([]model.Participant(nil), t.Participants...)
	return clone
}
