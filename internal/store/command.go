package store

import (
	"github.com/deskfront/messaging-core/internal/model"
)

// Command is the closed set of store mutations. Both the orchestrator and
// the live channel funnel every write through Apply so the normalized
// table has a single mutation path.
type Command interface {
	isCommand()
}

// UpsertThread inserts a thread or replaces the entry for its id. New
// threads go to the front of the ordering; existing ones keep their place.
type UpsertThread struct {
	Thread model.Thread
}

// UpsertThreads applies a batch of upserts in list order; later entries
// win on conflict.
type UpsertThreads struct {
	Threads []model.Thread
}

// AppendMessage appends a message to a thread. Unknown thread ids are
// dropped, not errors: a push event for a thread not loaded locally is an
// expected race.
type AppendMessage struct {
	ThreadID string
	Message  model.Message
}

// MarkSeen zeroes a thread's unread count. No-op for unknown ids.
type MarkSeen struct {
	ThreadID string
}

// SelectThread sets the current thread pointer unconditionally. The id may
// reference a thread not yet in the table while creation is in flight; an
// empty id clears the selection.
type SelectThread struct {
	ThreadID string
}

func (UpsertThread) isCommand()  {}
func (UpsertThreads) isCommand() {}
func (AppendMessage) isCommand() {}
func (MarkSeen) isCommand()      {}
func (SelectThread) isCommand()  {}
