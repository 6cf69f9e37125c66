package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/deskfront/messaging-core/internal/model"
)

// ThreadAPI is the thread resource surface of the backend. Threads come
// back without expanded participants; expansion is the directory's job.
type ThreadAPI interface {
	// FetchAll returns every thread the requester belongs to.
	FetchAll(ctx context.Context, requesterID string) ([]model.Thread, error)

	// FetchByKey returns the thread addressed by key (a thread id or, for
	// direct conversations, a participant id). Returns nil when the key
	// matches nothing.
	FetchByKey(ctx context.Context, requesterID, key string) (*model.Thread, error)

	// Create persists a new thread and returns it with its canonical id.
	Create(ctx context.Context, requesterID string, thread model.Thread) (*model.Thread, error)

	// SaveMessage appends a message to an existing thread.
	SaveMessage(ctx context.Context, requesterID, threadID string, msg model.Message) error
}

// ThreadClient implements ThreadAPI against the backend RPC surface.
type ThreadClient struct {
	client *Client
}

// NewThreadClient creates a thread resource client.
func NewThreadClient(client *Client) *ThreadClient {
	return &ThreadClient{client: client}
}

// FetchAll calls chats/getAllChats.
func (t *ThreadClient) FetchAll(ctx context.Context, requesterID string) ([]model.Thread, error) {
	var threads []model.Thread
	if err := t.client.post(ctx, "chats/getAllChats", requesterID, nil, &threads); err != nil {
		return nil, fmt.Errorf("failed to fetch threads: %w", err)
	}
	return threads, nil
}

// FetchByKey calls chats/getChatById. The backend resolves the key against
// both thread ids and participant ids; an unknown key is not an error.
func (t *ThreadClient) FetchByKey(ctx context.Context, requesterID, key string) (*model.Thread, error) {
	var thread *model.Thread
	err := t.client.post(ctx, "chats/getChatById", requesterID, map[string]any{"chatId": key}, &thread)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread: %w", err)
	}
	return thread, nil
}

// Create calls chats/createChat and returns the thread with the id the
// backend assigned.
func (t *ThreadClient) Create(ctx context.Context, requesterID string, thread model.Thread) (*model.Thread, error) {
	var created model.Thread
	err := t.client.post(ctx, "chats/createChat", requesterID, map[string]any{"chatData": thread}, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("backend created thread without an id")
	}
	return &created, nil
}

// SaveMessage calls chats/saveMessage.
func (t *ThreadClient) SaveMessage(ctx context.Context, requesterID, threadID string, msg model.Message) error {
	err := t.client.post(ctx, "chats/saveMessage", requesterID, map[string]any{
		"chatId":      threadID,
		"messageData": msg,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}
