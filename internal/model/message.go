package model

import (
	"time"
)

// ContentType represents the kind of content a message carries.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeAudio ContentType = "audio"
)

// Message represents a single chat message. Messages are immutable once
// created; the id is generated client-side so the same id serves both the
// optimistic local insert and the authoritative remote record.
type Message struct {
	ID          string      `json:"id"`
	AuthorID    string      `json:"authorId"`
	Body        string      `json:"body"`
	ContentType ContentType `json:"contentType"`
	Attachments []string    `json:"attachments"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// SendMessageRequest is the request to send a message. Exactly one of
// ThreadID or RecipientIDs identifies the destination: an existing thread,
// or the recipients of a conversation that does not exist yet.
type SendMessageRequest struct {
	ThreadID     string   `json:"threadId,omitempty"`
	RecipientIDs []string `json:"recipientIds,omitempty"`
	Body         string   `json:"body"`
}

// SendMessageResponse is returned after a message is persisted, carrying
// the thread id so callers can navigate to the resulting conversation.
type SendMessageResponse struct {
	ThreadID string  `json:"threadId"`
	Message  Message `json:"message"`
}

// NewMessageEvent is the payload delivered over the live channel when a
// counterparty sends a message. Thread is populated when the conversation
// may not have been loaded by the receiver yet.
type NewMessageEvent struct {
	ThreadID string  `json:"threadId"`
	Message  Message `json:"message"`
	Thread   *Thread `json:"thread,omitempty"`
}
