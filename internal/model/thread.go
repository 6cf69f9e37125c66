// Package model defines data structures for the messaging subsystem.
package model

import (
	"errors"
	"fmt"
)

// ThreadType distinguishes direct conversations from group conversations.
type ThreadType string

const (
	ThreadTypeOneToOne ThreadType = "ONE_TO_ONE"
	ThreadTypeGroup    ThreadType = "GROUP"
)

// ErrInvariantViolation indicates thread data that a well-behaved backend
// should never produce, e.g. a direct thread without exactly one
// non-requester participant.
var ErrInvariantViolation = errors.New("thread invariant violation")

// Thread represents a conversation between the requesting user and one or
// more counterparties.
type Thread struct {
	ID             string        `json:"id"`
	Type           ThreadType    `json:"type"`
	ParticipantIDs []string      `json:"participantIds"`
	Messages       []Message     `json:"messages"`
	CreatedBy      string        `json:"createdBy"`
	UnreadCount    int           `json:"unreadCount"`
	Participants   []Participant `json:"participants,omitempty"`
}

// DeriveThreadType returns the thread type for a participant count.
// Exactly two participants make a direct thread, anything else is a group.
func DeriveThreadType(participantCount int) ThreadType {
	if participantCount == 2 {
		return ThreadTypeOneToOne
	}
	return ThreadTypeGroup
}

// Key returns the externally addressable handle for the thread: the thread
// id for groups, the other participant's id for direct threads. A direct
// thread whose participant set does not contain exactly one id besides the
// requester fails with ErrInvariantViolation rather than defaulting.
func (t *Thread) Key(requesterID string) (string, error) {
	if t.Type == ThreadTypeGroup {
		return t.ID, nil
	}

	var other string
	var found int
	for _, id := range t.ParticipantIDs {
		if id != requesterID {
			other = id
			found++
		}
	}

	if found != 1 {
		return "", fmt.Errorf("%w: thread %s has %d non-requester participants, want 1",
			ErrInvariantViolation, t.ID, found)
	}

	return other, nil
}

// ThreadListResponse is the response for listing threads.
type ThreadListResponse struct {
	Threads         []Thread `json:"threads"`
	CurrentThreadID string   `json:"currentThreadId,omitempty"`
}
