// Package directory resolves participant identifiers into display-ready
// participant records.
package directory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/internal/remote"
	"github.com/deskfront/messaging-core/pkg/logger"
)

// LookupError indicates identity resolution failed for a specific
// participant id.
type LookupError struct {
	ParticipantID string
	Err           error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("directory lookup failed for participant %s: %v", e.ParticipantID, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Directory resolves participants through the identity resource API.
type Directory struct {
	api    remote.DirectoryAPI
	logger *logger.Logger
}

// New creates a participant directory.
func New(api remote.DirectoryAPI, log *logger.Logger) *Directory {
	return &Directory{
		api:    api,
		logger: log,
	}
}

// Resolve returns the participant record for a single id.
func (d *Directory) Resolve(ctx context.Context, requesterID, participantID string) (*model.Participant, error) {
	p, err := d.api.FetchParticipant(ctx, requesterID, participantID)
	if err != nil {
		return nil, &LookupError{ParticipantID: participantID, Err: err}
	}
	return p, nil
}

// Expand resolves a thread's participant id list into participant records.
// The requester is placed first without a remote lookup; the remaining ids
// are resolved in input order. Any single failure fails the whole
// expansion so callers never see a partial participant list.
func (d *Directory) Expand(ctx context.Context, requester model.Participant, participantIDs []string) ([]model.Participant, error) {
	participants := []model.Participant{requester}

	for _, id := range participantIDs {
		if id == requester.ID {
			continue
		}

		p, err := d.Resolve(ctx, requester.ID, id)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}

	return participants, nil
}

// SearchByName returns candidate participants for a recipient search query.
// An empty query short-circuits to no candidates.
func (d *Directory) SearchByName(ctx context.Context, requesterID, query string) ([]model.Participant, error) {
	if query == "" {
		return nil, nil
	}

	results, err := d.api.SearchByName(ctx, requesterID, query)
	if err != nil {
		d.logger.Warn("participant search failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	return results, nil
}
