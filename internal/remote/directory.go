package remote

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/deskfront/messaging-core/internal/model"
)

// DirectoryAPI is the identity resource surface of the backend.
type DirectoryAPI interface {
	// FetchParticipant returns the identity record for a participant id.
	FetchParticipant(ctx context.Context, requesterID, participantID string) (*model.Participant, error)

	// SearchByName returns candidate participants matching a name prefix.
	SearchByName(ctx context.Context, requesterID, query string) ([]model.Participant, error)
}

// agentRecord is the backend's identity representation. It carries more
// fields than the subsystem needs; only the display projection survives.
type agentRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

// DirectoryClient implements DirectoryAPI against the backend RPC surface.
type DirectoryClient struct {
	client *Client
}

// NewDirectoryClient creates an identity resource client.
func NewDirectoryClient(client *Client) *DirectoryClient {
	return &DirectoryClient{client: client}
}

// FetchParticipant calls agents/getAgentById.
func (d *DirectoryClient) FetchParticipant(ctx context.Context, requesterID, participantID string) (*model.Participant, error) {
	var record agentRecord
	err := d.client.post(ctx, "agents/getAgentById", requesterID, map[string]any{"agentId": participantID}, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch participant %s: %w", participantID, err)
	}

	p := toParticipant(record)
	return &p, nil
}

// SearchByName calls agents/getAgentsByName.
func (d *DirectoryClient) SearchByName(ctx context.Context, requesterID, query string) ([]model.Participant, error) {
	var records []agentRecord
	err := d.client.post(ctx, "agents/getAgentsByName", requesterID, map[string]any{"name": query}, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to search participants: %w", err)
	}

	return lo.Map(records, func(r agentRecord, _ int) model.Participant {
		return toParticipant(r)
	}), nil
}

func toParticipant(r agentRecord) model.Participant {
	return model.Participant{
		ID:     r.ID,
		Name:   r.Name,
		Avatar: r.Avatar,
	}
}
