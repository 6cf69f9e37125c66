package model

// Participant is a display-ready projection of a user or agent identity
// within a thread. It is derived from the identity resource and never
// persisted by this subsystem.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// SearchParticipantsResponse is the response for recipient search.
type SearchParticipantsResponse struct {
	Participants []Participant `json:"participants"`
}
