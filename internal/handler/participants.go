package handler

import (
	"net/http"

	"github.com/deskfront/messaging-core/internal/middleware"
	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/internal/service"
	"github.com/deskfront/messaging-core/pkg/logger"
)

// ParticipantHandler handles recipient search endpoints.
type ParticipantHandler struct {
	sessions *service.SessionManager
	logger   *logger.Logger
}

// NewParticipantHandler creates a new participant handler.
func NewParticipantHandler(sessions *service.SessionManager, log *logger.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		sessions: sessions,
		logger:   log,
	}
}

// Search handles GET /api/v1/participants/search?q=
func (h *ParticipantHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(ctx, middleware.GetParticipant(ctx))

	query := r.URL.Query().Get("q")
	if err := middleware.ValidateSearchQuery(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := sess.Chat.SearchParticipants(ctx, query)
	if err != nil {
		h.logger.Error("participant search failed")
		writeError(w, http.StatusBadGateway, "participant search failed")
		return
	}

	writeJSON(w, http.StatusOK, model.SearchParticipantsResponse{Participants: results})
}
