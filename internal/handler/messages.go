package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deskfront/messaging-core/internal/composer"
	"github.com/deskfront/messaging-core/internal/middleware"
	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/internal/service"
	"github.com/deskfront/messaging-core/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	sessions *service.SessionManager
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(sessions *service.SessionManager, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		sessions: sessions,
		logger:   log,
	}
}

// Send handles POST /api/v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(ctx, middleware.GetParticipant(ctx))

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageBody(req.Body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateRecipientIDs(req.RecipientIDs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := sess.Chat.SendMessage(ctx, req)
	if err != nil {
		if errors.Is(err, composer.ErrEmptyBody) || errors.Is(err, service.ErrNoRecipients) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to send message")
		writeError(w, http.StatusBadGateway, "failed to send message")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}
