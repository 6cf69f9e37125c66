// Package handler provides HTTP handlers for the messaging facade.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deskfront/messaging-core/internal/middleware"
	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/internal/service"
	"github.com/deskfront/messaging-core/pkg/logger"
)

// ThreadHandler handles thread endpoints.
type ThreadHandler struct {
	sessions *service.SessionManager
	logger   *logger.Logger
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(sessions *service.SessionManager, log *logger.Logger) *ThreadHandler {
	return &ThreadHandler{
		sessions: sessions,
		logger:   log,
	}
}

// List handles GET /api/v1/threads
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(ctx, middleware.GetParticipant(ctx))

	threads, err := sess.Chat.FetchThreads(ctx)
	if err != nil {
		h.logger.Error("failed to fetch threads")
		writeError(w, http.StatusBadGateway, "failed to fetch threads")
		return
	}

	writeJSON(w, http.StatusOK, model.ThreadListResponse{
		Threads:         threads,
		CurrentThreadID: sess.Chat.CurrentThreadID(),
	})
}

// Open handles POST /api/v1/threads/{key}/open
func (h *ThreadHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(ctx, middleware.GetParticipant(ctx))
	threadKey := chi.URLParam(r, "key")

	if err := middleware.ValidateThreadKey(threadKey); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	thread, err := sess.Chat.OpenThread(ctx, threadKey)
	if err != nil {
		h.logger.Error("failed to open thread")
		writeError(w, http.StatusBadGateway, "failed to open thread")
		return
	}

	// An unknown key is a new, empty conversation rather than an error.
	if thread == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, thread)
}

// Select handles POST /api/v1/threads/{key}/select
func (h *ThreadHandler) Select(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(ctx, middleware.GetParticipant(ctx))

	sess.Chat.SelectThread(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

// MarkSeen handles POST /api/v1/threads/{key}/seen
func (h *ThreadHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(ctx, middleware.GetParticipant(ctx))

	sess.Chat.MarkSeen(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

// Current handles GET /api/v1/threads/current
func (h *ThreadHandler) Current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(ctx, middleware.GetParticipant(ctx))

	thread := sess.Chat.CurrentThread()
	if thread == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, thread)
}

// SignOut handles POST /api/v1/session/signout
func (h *ThreadHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.sessions.SignOut(middleware.GetUserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
