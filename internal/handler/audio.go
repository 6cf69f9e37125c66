package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/deskfront/messaging-core/internal/composer"
	"github.com/deskfront/messaging-core/pkg/logger"
)

// maxAudioUploadBytes bounds a single recorded clip.
const maxAudioUploadBytes = 25 << 20

// AudioHandler handles recorded audio uploads. Audio bypasses the message
// pipeline: the clip goes to the transcription endpoint and the transcript
// comes back to the caller.
type AudioHandler struct {
	transcriber *composer.Transcriber
	logger      *logger.Logger
}

// NewAudioHandler creates a new audio handler.
func NewAudioHandler(tr *composer.Transcriber, log *logger.Logger) *AudioHandler {
	return &AudioHandler{
		transcriber: tr,
		logger:      log,
	}
}

// Transcribe handles POST /api/v1/audio/transcribe with a multipart
// "audio" part.
func (h *AudioHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUploadBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio upload")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio upload")
		return
	}

	transcript, err := h.transcriber.Transcribe(r.Context(), payload)
	if err != nil {
		if errors.Is(err, composer.ErrEmptyPayload) {
			writeError(w, http.StatusBadRequest, "audio payload is empty")
			return
		}
		h.logger.Error("transcription failed")
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": transcript})
}
