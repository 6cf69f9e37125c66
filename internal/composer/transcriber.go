package composer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/deskfront/messaging-core/pkg/logger"
	"github.com/deskfront/messaging-core/pkg/metrics"
)

// ErrEmptyPayload indicates a transcription attempt with no audio data.
var ErrEmptyPayload = errors.New("audio payload is empty")

// Transcriber uploads recorded audio to the transcription endpoint. The
// upload is out-of-band from the message pipeline: the transcript comes
// back to the caller and no audio Message is produced. Product owners have
// been flagged on the asymmetry with ContentTypeAudio messages arriving
// over the live channel.
type Transcriber struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

// NewTranscriber creates a transcription client.
func NewTranscriber(apiKey, model string, log *logger.Logger) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("transcription API key is required")
	}

	if model == "" {
		model = openai.Whisper1
	}

	return &Transcriber{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: log,
	}, nil
}

// Transcribe sends the payload as a multipart upload and returns the
// transcript. The payload is sniffed to derive the upload filename the
// endpoint uses for format detection.
func (t *Transcriber) Transcribe(ctx context.Context, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}

	ext := mimetype.Detect(payload).Extension()
	if ext == "" {
		ext = ".mp3"
	}

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "audio" + ext,
		Reader:   bytes.NewReader(payload),
	})
	if err != nil {
		metrics.RecordTranscription("error", time.Since(start).Seconds())
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	metrics.RecordTranscription("ok", time.Since(start).Seconds())
	t.logger.Debug("audio transcribed",
		zap.Int("payload_bytes", len(payload)),
		zap.Int("transcript_chars", len(resp.Text)))

	return resp.Text, nil
}
