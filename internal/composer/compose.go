// Package composer packages user input into message entities and handles
// audio capture and its out-of-band upload.
package composer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/deskfront/messaging-core/internal/model"
)

// ErrEmptyBody indicates a send attempt with no content. No message is
// produced and no network call is issued.
var ErrEmptyBody = errors.New("message body is empty")

// ComposeText builds a text message with a client-generated id. The id is
// collision-resistant (UUIDv7) so the same id serves optimistic insertion
// and the authoritative record.
func ComposeText(authorID, body string) (model.Message, error) {
	if body == "" {
		return model.Message{}, ErrEmptyBody
	}

	return model.Message{
		ID:          uuid.Must(uuid.NewV7()).String(),
		AuthorID:    authorID,
		Body:        body,
		ContentType: model.ContentTypeText,
		Attachments: []string{},
		CreatedAt:   time.Now().UTC(),
	}, nil
}
