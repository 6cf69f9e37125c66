package composer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskfront/messaging-core/internal/model"
)

func TestComposeText(t *testing.T) {
	before := time.Now().UTC()
	msg, err := ComposeText("alice", "hello there")
	require.NoError(t, err)

	assert.Equal(t, "alice", msg.AuthorID)
	assert.Equal(t, "hello there", msg.Body)
	assert.Equal(t, model.ContentTypeText, msg.ContentType)
	assert.NotNil(t, msg.Attachments)
	assert.Empty(t, msg.Attachments)
	assert.False(t, msg.CreatedAt.Before(before))

	_, err = uuid.Parse(msg.ID)
	assert.NoError(t, err, "id must be a valid UUID")
}

func TestComposeTextEmptyBody(t *testing.T) {
	_, err := ComposeText("alice", "")
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestComposeTextIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg, err := ComposeText("alice", "hi")
		require.NoError(t, err)
		assert.False(t, seen[msg.ID], "duplicate id %s", msg.ID)
		seen[msg.ID] = true
	}
}
