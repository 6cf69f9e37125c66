package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateMessageBody validates message body content.
func ValidateMessageBody(body string) error {
	if len(body) == 0 {
		return errors.New("body cannot be empty")
	}
	if len(body) > 100000 { // ~100KB limit
		return errors.New("body exceeds maximum length")
	}
	if !utf8.ValidString(body) {
		return errors.New("body must be valid UTF-8")
	}
	return nil
}

// ValidateThreadKey validates a thread key. Keys address either a thread
// id or a participant id, so this only bounds the shape, not the format.
func ValidateThreadKey(key string) error {
	if len(key) == 0 {
		return errors.New("thread key cannot be empty")
	}
	if len(key) > 128 {
		return errors.New("thread key exceeds maximum length")
	}
	return nil
}

// ValidateRecipientIDs validates a recipient id list.
func ValidateRecipientIDs(ids []string) error {
	if len(ids) > 64 {
		return errors.New("too many recipients")
	}
	for _, id := range ids {
		if len(id) == 0 {
			return errors.New("recipient ID cannot be empty")
		}
		if len(id) > 128 {
			return errors.New("recipient ID exceeds maximum length")
		}
	}
	return nil
}

// ValidateSearchQuery validates a participant search query.
func ValidateSearchQuery(query string) error {
	if len(query) > 256 {
		return errors.New("query exceeds maximum length")
	}
	if !utf8.ValidString(query) {
		return errors.New("query must be valid UTF-8")
	}
	return nil
}
