// Package middleware provides HTTP middleware for the messaging facade.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/deskfront/messaging-core/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the requester's user ID.
	UserIDKey ContextKey = "user_id"
	// ParticipantKey is the context key for the requester's display
	// projection.
	ParticipantKey ContextKey = "participant"
)

// Claims represents JWT claims. The token is an opaque capability from the
// subsystem's point of view: whoever can present it is the requester it
// names.
type Claims struct {
	jwt.RegisteredClaims
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Auth creates JWT authentication middleware.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			tokenString := parts[1]

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			participant := model.Participant{
				ID:     claims.Subject,
				Name:   claims.Name,
				Avatar: claims.Avatar,
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, ParticipantKey, participant)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID gets the requester's user ID from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetParticipant gets the requester's participant projection from context.
func GetParticipant(ctx context.Context) model.Participant {
	if v := ctx.Value(ParticipantKey); v != nil {
		return v.(model.Participant)
	}
	return model.Participant{}
}
