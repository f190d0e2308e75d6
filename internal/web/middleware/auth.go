package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ActorHeader carries the id of the investigator making the request.
// Authentication happens upstream; this service only records who acted.
const ActorHeader = "X-Actor-ID"

// Actor is middleware that reads the actor id from ActorHeader into the request context.
// Requests without the header are anonymous; a malformed id is rejected.
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(ActorHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error": "invalid `+ActorHeader+` header"}`, http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetActorInContext(r.Context(), id)))
		})
	}
}

// GetActorFromContext retrieves the actor id from the request context, nil when anonymous
func GetActorFromContext(ctx context.Context) *uuid.UUID {
	id, ok := ctx.Value(actorContextKey).(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}

// SetActorInContext adds an actor id to the context.
// This is primarily for testing - use the Actor middleware in production.
func SetActorInContext(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actorContextKey, id)
}
