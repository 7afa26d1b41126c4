package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/signalix/vault/internal/auth"
	"github.com/signalix/vault/internal/envelope"
	"github.com/signalix/vault/internal/model"
	"github.com/signalix/vault/internal/repo"
	"github.com/signalix/vault/internal/session"
)

type contextKey string

const (
	userKey      contextKey = "user"
	sessionIDKey contextKey = "session_id"
)

// AuthMiddleware validates bearer JWTs, loads the user, and attaches it to the context
func AuthMiddleware(jwtService *auth.JWTService, userRepo repo.UserRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				envelope.RespondError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				envelope.RespondError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				envelope.RespondError(w, http.StatusUnauthorized, "missing token")
				return
			}

			claims, err := jwtService.VerifyToken(tokenString)
			if err != nil {
				envelope.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			user, err := userRepo.GetByPhone(r.Context(), claims.Subject)
			if err != nil {
				envelope.RespondError(w, http.StatusUnauthorized, "user not found")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, &user)
			if claims.SessionID != "" {
				ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticatedSession rejects session-mode requests whose session has not
// completed OTP verification or password login. It must run after the session dispatcher.
func RequireAuthenticatedSession(sessions session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := envelope.SessionIDFrom(r.Context())
			if id == "" || sessions.State(id) != session.Authenticated {
				envelope.RespondError(w, http.StatusUnauthorized, "session not authenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser returns the user attached to the request context (set by AuthMiddleware)
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// GetSessionID returns the session id carried in the access token
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}
