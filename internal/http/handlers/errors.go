package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/signalix/vault/internal/auth"
	"github.com/signalix/vault/internal/crypt"
	"github.com/signalix/vault/internal/db"
	"github.com/signalix/vault/internal/envelope"
	"github.com/signalix/vault/internal/repo"
	"github.com/signalix/vault/internal/session"
	"github.com/signalix/vault/internal/validate"
)

// respondWithError maps err to a status and writes it as plain JSON.
// Connection and unexpected failures are logged and reported without detail.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	switch {
	case errors.Is(err, db.ErrConnection), errors.Is(err, db.ErrShutdown):
		slog.Error("persistence unavailable", "path", r.URL.Path, "error", err)
	case status >= http.StatusInternalServerError:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	default:
		slog.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	envelope.RespondError(w, status, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, validate.ErrInvalid):
		return http.StatusBadRequest, validate.Message(err)
	case errors.Is(err, crypt.ErrInvalidPublicKey):
		return http.StatusBadRequest, "invalid client public key"
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusBadRequest, "user already exists"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, auth.ErrOTPExpired):
		return http.StatusBadRequest, "otp expired"
	case errors.Is(err, auth.ErrInvalidOTP):
		return http.StatusBadRequest, "invalid otp"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid phone number or password"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusBadRequest, "session not found"
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound, "data not found"
	case errors.Is(err, repo.ErrDuplicate):
		return http.StatusBadRequest, "record already exists"
	case errors.Is(err, db.ErrConnection), errors.Is(err, db.ErrShutdown):
		return http.StatusInternalServerError, "database unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// maskPhone masks a phone number for logging (e.g., +49******89)
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}

	// Keep first 2 and last 2 characters, mask the rest
	prefix := phone[:2]
	suffix := phone[len(phone)-2:]
	masked := strings.Repeat("*", len(phone)-4)
	return prefix + masked + suffix
}
