// Package envelope selects the encryption mode of each request, decrypts inbound bodies
// and encrypts outbound responses to match.
//
// Password mode wraps payloads with a key derived from a shared password. Session mode
// uses the secret derived during key exchange, looked up by the x-session-id header.
// Requests without an encryptedData field and without a session header pass through in
// the clear.
package envelope

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// SessionHeader carries the session id in session mode.
const SessionHeader = "x-session-id"

// Mode is the encryption mode resolved for a request.
type Mode int

const (
	ModeNone Mode = iota
	ModePassword
	ModeSession
)

func (m Mode) String() string {
	switch m {
	case ModePassword:
		return "password"
	case ModeSession:
		return "dh"
	default:
		return "none"
	}
}

type contextKey struct{}

type requestInfo struct {
	mode      Mode
	sessionID string
	password  string
}

func withInfo(ctx context.Context, info requestInfo) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

func infoFrom(ctx context.Context) requestInfo {
	info, _ := ctx.Value(contextKey{}).(requestInfo)
	return info
}

// ModeFrom returns the mode resolved by the dispatcher, ModeNone if it did not run.
func ModeFrom(ctx context.Context) Mode {
	return infoFrom(ctx).mode
}

// SessionIDFrom returns the session id of a session-mode request.
func SessionIDFrom(ctx context.Context) string {
	return infoFrom(ctx).sessionID
}

// encryptedBody is the inbound wire shape.
type encryptedBody struct {
	EncryptedData *string `json:"encryptedData"`
	Password      string  `json:"password,omitempty"`
}

// encryptedResponse is the outbound wire shape.
type encryptedResponse struct {
	Encrypted bool   `json:"encrypted"`
	Data      string `json:"data"`
}

// WriteJSON writes v as plain JSON.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// RespondError sends a JSON error response. Errors are never encrypted.
func RespondError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
