package handlers

import (
	"crypto/ecdh"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/signalix/vault/internal/crypt"
	"github.com/signalix/vault/internal/envelope"
	"github.com/signalix/vault/internal/session"
	"github.com/signalix/vault/internal/validate"
)

const maxSessionIDAttempts = 3

// SessionHandler serves the server public key and establishes DH sessions.
type SessionHandler struct {
	sessions session.Store
}

// NewSessionHandler creates a session handler
func NewSessionHandler(sessions session.Store) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type publicKeyResponse struct {
	PublicKey string          `json:"publicKey"`
	JWK       json.RawMessage `json:"jwk"`
}

type keyExchangeRequest struct {
	ClientPublicKey json.RawMessage `json:"clientPublicKey"`
}

type keyExchangeResponse struct {
	Message         string `json:"message"`
	ServerPublicKey string `json:"serverPublicKey"`
	SessionID       string `json:"sessionId"`
}

// HandlePublicKey handles GET /public-key
func (h *SessionHandler) HandlePublicKey(w http.ResponseWriter, r *http.Request) {
	pub := h.sessions.ServerPublicKey()
	jwk, err := crypt.PublicKeyJWK(pub)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	envelope.WriteJSON(w, http.StatusOK, publicKeyResponse{
		PublicKey: crypt.EncodePublicKey(pub),
		JWK:       jwk,
	})
}

// HandleKeyExchange handles POST /key-exchange
func (h *SessionHandler) HandleKeyExchange(w http.ResponseWriter, r *http.Request) {
	var req keyExchangeRequest
	if err := validate.KeyExchange.Decode(r.Body, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	peer, err := crypt.ParsePublicKey(req.ClientPublicKey)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	sessionID, err := h.establish(peer)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	slog.Info("session established", "session_id", sessionID)

	envelope.WriteJSON(w, http.StatusOK, keyExchangeResponse{
		Message:         "key exchange successful",
		ServerPublicKey: crypt.EncodePublicKey(h.sessions.ServerPublicKey()),
		SessionID:       sessionID,
	})
}

func (h *SessionHandler) establish(peer *ecdh.PublicKey) (string, error) {
	var err error
	for i := 0; i < maxSessionIDAttempts; i++ {
		id := uuid.NewString()
		if _, err = h.sessions.Establish(id, peer); !errors.Is(err, session.ErrSessionExists) {
			return id, err
		}
	}
	return "", err
}
