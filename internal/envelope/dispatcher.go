package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/signalix/vault/internal/crypt"
	"github.com/signalix/vault/internal/metrics"
	"github.com/signalix/vault/internal/session"
)

const maxBodyBytes = 1 << 20

// Error messages returned to the client.
const (
	msgDecryptFailed   = "decryption failed"
	msgInvalidSession  = "invalid session"
	msgMissingSession  = "missing session id"
	msgSessionNotFound = "session not found"
	msgBodyTooLarge    = "request body too large"
	msgBodyUnreadable  = "invalid request body"
	msgPlainBody       = "encryptedData required"
)

var errNotObject = errors.New("decrypted payload is not a JSON object")

// Config controls dispatcher behaviour.
type Config struct {
	// DefaultPassword is used in password mode when the request carries none.
	DefaultPassword string
	// AllowPlaintextFallback sends session-mode responses in the clear when the
	// session secret vanished before the response was written.
	AllowPlaintextFallback bool
}

// Dispatcher resolves and applies the encryption mode of a request.
type Dispatcher struct {
	sessions session.Store
	cfg      Config
}

// NewDispatcher creates a dispatcher backed by sessions
func NewDispatcher(sessions session.Store, cfg Config) *Dispatcher {
	return &Dispatcher{sessions: sessions, cfg: cfg}
}

// Password is middleware for password-mode routes.
func (d *Dispatcher) Password() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := readBody(w, r)
			if !ok {
				return
			}
			env, hasEnvelope := parseEnvelope(raw)
			if !hasEnvelope {
				r.Body = io.NopCloser(bytes.NewReader(raw))
				next.ServeHTTP(w, r.WithContext(withInfo(r.Context(), requestInfo{mode: ModeNone})))
				return
			}

			password := env.Password
			if password == "" {
				password = d.cfg.DefaultPassword
			}
			plain, err := crypt.DecryptWithPassword(*env.EncryptedData, password)
			if err == nil {
				err = requireObject(plain)
			}
			if err != nil {
				metrics.DecryptFailures.WithLabelValues(ModePassword.String()).Inc()
				slog.Warn("password-mode decrypt failed", "path", r.URL.Path, "error", err)
				RespondError(w, http.StatusBadRequest, msgDecryptFailed)
				return
			}

			setBody(r, plain)
			info := requestInfo{mode: ModePassword, password: password}
			next.ServeHTTP(w, r.WithContext(withInfo(r.Context(), info)))
		})
	}
}

// Session is middleware for session-mode routes.
func (d *Dispatcher) Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
			raw, ok := readBody(w, r)
			if !ok {
				return
			}
			env, hasEnvelope := parseEnvelope(raw)

			switch {
			case hasEnvelope && sessionID == "":
				RespondError(w, http.StatusBadRequest, msgMissingSession)
				return
			case sessionID == "":
				r.Body = io.NopCloser(bytes.NewReader(raw))
				next.ServeHTTP(w, r.WithContext(withInfo(r.Context(), requestInfo{mode: ModeNone})))
				return
			}

			secret, found := d.sessions.Lookup(sessionID)
			if !found {
				metrics.DecryptFailures.WithLabelValues(ModeSession.String()).Inc()
				slog.Warn("unknown session", "path", r.URL.Path)
				RespondError(w, http.StatusBadRequest, msgInvalidSession)
				return
			}

			// With a session header, a body must be encrypted; only bodiless requests pass as is.
			if !hasEnvelope && len(bytes.TrimSpace(raw)) > 0 {
				metrics.DecryptFailures.WithLabelValues(ModeSession.String()).Inc()
				RespondError(w, http.StatusBadRequest, msgPlainBody)
				return
			}

			if hasEnvelope {
				plain, err := crypt.Decrypt(*env.EncryptedData, secret)
				if err == nil {
					err = requireObject(plain)
				}
				if err != nil {
					metrics.DecryptFailures.WithLabelValues(ModeSession.String()).Inc()
					slog.Warn("session-mode decrypt failed", "path", r.URL.Path, "error", err)
					RespondError(w, http.StatusBadRequest, msgDecryptFailed)
					return
				}
				setBody(r, plain)
			} else {
				r.Body = io.NopCloser(bytes.NewReader(raw))
			}

			info := requestInfo{mode: ModeSession, sessionID: sessionID}
			next.ServeHTTP(w, r.WithContext(withInfo(r.Context(), info)))
		})
	}
}

// Respond writes v encrypted according to the request's mode.
func (d *Dispatcher) Respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	info := infoFrom(r.Context())
	switch info.mode {
	case ModePassword:
		d.respondPassword(w, status, v, info.password)
	case ModeSession:
		d.respondSession(w, status, v, info.sessionID)
	default:
		WriteJSON(w, status, v)
	}
}

func (d *Dispatcher) respondPassword(w http.ResponseWriter, status int, v any, password string) {
	plain, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	ciphertext, err := crypt.EncryptWithPassword(plain, password)
	if err != nil {
		slog.Error("failed to encrypt response", "mode", ModePassword.String(), "error", err)
		RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	WriteJSON(w, status, encryptedResponse{Encrypted: true, Data: ciphertext})
}

func (d *Dispatcher) respondSession(w http.ResponseWriter, status int, v any, sessionID string) {
	secret, ok := d.sessions.Lookup(sessionID)
	if !ok {
		if d.cfg.AllowPlaintextFallback {
			slog.Warn("session secret gone; sending plaintext response", "status", status)
			WriteJSON(w, status, v)
			return
		}
		slog.Warn("session secret gone before response could be encrypted")
		RespondError(w, http.StatusBadRequest, msgSessionNotFound)
		return
	}

	plain, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	ciphertext, err := crypt.Encrypt(plain, secret)
	if err != nil {
		slog.Error("failed to encrypt response", "mode", ModeSession.String(), "error", err)
		RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	WriteJSON(w, status, encryptedResponse{Encrypted: true, Data: ciphertext})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		return nil, true
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	_ = r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		} else {
			slog.Debug("failed to read request body", "path", r.URL.Path, "error", err)
			RespondError(w, http.StatusBadRequest, msgBodyUnreadable)
		}
		return nil, false
	}
	return raw, true
}

// parseEnvelope reports whether raw is an object carrying a string encryptedData field.
func parseEnvelope(raw []byte) (encryptedBody, bool) {
	var env encryptedBody
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, false
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.EncryptedData == nil {
		return env, false
	}
	return env, true
}

func requireObject(plain []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(plain, &obj); err != nil || obj == nil {
		return errNotObject
	}
	return nil
}

func setBody(r *http.Request, body []byte) {
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
}
