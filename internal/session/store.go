// Package session keeps DH session secrets and the identity bound to each session.
//
// Secrets live in process memory only. The server key pair is generated when the store
// is created, so a restart invalidates every session.
package session

import (
	"crypto/ecdh"
	"errors"
	"fmt"
	"sync"

	"github.com/signalix/vault/internal/crypt"
	"github.com/signalix/vault/internal/metrics"
)

var (
	ErrSessionExists = errors.New("session id already in use")
	ErrNotFound      = errors.New("session not found")
)

// State is the protocol state of a session.
type State int

const (
	NoSession State = iota
	Established
	OtpPending
	Authenticated
)

func (s State) String() string {
	switch s {
	case Established:
		return "established"
	case OtpPending:
		return "otp_pending"
	case Authenticated:
		return "authenticated"
	default:
		return "none"
	}
}

// Store maps session ids to derived secrets and bound identities.
// Implementations must be safe for concurrent use.
type Store interface {
	ServerPublicKey() *ecdh.PublicKey
	// Establish derives the secret for peer and stores it under id.
	Establish(id string, peer *ecdh.PublicKey) ([]byte, error)
	Lookup(id string) ([]byte, bool)
	// Clear removes everything known about id. Clearing an unknown id is a no-op.
	Clear(id string)
	// Bind attaches a phone number to a live session and moves it to OtpPending.
	Bind(id, phone string) error
	Binding(id string) (string, bool)
	MarkAuthenticated(id string) error
	State(id string) State
}

type entry struct {
	secret []byte
	phone  string
	state  State
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	priv *ecdh.PrivateKey

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewMemoryStore creates a store with a fresh server key pair
func NewMemoryStore() (*MemoryStore, error) {
	priv, err := crypt.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate server key pair: %w", err)
	}
	return &MemoryStore{
		priv:     priv,
		sessions: make(map[string]*entry),
	}, nil
}

func (s *MemoryStore) ServerPublicKey() *ecdh.PublicKey {
	return s.priv.PublicKey()
}

func (s *MemoryStore) Establish(id string, peer *ecdh.PublicKey) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("establish: empty session id")
	}
	secret, err := crypt.DeriveSharedSecret(s.priv, peer)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return nil, ErrSessionExists
	}
	s.sessions[id] = &entry{secret: secret, state: Established}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return secret, nil
}

func (s *MemoryStore) Lookup(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return e.secret, true
}

func (s *MemoryStore) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
}

func (s *MemoryStore) Bind(id, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.phone = phone
	e.state = OtpPending
	return nil
}

func (s *MemoryStore) Binding(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok || e.phone == "" {
		return "", false
	}
	return e.phone, true
}

func (s *MemoryStore) MarkAuthenticated(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.state = Authenticated
	return nil
}

func (s *MemoryStore) State(id string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return NoSession
	}
	return e.state
}

// Len returns the number of live sessions
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
