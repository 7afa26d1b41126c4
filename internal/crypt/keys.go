package crypt

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/crypto/hkdf"
)

// sessionInfo binds derived keys to this protocol version.
const sessionInfo = "vault-session-v1"

var (
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrDecrypt          = errors.New("decryption failed")
)

// GenerateKeyPair generates an ECDH key pair on the P-256 curve
func GenerateKeyPair() (*ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	return priv, nil
}

// ParsePublicKey accepts a JWK object or a base64 uncompressed P-256 point.
func ParsePublicKey(raw []byte) (*ecdh.PublicKey, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrInvalidPublicKey
	}
	if raw[0] == '{' {
		return parseJWK(raw)
	}
	// A JSON string is unwrapped first so callers can pass the field as-is.
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		raw = []byte(s)
	}
	point, err := decodeBase64(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	pub, err := ecdh.P256().NewPublicKey(point)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

func parseJWK(raw []byte) (*ecdh.PublicKey, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if !jwk.IsPublic() {
		return nil, fmt.Errorf("%w: jwk carries private material", ErrInvalidPublicKey)
	}
	switch k := jwk.Key.(type) {
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return nil, fmt.Errorf("%w: unsupported curve %s", ErrInvalidPublicKey, k.Curve.Params().Name)
		}
		pub, err := k.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidPublicKey, jwk.Key)
	}
}

// EncodePublicKey returns the base64 uncompressed point encoding of pub.
func EncodePublicKey(pub *ecdh.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub.Bytes())
}

// PublicKeyJWK returns pub as a JWK document.
func PublicKeyJWK(pub *ecdh.PublicKey) (json.RawMessage, error) {
	// P-256 uncompressed point encoding: 0x04 || X(32) || Y(32)
	encoded := pub.Bytes()
	if len(encoded) != 65 || encoded[0] != 4 {
		return nil, fmt.Errorf("unexpected public key encoding: len=%d", len(encoded))
	}
	key := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(encoded[1:33]),
		Y:     new(big.Int).SetBytes(encoded[33:65]),
	}
	b, err := jose.JSONWebKey{Key: key, Algorithm: "ECDH-ES", Use: "enc"}.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal jwk: %w", err)
	}
	return b, nil
}

// DeriveSharedSecret runs ECDH and stretches the result into a 32-byte AES key.
func DeriveSharedSecret(priv *ecdh.PrivateKey, peer *ecdh.PublicKey) ([]byte, error) {
	shared, err := priv.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(sessionInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
