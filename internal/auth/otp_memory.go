package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/signalix/vault/internal/metrics"
)

const otpLength = 6

var (
	ErrInvalidOTP = errors.New("invalid otp")
	ErrOTPExpired = errors.New("otp expired")
)

type otpRecord struct {
	hash      []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryOTP keeps at most one live code per phone number in memory.
// Only a salted hash of each code is stored.
type MemoryOTP struct {
	salt string
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	codes map[string]otpRecord
}

// NewMemoryOTP creates an OTP provider. A ttl of zero disables expiry.
func NewMemoryOTP(salt string, ttl time.Duration) *MemoryOTP {
	return &MemoryOTP{
		salt:  salt,
		ttl:   ttl,
		now:   time.Now,
		codes: make(map[string]otpRecord),
	}
}

// RequestOTP generates a 6-digit code and overwrites any live code for phone.
func (p *MemoryOTP) RequestOTP(_ context.Context, phone string) (string, error) {
	code, err := generateOTPCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	rec := otpRecord{hash: hashOTP(phone, code, p.salt)}
	if p.ttl > 0 {
		rec.expiresAt = p.now().Add(p.ttl)
	}

	p.mu.Lock()
	p.codes[phone] = rec
	p.mu.Unlock()

	metrics.OTPIssued.Inc()
	return code, nil
}

// VerifyOTP deletes the code on a match. A mismatch leaves the code in place so the user can retry.
func (p *MemoryOTP) VerifyOTP(_ context.Context, phone, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.codes[phone]
	if !ok {
		return ErrInvalidOTP
	}
	if !rec.expiresAt.IsZero() && !p.now().Before(rec.expiresAt) {
		delete(p.codes, phone)
		return ErrOTPExpired
	}
	if subtle.ConstantTimeCompare(hashOTP(phone, code, p.salt), rec.hash) != 1 {
		return ErrInvalidOTP
	}
	delete(p.codes, phone)
	return nil
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, n.Int64()), nil
}

// hashOTP returns SHA-256(phone:code:salt)
func hashOTP(phone, code, salt string) []byte {
	sum := sha256.Sum256([]byte(phone + ":" + code + ":" + salt))
	return sum[:]
}
