package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashOTP_consistency(t *testing.T) {
	phone, code, salt := "+49123", "123456", "test-salt"
	assert.Equal(t, hashOTP(phone, code, salt), hashOTP(phone, code, salt))
	assert.Len(t, hashOTP(phone, code, salt), 32)
}

func TestHashOTP_differentInputsDifferentHash(t *testing.T) {
	salt := "salt"
	h1 := hashOTP("+49123", "123456", salt)
	h2 := hashOTP("+49124", "123456", salt)
	h3 := hashOTP("+49123", "654321", salt)
	h4 := hashOTP("+49123", "123456", "other")
	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h1, h4)
}

func TestMemoryOTP_singleUse(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryOTP("salt", 0)

	code, err := p.RequestOTP(ctx, "555")
	require.NoError(t, err)
	assert.Len(t, code, otpLength)

	require.NoError(t, p.VerifyOTP(ctx, "555", code))
	assert.ErrorIs(t, p.VerifyOTP(ctx, "555", code), ErrInvalidOTP, "a consumed code must not verify again")
}

func TestMemoryOTP_mismatchKeepsCode(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryOTP("salt", 0)

	code, err := p.RequestOTP(ctx, "555")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, p.VerifyOTP(ctx, "555", wrong), ErrInvalidOTP)
	assert.NoError(t, p.VerifyOTP(ctx, "555", code), "retry with the right code after a mismatch")
}

func TestMemoryOTP_reissueOverwrites(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryOTP("salt", 0)

	first, err := p.RequestOTP(ctx, "555")
	require.NoError(t, err)
	second, err := p.RequestOTP(ctx, "555")
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, p.VerifyOTP(ctx, "555", first), ErrInvalidOTP)
	}
	assert.NoError(t, p.VerifyOTP(ctx, "555", second))
}

func TestMemoryOTP_phonesAreIndependent(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryOTP("salt", 0)

	code, err := p.RequestOTP(ctx, "555")
	require.NoError(t, err)
	assert.ErrorIs(t, p.VerifyOTP(ctx, "556", code), ErrInvalidOTP)
}

func TestMemoryOTP_expiry(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryOTP("salt", time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	code, err := p.RequestOTP(ctx, "555")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, p.VerifyOTP(ctx, "555", code), ErrOTPExpired)
	assert.ErrorIs(t, p.VerifyOTP(ctx, "555", code), ErrInvalidOTP, "expired codes are removed")
}
