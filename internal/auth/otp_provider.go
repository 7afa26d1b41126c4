package auth

import "context"

// OtpProvider defines the interface for OTP operations
type OtpProvider interface {
	// RequestOTP issues a fresh code for phone, replacing any earlier one.
	RequestOTP(ctx context.Context, phone string) (code string, err error)
	// VerifyOTP consumes the code for phone when it matches.
	VerifyOTP(ctx context.Context, phone, code string) error
}
