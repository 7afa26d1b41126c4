package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signalix/vault/internal/crypt"
	"github.com/signalix/vault/internal/model"
	"github.com/signalix/vault/internal/repo"
	"github.com/signalix/vault/internal/session"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// RegisterInput is the data needed to create a user.
type RegisterInput struct {
	PhoneNumber string
	Name        string
	Password    string
}

// AuthService orchestrates authentication operations
type AuthService struct {
	otpProvider OtpProvider
	jwtService  *JWTService
	userRepo    repo.UserRepo
	sessions    session.Store
}

// NewAuthService creates a new auth service
func NewAuthService(
	otpProvider OtpProvider,
	jwtService *JWTService,
	userRepo repo.UserRepo,
	sessions session.Store,
) *AuthService {
	return &AuthService{
		otpProvider: otpProvider,
		jwtService:  jwtService,
		userRepo:    userRepo,
		sessions:    sessions,
	}
}

// Register creates a user after checking the phone number is free.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	_, err := s.userRepo.GetByPhone(ctx, in.PhoneNumber)
	switch {
	case err == nil:
		return model.User{}, ErrUserExists
	case !errors.Is(err, repo.ErrNotFound):
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := crypt.HashPassword(in.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := model.User{PhoneNumber: in.PhoneNumber, Name: in.Name, PasswordHash: hash}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration for the same phone.
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, ErrUserExists
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// RequestOTP issues a code for an existing user and binds the session to the phone number.
// An empty sessionID skips the binding.
func (s *AuthService) RequestOTP(ctx context.Context, sessionID, phone string) (string, error) {
	if _, err := s.lookupUser(ctx, phone); err != nil {
		return "", err
	}

	code, err := s.otpProvider.RequestOTP(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("request otp: %w", err)
	}
	if sessionID != "" {
		if err := s.sessions.Bind(sessionID, phone); err != nil {
			return "", err
		}
	}
	return code, nil
}

// VerifyOTP consumes the code, marks the session authenticated and issues an access token.
func (s *AuthService) VerifyOTP(ctx context.Context, sessionID, phone, code string) (string, error) {
	if err := s.otpProvider.VerifyOTP(ctx, phone, code); err != nil {
		return "", fmt.Errorf("OTP verification failed: %w", err)
	}
	if err := s.authenticate(sessionID, phone); err != nil {
		return "", err
	}
	return s.issueToken(phone, sessionID)
}

// LoginWithPassword checks the stored credentials and authenticates the session.
// Unknown phone and wrong password are indistinguishable to the caller.
func (s *AuthService) LoginWithPassword(ctx context.Context, sessionID, phone, password string) (string, error) {
	user, err := s.lookupUser(ctx, phone)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !crypt.CheckPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}
	if err := s.authenticate(sessionID, phone); err != nil {
		return "", err
	}
	return s.issueToken(phone, sessionID)
}

// Logout clears the session. It never fails.
func (s *AuthService) Logout(sessionID string) {
	if sessionID == "" {
		return
	}
	s.sessions.Clear(sessionID)
}

// SessionState reports where sessionID is in the login flow.
func (s *AuthService) SessionState(sessionID string) session.State {
	return s.sessions.State(sessionID)
}

func (s *AuthService) lookupUser(ctx context.Context, phone string) (model.User, error) {
	user, err := s.userRepo.GetByPhone(ctx, strings.TrimSpace(phone))
	if errors.Is(err, repo.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *AuthService) authenticate(sessionID, phone string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Bind(sessionID, phone); err != nil {
		return err
	}
	return s.sessions.MarkAuthenticated(sessionID)
}

func (s *AuthService) issueToken(phone, sessionID string) (string, error) {
	token, err := s.jwtService.SignAccessToken(phone, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}
