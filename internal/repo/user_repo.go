package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/signalix/vault/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	Create(ctx context.Context, user model.User) error
}

type userRepo struct {
	conn Conn
}

// NewUserRepo creates a new Postgres-backed UserRepo
func NewUserRepo(conn Conn) UserRepo {
	return &userRepo{conn: conn}
}

// GetByPhone retrieves a user by phone number
func (r *userRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	db, err := r.conn.Acquire(ctx)
	if err != nil {
		return model.User{}, err
	}

	query := `
		SELECT phone_number, name, password, created_at
		FROM users
		WHERE phone_number = $1
	`
	var user model.User
	err = db.QueryRowContext(ctx, query, phone).Scan(
		&user.PhoneNumber,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("user: %w", ErrNotFound)
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", r.conn.Check(err))
	}
	return user, nil
}

// Create inserts a new user; the phone number must be unused
func (r *userRepo) Create(ctx context.Context, user model.User) error {
	db, err := r.conn.Acquire(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (phone_number, name, password)
		VALUES ($1, $2, $3)
	`
	if _, err := db.ExecContext(ctx, query, user.PhoneNumber, user.Name, user.PasswordHash); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to insert user: %w", r.conn.Check(err))
	}
	return nil
}
