// Package repo persists users and data records.
package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when no document matches the filter.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("already exists")
)

// Conn hands out the shared database handle. *db.Manager implements it.
type Conn interface {
	Acquire(ctx context.Context) (*sql.DB, error)
	Check(err error) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
