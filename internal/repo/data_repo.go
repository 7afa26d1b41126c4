package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/signalix/vault/internal/model"
)

// DataRepo defines the interface for data record operations
type DataRepo interface {
	GetByID(ctx context.Context, id string) (model.Record, error)
	Create(ctx context.Context, rec model.Record) (model.Record, error)
	// Update applies patch to the record with id and returns the number of matched records.
	Update(ctx context.Context, id string, patch model.RecordPatch) (int64, error)
}

type dataRepo struct {
	conn Conn
}

// NewDataRepo creates a new Postgres-backed DataRepo
func NewDataRepo(conn Conn) DataRepo {
	return &dataRepo{conn: conn}
}

// GetByID retrieves a record by its id
func (r *dataRepo) GetByID(ctx context.Context, id string) (model.Record, error) {
	db, err := r.conn.Acquire(ctx)
	if err != nil {
		return model.Record{}, err
	}

	var rec model.Record
	err = db.QueryRowContext(ctx, `
		SELECT id, name, message, created_at, updated_at
		FROM data
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Name, &rec.Message, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Record{}, fmt.Errorf("record: %w", ErrNotFound)
		}
		return model.Record{}, fmt.Errorf("failed to query record: %w", r.conn.Check(err))
	}
	return rec, nil
}

// Create inserts a record and returns it with its timestamps
func (r *dataRepo) Create(ctx context.Context, rec model.Record) (model.Record, error) {
	db, err := r.conn.Acquire(ctx)
	if err != nil {
		return model.Record{}, err
	}

	err = db.QueryRowContext(ctx, `
		INSERT INTO data (id, name, message)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, rec.ID, rec.Name, rec.Message).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Record{}, fmt.Errorf("record: %w", ErrDuplicate)
		}
		return model.Record{}, fmt.Errorf("failed to insert record: %w", r.conn.Check(err))
	}
	return rec, nil
}

// Update sets the non-nil fields of patch. A zero result means no record matched.
func (r *dataRepo) Update(ctx context.Context, id string, patch model.RecordPatch) (int64, error) {
	db, err := r.conn.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, `
		UPDATE data
		SET name = COALESCE($2, name),
		    message = COALESCE($3, message),
		    updated_at = now()
		WHERE id = $1
	`, id, patch.Name, patch.Message)
	if err != nil {
		return 0, fmt.Errorf("failed to update record: %w", r.conn.Check(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}
	return n, nil
}
