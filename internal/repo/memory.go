package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalix/vault/internal/model"
)

// MemoryUserRepo keeps users in process memory. Used for development without a database and in tests.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]model.User)}
}

func (r *MemoryUserRepo) GetByPhone(_ context.Context, phone string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[phone]
	if !ok {
		return model.User{}, fmt.Errorf("user: %w", ErrNotFound)
	}
	return u, nil
}

func (r *MemoryUserRepo) Create(_ context.Context, user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.PhoneNumber]; ok {
		return fmt.Errorf("user: %w", ErrDuplicate)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.PhoneNumber] = user
	return nil
}

// MemoryDataRepo keeps data records in process memory.
type MemoryDataRepo struct {
	mu      sync.RWMutex
	records map[string]model.Record
}

func NewMemoryDataRepo() *MemoryDataRepo {
	return &MemoryDataRepo{records: make(map[string]model.Record)}
}

func (r *MemoryDataRepo) GetByID(_ context.Context, id string) (model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return model.Record{}, fmt.Errorf("record: %w", ErrNotFound)
	}
	return rec, nil
}

func (r *MemoryDataRepo) Create(_ context.Context, rec model.Record) (model.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return model.Record{}, fmt.Errorf("record: %w", ErrDuplicate)
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *MemoryDataRepo) Update(_ context.Context, id string, patch model.RecordPatch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return 0, nil
	}
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Message != nil {
		rec.Message = *patch.Message
	}
	rec.UpdatedAt = time.Now().UTC()
	r.records[id] = rec
	return 1, nil
}
