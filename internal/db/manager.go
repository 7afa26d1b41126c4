package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/singleflight"

	"github.com/signalix/vault/internal/metrics"
)

// DefaultIdleTimeout is how long an unused handle stays open.
const DefaultIdleTimeout = 10 * time.Minute

var (
	// ErrConnection marks failures to reach the database.
	ErrConnection = errors.New("database connection failed")
	// ErrShutdown is returned by Acquire after Shutdown.
	ErrShutdown = errors.New("database manager is shut down")
)

// Opener creates a new physical database handle.
type Opener func(ctx context.Context) (*sql.DB, error)

// PostgresOpener returns an Opener that connects to databaseURL.
func PostgresOpener(databaseURL string) Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		return Open(ctx, databaseURL)
	}
}

// Manager owns the single shared database handle. The handle is opened on first use
// and closed after idle passes with no Acquire.
type Manager struct {
	open  Opener
	idle  time.Duration
	group singleflight.Group

	mu       sync.Mutex
	db       *sql.DB
	timer    *time.Timer
	gen      uint64
	shutdown bool
}

// NewManager creates a connection manager. A non-positive idle uses DefaultIdleTimeout.
func NewManager(open Opener, idle time.Duration) *Manager {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Manager{open: open, idle: idle}
}

// Acquire returns the live handle, connecting if needed, and re-arms the idle timer.
// Concurrent callers during a connect share the same attempt. The attempt is detached from
// the caller's cancellation; Open bounds it with its own ping timeout.
func (m *Manager) Acquire(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	if m.db != nil {
		db := m.db
		m.touchLocked()
		m.mu.Unlock()
		return db, nil
	}
	m.mu.Unlock()

	connectCtx := context.WithoutCancel(ctx)
	v, err, _ := m.group.Do("connect", func() (any, error) {
		return m.connect(connectCtx)
	})
	if err != nil {
		return nil, err
	}
	db := v.(*sql.DB)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return nil, ErrShutdown
	}
	if m.db != db {
		// The handle was dropped between connect and now; report it as a connection failure
		// rather than handing out a closed handle.
		return nil, fmt.Errorf("%w: handle closed during connect", ErrConnection)
	}
	m.touchLocked()
	return db, nil
}

func (m *Manager) connect(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	if m.db != nil {
		db := m.db
		m.mu.Unlock()
		return db, nil
	}
	m.mu.Unlock()

	db, err := m.open(ctx)
	if err != nil {
		metrics.DBConnects.WithLabelValues("error").Inc()
		slog.Error("database connect failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		_ = db.Close()
		return nil, ErrShutdown
	}
	m.db = db
	m.touchLocked()
	metrics.DBConnects.WithLabelValues("ok").Inc()
	slog.Info("database connected", "idle_timeout", m.idle)
	return db, nil
}

// touchLocked re-arms the idle timer. Callers hold m.mu.
func (m *Manager) touchLocked() {
	m.gen++
	gen := m.gen
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.idle, func() { m.expire(gen) })
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// A later Acquire re-armed the timer; this firing is stale.
	if gen != m.gen || m.db == nil {
		return
	}
	m.closeLocked()
	metrics.DBIdleCloses.Inc()
	slog.Info("database handle closed after idle timeout", "idle_timeout", m.idle)
}

func (m *Manager) closeLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			slog.Warn("failed to close database handle", "error", err)
		}
		m.db = nil
	}
}

// Connected reports whether a physical handle is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db != nil
}

// Check inspects an error returned by an operation on the handle. Connection-class
// failures drop the handle so the next Acquire reconnects, and are wrapped as ErrConnection.
// Other errors are returned unchanged.
func (m *Manager) Check(err error) error {
	if err == nil || errors.Is(err, ErrConnection) || !isConnectionError(err) {
		return err
	}
	m.mu.Lock()
	m.closeLocked()
	m.mu.Unlock()
	slog.Error("database connection lost; will reconnect on next use", "error", err)
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// Shutdown stops the idle timer and closes the handle. It is idempotent.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = true
	m.closeLocked()
	return nil
}

func isConnectionError(err error) bool {
	// Per-query timeouts and cancellations satisfy net.Error but say nothing about the pool.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08 is connection exception; 57P01 is admin shutdown.
		return pqErr.Code.Class() == "08" || pqErr.Code == "57P01"
	}
	return strings.Contains(err.Error(), "database is closed")
}
