package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/entitydao/pkg/orm/dialect"
)

// ErrUnknownConnection is returned for a logical name with no pool
var ErrUnknownConnection = errors.New("unknown connection")

// Config describes one logical connection pool
type Config struct {
	Driver          string
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	// Dialect overrides the dialect derived from Driver.
	Dialect string
}

// Open opens and configures a pool. It does not ping the database.
func Open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s pool: %w", cfg.Driver, err)
	}
	if cfg.MaxOpen > 0 {
		db.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

type pool struct {
	db      *sql.DB
	dialect dialect.Dialect
}

// Manager owns one pool per logical connection name and hands out
// connections, transparently joining the transaction carried by the
// context when there is one.
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]*pool
	logger *zap.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for release and rollback failures
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager without pools
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		pools:  make(map[string]*pool),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenManager opens a pool for every configured connection. Pools opened
// before a failure are closed again.
func OpenManager(configs map[string]Config, opts ...Option) (*Manager, error) {
	m := NewManager(opts...)
	for name, cfg := range configs {
		db, err := Open(cfg)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("connection %s: %w", name, err)
		}
		d := cfg.Dialect
		if d == "" {
			d = cfg.Driver
		}
		m.Add(name, db, dialect.New(d))
	}
	return m, nil
}

// Add registers a pool under name, replacing any previous one.
func (m *Manager) Add(name string, db *sql.DB, d dialect.Dialect) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pools[name] = &pool{db: db, dialect: d}
}

func (m *Manager) pool(name string) (*pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}
	return p, nil
}

// DB returns the pool registered under name.
func (m *Manager) DB(name string) (*sql.DB, bool) {
	p, err := m.pool(name)
	if err != nil {
		return nil, false
	}
	return p.db, true
}

// Names returns the registered connection names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dialect returns the dialect of a logical connection. Unknown names get
// the unknown dialect.
func (m *Manager) Dialect(name string) dialect.Dialect {
	p, err := m.pool(name)
	if err != nil {
		return dialect.New("")
	}
	return p.dialect
}

// Ping verifies a logical connection.
func (m *Manager) Ping(ctx context.Context, name string) error {
	p, err := m.pool(name)
	if err != nil {
		return err
	}
	return p.db.PingContext(ctx)
}

// Conn checks out a connection for name. Inside a transaction the
// transaction's connection for name is returned, beginning it on first
// use; otherwise a dedicated pool connection is checked out and the
// caller must Close it. A context carrying a finished transaction fails
// with ErrTransactionDone.
func (m *Manager) Conn(ctx context.Context, name string) (*Conn, error) {
	p, err := m.pool(name)
	if err != nil {
		return nil, err
	}

	if tx, ok := FromContext(ctx); ok {
		return tx.conn(name, p.db)
	}

	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return NewConn(uuid.NewString(), name, c, c.Close), nil
}

// AutoCommit reports whether connections handed out for ctx are released
// by their caller. It is false while a transaction owns them.
func (m *Manager) AutoCommit(ctx context.Context) bool {
	return !InTransaction(ctx)
}

// PrepareShared prepares query on conn, reusing one statement per
// connection and SQL text while the transaction in ctx runs in batch
// mode.
func (m *Manager) PrepareShared(ctx context.Context, conn *Conn, query string) (*sql.Stmt, error) {
	tx, ok := FromContext(ctx)
	if !ok || !tx.active() || !tx.Batch() {
		return conn.PrepareContext(ctx, query)
	}
	return tx.sharedStmt(ctx, conn, query)
}

// SharedStatements reports whether statements from PrepareShared are
// owned by the transaction in ctx, in which case callers must not close
// them.
func (m *Manager) SharedStatements(ctx context.Context) bool {
	tx, ok := FromContext(ctx)
	return ok && tx.active() && tx.Batch()
}

// Close closes every pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, p := range m.pools {
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	m.pools = make(map[string]*pool)
	return errors.Join(errs...)
}
