package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrTransactionDone is returned when a finished transaction is used again
	ErrTransactionDone = errors.New("transaction already finished")
	// ErrDeadlock is returned when retries on deadlock are exhausted
	ErrDeadlock = errors.New("deadlock detected")
	// ErrTransactionTimeout is returned when a transaction times out
	ErrTransactionTimeout = errors.New("transaction timeout")
)

// IsolationLevel represents the transaction isolation level
type IsolationLevel int

const (
	// Default leaves the isolation level to the driver
	Default IsolationLevel = iota
	// ReadUncommitted allows dirty reads
	ReadUncommitted
	// ReadCommitted prevents dirty reads (PostgreSQL default)
	ReadCommitted
	// RepeatableRead prevents non-repeatable reads
	RepeatableRead
	// Serializable provides full isolation
	Serializable
)

// String returns the string representation of the isolation level
func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "READ UNCOMMITTED"
	case ReadCommitted:
		return "READ COMMITTED"
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "DEFAULT"
	}
}

// ToSQLOptions converts IsolationLevel to sql.TxOptions
func (l IsolationLevel) ToSQLOptions() *sql.TxOptions {
	var level sql.IsolationLevel
	switch l {
	case ReadUncommitted:
		level = sql.LevelReadUncommitted
	case ReadCommitted:
		level = sql.LevelReadCommitted
	case RepeatableRead:
		level = sql.LevelRepeatableRead
	case Serializable:
		level = sql.LevelSerializable
	default:
		return nil
	}
	return &sql.TxOptions{Isolation: level}
}

type txConn struct {
	id string
	tx *sql.Tx
}

type stmtKey struct {
	conn  string
	query string
}

// Transaction spans every logical connection used while it is active.
// The database transaction for a connection name is begun lazily the
// first time that name is requested and is committed or rolled back
// together with the others.
type Transaction struct {
	m              *Manager
	ctx            context.Context
	isolationLevel IsolationLevel
	batch          atomic.Bool
	committed      atomic.Bool
	rolledBack     atomic.Bool
	cancelFunc     context.CancelFunc

	mu    sync.Mutex
	order []string
	conns map[string]*txConn
	stmts map[stmtKey]*sql.Stmt
}

// Begin starts a transaction with the driver's default isolation level.
// No database work happens until the first connection is requested.
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	return m.BeginWithIsolation(ctx, Default)
}

// BeginWithIsolation starts a transaction with the specified isolation level
func (m *Manager) BeginWithIsolation(ctx context.Context, level IsolationLevel) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &Transaction{
		m:              m,
		ctx:            ctx,
		isolationLevel: level,
		conns:          make(map[string]*txConn),
		stmts:          make(map[stmtKey]*sql.Stmt),
	}, nil
}

// WithTransaction runs fn with a context carrying a transaction and
// commits when fn returns nil. A context that already carries an active
// transaction is reused, so nested calls join the outer transaction.
func (m *Manager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.WithTransactionIsolation(ctx, Default, fn)
}

// WithTransactionIsolation is WithTransaction with an isolation level for
// a newly started transaction.
func (m *Manager) WithTransactionIsolation(ctx context.Context, level IsolationLevel, fn func(ctx context.Context) error) error {
	if tx, ok := FromContext(ctx); ok && tx.active() {
		return fn(ctx)
	}

	tx, err := m.BeginWithIsolation(ctx, level)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx.Context()); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Context returns a context with the transaction embedded
func (t *Transaction) Context() context.Context {
	return WithContext(t.ctx, t)
}

// IsolationLevel returns the isolation level of the transaction
func (t *Transaction) IsolationLevel() IsolationLevel {
	return t.isolationLevel
}

// EnableBatch switches the transaction to batch mode: statements prepared
// through Manager.PrepareShared are cached and reused until the
// transaction ends.
func (t *Transaction) EnableBatch() {
	t.batch.Store(true)
}

// Batch reports whether batch mode is on
func (t *Transaction) Batch() bool {
	return t.batch.Load()
}

// Connections returns the logical names that joined the transaction, in
// the order they did.
func (t *Transaction) Connections() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

func (t *Transaction) active() bool {
	return !t.committed.Load() && !t.rolledBack.Load()
}

func (t *Transaction) conn(name string, db *sql.DB) (*Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active() {
		return nil, ErrTransactionDone
	}

	tc, ok := t.conns[name]
	if !ok {
		tx, err := db.BeginTx(t.ctx, t.isolationLevel.ToSQLOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction on %s: %w", name, err)
		}
		tc = &txConn{id: uuid.NewString(), tx: tx}
		t.conns[name] = tc
		t.order = append(t.order, name)
	}
	return NewConn(tc.id, name, tc.tx, nil), nil
}

func (t *Transaction) sharedStmt(ctx context.Context, conn *Conn, query string) (*sql.Stmt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := stmtKey{conn: conn.Name(), query: query}
	if stmt, ok := t.stmts[key]; ok {
		return stmt, nil
	}

	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	t.stmts[key] = stmt
	return stmt, nil
}

// closeStatements must be called with t.mu held
func (t *Transaction) closeStatements() {
	for key, stmt := range t.stmts {
		if err := stmt.Close(); err != nil {
			t.m.logger.Error("close shared statement",
				zap.String("conn", key.conn),
				zap.String("sql", key.query),
				zap.Error(err),
			)
		}
	}
	t.stmts = make(map[stmtKey]*sql.Stmt)
}

// Commit commits every joined connection in join order. The first
// failure rolls back the connections not yet committed.
func (t *Transaction) Commit() error {
	if t.cancelFunc != nil {
		defer t.cancelFunc()
	}

	if t.committed.Load() {
		return errors.New("transaction already committed")
	}
	if t.rolledBack.Load() {
		return errors.New("transaction already rolled back")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeStatements()
	t.committed.Store(true)

	for i, name := range t.order {
		if err := t.conns[name].tx.Commit(); err != nil {
			t.rollbackFrom(i + 1)
			return fmt.Errorf("failed to commit transaction on %s: %w", name, err)
		}
	}
	return nil
}

// Rollback rolls back every joined connection. Rolling back twice is a
// no-op.
func (t *Transaction) Rollback() error {
	if t.cancelFunc != nil {
		defer t.cancelFunc()
	}

	if t.committed.Load() {
		return errors.New("transaction already committed")
	}
	if t.rolledBack.Load() {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeStatements()
	t.rolledBack.Store(true)

	var errs []error
	for _, name := range t.order {
		if err := t.conns[name].tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, fmt.Errorf("failed to rollback transaction on %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Transaction) rollbackFrom(i int) {
	for _, name := range t.order[i:] {
		if err := t.conns[name].tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.m.logger.Error("rollback after failed commit",
				zap.String("conn", name),
				zap.Error(err),
			)
		}
	}
}

// IsCommitted returns true if the transaction has been committed
func (t *Transaction) IsCommitted() bool {
	return t.committed.Load()
}

// IsRolledBack returns true if the transaction has been rolled back
func (t *Transaction) IsRolledBack() bool {
	return t.rolledBack.Load()
}
