package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout runs fn in a transaction bounded by timeout. Statements run
// with the derived context, so the driver aborts them at the deadline and
// the transaction is rolled back.
func (m *Manager) WithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := m.WithTransaction(timeoutCtx, fn)
	if err != nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: transaction exceeded %v: %v", ErrTransactionTimeout, timeout, err)
	}
	return err
}

// BeginWithTimeout starts a transaction that must be committed or rolled
// back within timeout.
func (m *Manager) BeginWithTimeout(ctx context.Context, timeout time.Duration) (*Transaction, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)

	tx, err := m.Begin(timeoutCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	// released on commit or rollback
	tx.cancelFunc = cancel
	return tx, nil
}
