package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	// DefaultMaxRetries is the default number of attempts for deadlocks
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 100 * time.Millisecond
)

// RetryConfig configures retry behavior for transactions
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:  DefaultMaxRetries,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// WithRetry runs fn in a transaction, retrying the whole transaction on
// deadlock or serialization failures.
func (m *Manager) WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.WithRetryConfig(ctx, DefaultRetryConfig(), fn)
}

// WithRetryConfig executes a transaction with custom retry configuration.
// Inside an active transaction fn runs once: only the outermost caller
// can restart the transaction.
func (m *Manager) WithRetryConfig(ctx context.Context, config *RetryConfig, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("transaction cancelled before retry %d: %w", attempt, ctx.Err())
		}

		err := m.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return err
		}
		lastErr = err

		// baseBackoff * 2^attempt
		backoff := config.BaseBackoff * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w: transaction failed after %d retries: %v", ErrDeadlock, config.MaxRetries, lastErr)
}

// sqlState extracts a SQLSTATE code from pgx or lib/pq errors
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// isDeadlockError checks for PostgreSQL code 40P01 and the deadlock
// messages of other backends.
func isDeadlockError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == "40P01" {
		return true
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "40p01") {
		return true
	}

	deadlockMessages := []string{
		"deadlock detected",
		"deadlock found",
		"lock wait timeout exceeded",
		"could not serialize access",
		"database is locked",
	}
	for _, msg := range deadlockMessages {
		if strings.Contains(errStr, msg) {
			return true
		}
	}
	return false
}

// isSerializationError checks for PostgreSQL serialization failures (40001)
func isSerializationError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == "40001" {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "40001") || strings.Contains(errStr, "could not serialize access")
}

// IsRetryableError checks if an error is retryable (deadlock or serialization failure)
func IsRetryableError(err error) bool {
	return isDeadlockError(err) || isSerializationError(err)
}
